package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const namespace = "routedog"

type kind int

const (
	kindCounter kind = iota
	kindGauge
)

type series struct {
	name   string
	labels map[string]string
	kind   kind
	value  atomic.Int64
}

// Registry stores counters and gauges for exposition and mirrors them to
// OTel instruments. It also implements prometheus.Collector.
type Registry struct {
	mu         sync.RWMutex
	series     map[string]*series // key = fullKey(name, labels)
	meter      metric.Meter
	otelCtrs   map[string]metric.Int64Counter // base name -> instrument
	otelGauges map[string]metric.Int64Gauge
}

func NewRegistry() *Registry {
	m := otel.GetMeterProvider().Meter(namespace)
	return &Registry{
		series:     make(map[string]*series),
		meter:      m,
		otelCtrs:   make(map[string]metric.Int64Counter),
		otelGauges: make(map[string]metric.Int64Gauge),
	}
}

// fullKey makes deterministic key from name and labels map.
func fullKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
	}
	b.WriteByte('}')
	return b.String()
}

func (r *Registry) lookup(name string, labels map[string]string, k kind) *series {
	key := fullKey(name, labels)

	r.mu.RLock()
	s := r.series[key]
	r.mu.RUnlock()
	if s != nil {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s = r.series[key]; s == nil {
		copied := make(map[string]string, len(labels))
		for lk, lv := range labels {
			copied[lk] = lv
		}
		s = &series{name: name, labels: copied, kind: k}
		r.series[key] = s
	}
	return s
}

func attrs(labels map[string]string) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(labels))
	for k, v := range labels {
		out = append(out, attribute.String(k, v))
	}
	return out
}

// Inc increases a named counter by n with labels.
// Also records the increment via OpenTelemetry counter instrument.
func (r *Registry) Inc(ctx context.Context, name string, labels map[string]string, n int64) {
	r.lookup(name, labels, kindCounter).value.Add(n)

	// OTel mirror
	r.mu.RLock()
	inst := r.otelCtrs[name]
	r.mu.RUnlock()
	if inst == nil {
		r.mu.Lock()
		if inst = r.otelCtrs[name]; inst == nil {
			ctr, _ := r.meter.Int64Counter(name)
			r.otelCtrs[name] = ctr
			inst = ctr
		}
		r.mu.Unlock()
	}
	if inst != nil {
		inst.Add(ctx, n, metric.WithAttributes(attrs(labels)...))
	}
}

// Set records the current value of a named gauge.
func (r *Registry) Set(ctx context.Context, name string, labels map[string]string, v int64) {
	r.lookup(name, labels, kindGauge).value.Store(v)

	r.mu.RLock()
	inst := r.otelGauges[name]
	r.mu.RUnlock()
	if inst == nil {
		r.mu.Lock()
		if inst = r.otelGauges[name]; inst == nil {
			g, _ := r.meter.Int64Gauge(name)
			r.otelGauges[name] = g
			inst = g
		}
		r.mu.Unlock()
	}
	if inst != nil {
		inst.Record(ctx, v, metric.WithAttributes(attrs(labels)...))
	}
}

// Value returns the current value of a series, or 0 if it was never touched.
func (r *Registry) Value(name string, labels map[string]string) int64 {
	r.mu.RLock()
	s := r.series[fullKey(name, labels)]
	r.mu.RUnlock()
	if s == nil {
		return 0
	}
	return s.value.Load()
}

// SnapshotLines returns sorted text lines representing current series.
func (r *Registry) SnapshotLines() []string {
	r.mu.RLock()
	keys := make([]string, 0, len(r.series))
	for k := range r.series {
		keys = append(keys, k)
	}
	r.mu.RUnlock()
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		r.mu.RLock()
		v := r.series[k].value.Load()
		r.mu.RUnlock()
		lines = append(lines, fmt.Sprintf("%s %d", k, v))
	}
	return lines
}

// SnapshotJSON returns a map of series->value for JSON rendering.
func (r *Registry) SnapshotJSON() map[string]int64 {
	out := make(map[string]int64)
	r.mu.RLock()
	for k, s := range r.series {
		out[k] = s.value.Load()
	}
	r.mu.RUnlock()
	return out
}

// Describe sends nothing, which makes the registry an unchecked collector:
// series appear lazily as the service touches them.
func (r *Registry) Describe(chan<- *prometheus.Desc) {}

// Collect implements prometheus.Collector.
func (r *Registry) Collect(ch chan<- prometheus.Metric) {
	r.mu.RLock()
	all := make([]*series, 0, len(r.series))
	for _, s := range r.series {
		all = append(all, s)
	}
	r.mu.RUnlock()

	for _, s := range all {
		vt := prometheus.CounterValue
		if s.kind == kindGauge {
			vt = prometheus.GaugeValue
		}
		desc := prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", s.name),
			s.name,
			nil,
			prometheus.Labels(s.labels),
		)
		m, err := prometheus.NewConstMetric(desc, vt, float64(s.value.Load()))
		if err != nil {
			ch <- prometheus.NewInvalidMetric(desc, err)
			continue
		}
		ch <- m
	}
}

// EchoHandlerText writes series in simple text format.
func (r *Registry) EchoHandlerText(c echo.Context) error {
	lines := r.SnapshotLines()
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextPlainCharsetUTF8)
	for i := range lines {
		if _, err := c.Response().Write([]byte(lines[i] + "\n")); err != nil {
			return err
		}
	}
	return nil
}

// EchoHandlerJSON writes series as JSON.
func (r *Registry) EchoHandlerJSON(c echo.Context) error {
	payload := r.SnapshotJSON()
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSONCharsetUTF8)
	enc := json.NewEncoder(c.Response())
	return enc.Encode(payload)
}

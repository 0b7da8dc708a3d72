// Package census geocodes one-line US addresses with the Census Bureau
// geocoder.
package census

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"routedog/pkg/config"
	"routedog/pkg/metrics"
	"routedog/pkg/models"
)

// ErrNoMatch is returned when the geocoder knows no such address.
var ErrNoMatch = errors.New("no address match")

// StatusError is a non-2xx reply from the geocoder.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("geocoder returned %d: %s", e.Code, e.Body)
}

func (e *StatusError) temporary() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}

type Client struct {
	http       *http.Client
	baseURL    string
	benchmark  string
	maxRetries uint64
	newBackOff func() backoff.BackOff

	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[models.Address]
	cache   *expirable.LRU[string, models.Address]
	reg     *metrics.Registry
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithBackOff replaces the retry schedule. Retries are still capped by
// the configured MaxRetries.
func WithBackOff(f func() backoff.BackOff) Option {
	return func(cl *Client) {
		cl.newBackOff = f
	}
}

func WithMetrics(reg *metrics.Registry) Option {
	return func(cl *Client) {
		cl.reg = reg
	}
}

func NewClient(cfg config.GeocoderConfig, opts ...Option) *Client {
	c := &Client{
		http:       &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		benchmark:  cfg.Benchmark,
		maxRetries: cfg.MaxRetries,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff(
				backoff.WithInitialInterval(200*time.Millisecond),
				backoff.WithMaxInterval(2*time.Second),
				backoff.WithMaxElapsedTime(cfg.Timeout),
			)
		},
		limiter: rate.NewLimiter(rate.Inf, 0),
	}
	if cfg.RPS > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RPS), max(cfg.Burst, 1))
	}
	if cfg.CacheSize > 0 {
		c.cache = expirable.NewLRU[string, models.Address](cfg.CacheSize, nil, cfg.CacheTTL)
	}

	c.breaker = gobreaker.NewCircuitBreaker[models.Address](gobreaker.Settings{
		Name:        "census-geocoder",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNoMatch)
		},
		IsExcluded: func(err error) bool {
			return errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})

	for _, opt := range opts {
		opt(c)
	}
	return c
}

func cacheKey(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// Geocode resolves address to its standardized form and coordinates.
func (c *Client) Geocode(ctx context.Context, address string) (models.Address, error) {
	key := cacheKey(address)
	if c.cache != nil {
		if hit, ok := c.cache.Get(key); ok {
			c.count(ctx, "cache_hit")
			hit.Original = address
			return hit, nil
		}
	}

	res, err := c.breaker.Execute(func() (models.Address, error) {
		return c.lookupWithRetry(ctx, address)
	})
	switch {
	case err == nil:
		c.count(ctx, "ok")
	case errors.Is(err, ErrNoMatch):
		c.count(ctx, "no_match")
		return models.Address{}, err
	default:
		c.count(ctx, "error")
		return models.Address{}, fmt.Errorf("geocode %q: %w", address, err)
	}

	if c.cache != nil {
		c.cache.Add(key, res)
	}
	return res, nil
}

func (c *Client) count(ctx context.Context, outcome string) {
	if c.reg != nil {
		c.reg.Inc(ctx, "geocode_requests_total", map[string]string{"outcome": outcome}, 1)
	}
}

func (c *Client) lookupWithRetry(ctx context.Context, address string) (models.Address, error) {
	policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.maxRetries), ctx)

	attempt := 0
	return backoff.RetryWithData(func() (models.Address, error) {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return models.Address{}, backoff.Permanent(err)
		}

		res, err := c.lookup(ctx, address)
		if err == nil {
			return res, nil
		}

		var statusErr *StatusError
		if errors.Is(err, ErrNoMatch) || (errors.As(err, &statusErr) && !statusErr.temporary()) || ctx.Err() != nil {
			return models.Address{}, backoff.Permanent(err)
		}
		log.Ctx(ctx).Warn().Err(err).Int("attempt", attempt).Msg("geocoder request failed, retrying")
		return models.Address{}, err
	}, policy)
}

func (c *Client) lookup(ctx context.Context, address string) (models.Address, error) {
	q := url.Values{}
	q.Set("address", address)
	q.Set("benchmark", c.benchmark)
	q.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return models.Address{}, backoff.Permanent(err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return models.Address{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return models.Address{}, fmt.Errorf("read geocoder response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.Address{}, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if !gjson.ValidBytes(body) {
		return models.Address{}, backoff.Permanent(errors.New("geocoder returned invalid JSON"))
	}

	match := gjson.GetBytes(body, "result.addressMatches.0")
	if !match.Exists() {
		return models.Address{}, ErrNoMatch
	}

	return models.Address{
		Original:     address,
		Standardized: match.Get("matchedAddress").String(),
		Latitude:     match.Get("coordinates.y").Float(),
		Longitude:    match.Get("coordinates.x").Float(),
	}, nil
}

package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"routedog/pkg/imagecache"
	"routedog/pkg/imaging"
	"routedog/pkg/metrics"
	"routedog/pkg/models"
)

type AddressExtractor interface {
	ExtractAddresses(ctx context.Context, image string) ([]string, error)
}

type Geocoder interface {
	Geocode(ctx context.Context, address string) (models.Address, error)
}

// ImageCache is the bounded image store.
type ImageCache interface {
	Store(ctx context.Context, id string, data []byte) error
	Get(ctx context.Context, id string) ([]byte, error)
	Delete(ctx context.Context, id string) error
	Usage(ctx context.Context) (imagecache.Usage, error)
}

// RouteStore persists the current route and the route history.
type RouteStore interface {
	LoadCurrent(ctx context.Context) (models.RouteState, error)
	SaveCurrent(ctx context.Context, state models.RouteState) error
	SaveRoute(ctx context.Context, r models.Route) error
	ListRoutes(ctx context.Context) ([]models.Route, error)
	GetRoute(ctx context.Context, id string) (models.Route, error)
	DeleteRoute(ctx context.Context, id string) (models.Route, error)
}

// Normalizer shrinks and re-encodes an uploaded photo.
type Normalizer func(r io.Reader, p imaging.Profile) (*imaging.Encoded, error)

// Handlers serves the Route.dog HTTP API.
type Handlers struct {
	extractor AddressExtractor
	geocoder  Geocoder
	images    ImageCache
	routes    RouteStore

	reg                *metrics.Registry
	normalize          Normalizer
	geocodeConcurrency int
	maxUploadBytes     int64
	maxImagePixels     int64
	newID              func() string
	now                func() time.Time
}

type Option func(*Handlers)

func WithMetrics(reg *metrics.Registry) Option {
	return func(h *Handlers) { h.reg = reg }
}

// WithGeocodeConcurrency bounds parallel geocoder calls per request.
func WithGeocodeConcurrency(n int) Option {
	return func(h *Handlers) {
		if n > 0 {
			h.geocodeConcurrency = n
		}
	}
}

func WithMaxUploadBytes(n int64) Option {
	return func(h *Handlers) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// WithMaxImagePixels bounds width*height of uploaded photos.
func WithMaxImagePixels(n int64) Option {
	return func(h *Handlers) {
		if n > 0 {
			h.maxImagePixels = n
		}
	}
}

func WithNormalizer(n Normalizer) Option {
	return func(h *Handlers) { h.normalize = n }
}

func WithIDGenerator(f func() string) Option {
	return func(h *Handlers) { h.newID = f }
}

func WithClock(now func() time.Time) Option {
	return func(h *Handlers) { h.now = now }
}

// NewHandlers constructs Handlers with provided collaborators.
func NewHandlers(extractor AddressExtractor, geocoder Geocoder, images ImageCache, routes RouteStore, opts ...Option) *Handlers {
	h := &Handlers{
		extractor:          extractor,
		geocoder:           geocoder,
		images:             images,
		routes:             routes,
		normalize:          imaging.NormalizeProfile,
		geocodeConcurrency: 4,
		maxUploadBytes:     15 << 20,
		maxImagePixels:     imaging.DefaultMaxPixels,
		newID:              uuid.NewString,
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts every route on e.
func (h *Handlers) Register(e *echo.Echo) {
	e.GET("/", h.Health)
	e.GET("/health", h.Health)

	v1 := e.Group("/v1")
	v1.POST("/addresses", h.ParseAddresses)
	v1.PUT("/geocode-address", h.GeocodeAddress)

	v1.POST("/images", h.UploadImage)
	v1.GET("/images/usage", h.ImageUsage)
	v1.GET("/images/:id", h.GetImage)
	v1.GET("/images/:id/raw", h.GetRawImage)
	v1.DELETE("/images/:id", h.DeleteImage)

	v1.POST("/uploads", h.UploadStops)

	v1.GET("/routes/current", h.GetCurrentRoute)
	v1.PUT("/routes/current", h.PutCurrentRoute)
	v1.GET("/routes", h.ListRoutes)
	v1.POST("/routes", h.CreateRoute)
	v1.GET("/routes/:id", h.GetRoute)
	v1.DELETE("/routes/:id", h.DeleteRoute)
}

// Health handles GET / and GET /health
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, models.HealthResponse{
		Status:  "healthy",
		Message: "Route.dog API is running",
	})
}

// ErrorHandler renders every error as {"error": "..."}.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	msg := http.StatusText(code)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if s, ok := he.Message.(string); ok {
			msg = s
		} else {
			msg = fmt.Sprint(he.Message)
		}
	} else {
		log.Ctx(c.Request().Context()).Error().Err(err).Msg("unhandled error")
	}

	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(code)
	} else {
		werr = c.JSON(code, models.ErrorResponse{Error: msg})
	}
	if werr != nil {
		log.Ctx(c.Request().Context()).Error().Err(werr).Msg("failed to write error response")
	}
}

func (h *Handlers) decode(c echo.Context, v any) error {
	return c.Echo().JSONSerializer.Deserialize(c, v)
}

func (h *Handlers) count(ctx context.Context, name, outcome string) {
	if h.reg != nil {
		h.reg.Inc(ctx, name, map[string]string{"outcome": outcome}, 1)
	}
}

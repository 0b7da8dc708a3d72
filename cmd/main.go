package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"routedog/pkg/api"
	"routedog/pkg/clients/census"
	"routedog/pkg/clients/openai"
	"routedog/pkg/config"
	"routedog/pkg/imagecache"
	"routedog/pkg/logging"
	"routedog/pkg/metrics"
	"routedog/pkg/middleware"
	"routedog/pkg/repository/image"
	"routedog/pkg/repository/route"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config failed: %v\n", err)
		os.Exit(1)
	}

	logCloser := logging.Setup(cfg.Log)
	err = run(cfg)
	if err != nil {
		log.Error().Err(err).Msg("server stopped with error")
	}
	_ = logCloser.Close()
	if err != nil {
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		reg,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	repo, err := openImageRepository(ctx, cfg.ImageCache)
	if err != nil {
		return err
	}
	cache := imagecache.New(repo,
		imagecache.WithMaxBytes(cfg.ImageCache.MaxBytes),
		imagecache.WithMetrics(reg),
	)
	defer closeLogged("image cache", cache)

	if usage, err := cache.Usage(ctx); err == nil {
		reg.Set(ctx, "image_cache_bytes", nil, usage.TotalBytes)
		log.Info().Int("images", usage.Count).Int64("bytes", usage.TotalBytes).Int64("max_bytes", usage.MaxBytes).Msg("image cache opened")
	} else {
		log.Warn().Err(err).Msg("image cache usage unavailable")
	}

	vision := openai.NewClient(cfg.OpenAI)
	if cfg.OpenAI.VerifyModel {
		if err := vision.VerifyModel(ctx); err != nil {
			return fmt.Errorf("openai client init failed: %w", err)
		}
	}

	geocoder := census.NewClient(cfg.Geocoder, census.WithMetrics(reg))

	routes, err := route.Open(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("route store init failed: %w", err)
	}
	defer closeLogged("route store", routes)

	handlers := api.NewHandlers(vision, geocoder, cache, routes,
		api.WithMetrics(reg),
		api.WithGeocodeConcurrency(cfg.Geocoder.Concurrency),
		api.WithMaxUploadBytes(cfg.Server.MaxUploadBytes),
		api.WithMaxImagePixels(cfg.Server.MaxImagePixels),
	)

	server := echo.New()
	server.HideBanner = true
	server.HidePort = true
	server.HTTPErrorHandler = api.ErrorHandler
	server.Use(echomw.Recover())
	server.Use(middleware.RequestLogger(reg))
	server.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.Server.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, middleware.HeaderRequestID},
	}))
	server.Use(echomw.BodyLimit(cfg.Server.BodyLimit))

	handlers.Register(server)
	server.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})))
	server.GET("/debug/counters", reg.EchoHandlerText)
	server.GET("/debug/counters.json", reg.EchoHandlerJSON)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Address()).Msg("http server starting")
		if err := server.Start(cfg.Server.Address()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// openImageRepository picks the in-process map for mem:// and a blob
// bucket for everything else.
func openImageRepository(ctx context.Context, cfg config.ImageCacheConfig) (image.ImageRepository, error) {
	if cfg.URL == "mem://" {
		return image.NewMemoryRepository(), nil
	}

	var opts []image.BucketOption
	if cfg.Compress {
		opts = append(opts, image.WithCompression())
	}
	repo, err := image.OpenBucketRepository(ctx, cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("image store init failed: %w", err)
	}
	return repo, nil
}

type closer interface {
	Close() error
}

func closeLogged(name string, c closer) {
	if err := c.Close(); err != nil {
		log.Error().Err(err).Str("resource", name).Msg("close failed")
	}
}

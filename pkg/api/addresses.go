package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"routedog/pkg/models"
)

// ParseAddresses handles POST /v1/addresses
func (h *Handlers) ParseAddresses(c echo.Context) error {
	var req models.ParseAddressesRequest
	if err := h.decode(c, &req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON payload")
	}
	if strings.TrimSpace(req.Image) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Image is required")
	}

	ctx := c.Request().Context()
	addresses, err := h.extractAndGeocode(ctx, req.Image)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Failed to extract addresses: %v", err))
	}

	return c.JSON(http.StatusOK, models.ParseAddressesResponse{Addresses: addresses})
}

// GeocodeAddress handles PUT /v1/geocode-address
func (h *Handlers) GeocodeAddress(c echo.Context) error {
	var req models.GeocodeAddressRequest
	if err := h.decode(c, &req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON payload")
	}
	if strings.TrimSpace(req.Address) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Address is required")
	}

	return c.JSON(http.StatusOK, h.geocodeOne(c.Request().Context(), req.Address))
}

func (h *Handlers) extractAndGeocode(ctx context.Context, image string) ([]models.Address, error) {
	found, err := h.extractor.ExtractAddresses(ctx, image)
	if err != nil {
		h.count(ctx, "extractions_total", "error")
		return nil, err
	}
	h.count(ctx, "extractions_total", "ok")
	log.Ctx(ctx).Info().Int("addresses", len(found)).Msg("addresses extracted")

	return h.geocodeAll(ctx, found), nil
}

// geocodeAll resolves addresses concurrently and keeps their order.
func (h *Handlers) geocodeAll(ctx context.Context, addresses []string) []models.Address {
	out := make([]models.Address, len(addresses))

	var g errgroup.Group
	g.SetLimit(h.geocodeConcurrency)
	for i, addr := range addresses {
		g.Go(func() error {
			out[i] = h.geocodeOne(ctx, addr)
			return nil
		})
	}
	_ = g.Wait()

	return out
}

// geocodeOne never fails: unresolved addresses keep zero coordinates.
func (h *Handlers) geocodeOne(ctx context.Context, address string) models.Address {
	res, err := h.geocoder.Geocode(ctx, address)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("address", address).Msg("failed to geocode address")
		return models.Unresolved(address)
	}
	res.Original = address
	return res
}

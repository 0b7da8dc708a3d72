package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"routedog/pkg/models"
	"routedog/pkg/repository/route"
)

// GetCurrentRoute handles GET /v1/routes/current
func (h *Handlers) GetCurrentRoute(c echo.Context) error {
	state, err := h.routes.LoadCurrent(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Failed to load route: %v", err))
	}
	return c.JSON(http.StatusOK, state)
}

// PutCurrentRoute handles PUT /v1/routes/current
func (h *Handlers) PutCurrentRoute(c echo.Context) error {
	var state models.RouteState
	if err := h.decode(c, &state); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON payload")
	}
	if state.Addresses == nil {
		state.Addresses = []models.Address{}
	}

	if err := h.routes.SaveCurrent(c.Request().Context(), state); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Failed to save route: %v", err))
	}
	return c.JSON(http.StatusOK, state)
}

// ListRoutes handles GET /v1/routes
func (h *Handlers) ListRoutes(c echo.Context) error {
	routes, err := h.routes.ListRoutes(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Failed to load routes: %v", err))
	}
	if routes == nil {
		routes = []models.Route{}
	}
	return c.JSON(http.StatusOK, routes)
}

// CreateRoute handles POST /v1/routes
func (h *Handlers) CreateRoute(c echo.Context) error {
	var r models.Route
	if err := h.decode(c, &r); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON payload")
	}
	if r.ID == "" {
		r.ID = h.newID()
	}
	if r.Date.IsZero() {
		r.Date = h.now().UTC()
	}
	if r.Addresses == nil {
		r.Addresses = []models.Address{}
	}

	if err := h.routes.SaveRoute(c.Request().Context(), r); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Failed to save route: %v", err))
	}
	return c.JSON(http.StatusCreated, r)
}

// GetRoute handles GET /v1/routes/:id
func (h *Handlers) GetRoute(c echo.Context) error {
	r, err := h.routes.GetRoute(c.Request().Context(), c.Param("id"))
	if errors.Is(err, route.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Route not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Failed to load route: %v", err))
	}
	return c.JSON(http.StatusOK, r)
}

// DeleteRoute handles DELETE /v1/routes/:id. Images referenced by the
// route are dropped from the cache as well.
func (h *Handlers) DeleteRoute(c echo.Context) error {
	ctx := c.Request().Context()
	r, err := h.routes.DeleteRoute(ctx, c.Param("id"))
	if errors.Is(err, route.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Route not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Failed to delete route: %v", err))
	}

	for _, id := range r.ImageIDs {
		if err := h.images.Delete(ctx, id); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("route_id", r.ID).Str("image_id", id).Msg("failed to delete route image")
		}
	}
	return c.NoContent(http.StatusNoContent)
}

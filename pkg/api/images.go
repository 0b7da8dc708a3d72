package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"routedog/pkg/imagecache"
	"routedog/pkg/imaging"
	"routedog/pkg/models"
)

// UploadImage handles POST /v1/images
func (h *Handlers) UploadImage(c echo.Context) error {
	raw, err := h.readUpload(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	thumb, readable, err := h.normalizeBoth(raw)
	if err != nil {
		return normalizeError(err)
	}

	id := h.newID()
	data := []byte(readable.DataURL())
	if err := h.images.Store(ctx, id, data); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Failed to store image: %v", err))
	}

	return c.JSON(http.StatusCreated, models.StoredImageResponse{
		ID:        id,
		Thumbnail: thumb.DataURL(),
		Width:     readable.Width,
		Height:    readable.Height,
		SizeBytes: int64(len(data)),
	})
}

// GetImage handles GET /v1/images/:id
func (h *Handlers) GetImage(c echo.Context) error {
	id := c.Param("id")
	data, err := h.loadImage(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, models.ImageResponse{ID: id, Data: string(data)})
}

// GetRawImage handles GET /v1/images/:id/raw
func (h *Handlers) GetRawImage(c echo.Context) error {
	data, err := h.loadImage(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	mime, payload, err := imaging.ParseDataURL(string(data))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Stored image is corrupt: %v", err))
	}
	return c.Blob(http.StatusOK, mime, payload)
}

// DeleteImage handles DELETE /v1/images/:id
func (h *Handlers) DeleteImage(c echo.Context) error {
	if err := h.images.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Failed to delete image: %v", err))
	}
	return c.NoContent(http.StatusNoContent)
}

// ImageUsage handles GET /v1/images/usage
func (h *Handlers) ImageUsage(c echo.Context) error {
	usage, err := h.images.Usage(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Failed to read usage: %v", err))
	}
	return c.JSON(http.StatusOK, usage)
}

// UploadStops handles POST /v1/uploads: it caches the photo and turns it
// into geocoded stops in one call.
func (h *Handlers) UploadStops(c echo.Context) error {
	raw, err := h.readUpload(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	thumb, readable, err := h.normalizeBoth(raw)
	if err != nil {
		return normalizeError(err)
	}

	id := h.newID()
	stored := true
	if err := h.images.Store(ctx, id, []byte(readable.DataURL())); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("image_id", id).Msg("failed to cache image, continuing without it")
		stored = false
	}

	addresses, err := h.extractAndGeocode(ctx, base64.StdEncoding.EncodeToString(raw))
	if err != nil {
		// The client never learns the id, so the cached copy is unreachable.
		if stored {
			if derr := h.images.Delete(ctx, id); derr != nil {
				log.Ctx(ctx).Error().Err(derr).Str("image_id", id).Msg("failed to drop image after extraction failure")
			}
		}
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Failed to extract addresses: %v", err))
	}

	return c.JSON(http.StatusOK, models.UploadResponse{
		ID:        id,
		Thumbnail: thumb.DataURL(),
		Stored:    stored,
		Addresses: addresses,
	})
}

func (h *Handlers) loadImage(ctx context.Context, id string) ([]byte, error) {
	data, err := h.images.Get(ctx, id)
	if errors.Is(err, imagecache.ErrNotFound) {
		return nil, echo.NewHTTPError(http.StatusNotFound, "Image not found")
	}
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Failed to load image: %v", err))
	}
	return data, nil
}

// readUpload returns the bytes of the multipart "file" field.
func (h *Handlers) readUpload(c echo.Context) ([]byte, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "File is required")
	}
	if fh.Size > h.maxUploadBytes {
		return nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "File is too large")
	}

	f, err := fh.Open()
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Cannot read file: %v", err))
	}
	defer f.Close()

	raw, err := io.ReadAll(io.LimitReader(f, h.maxUploadBytes+1))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Cannot read file: %v", err))
	}
	if int64(len(raw)) > h.maxUploadBytes {
		return nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "File is too large")
	}
	if len(raw) == 0 {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "File is empty")
	}
	return raw, nil
}

func normalizeError(err error) error {
	if errors.Is(err, imaging.ErrTooLarge) {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "Image dimensions are too large")
	}
	return echo.NewHTTPError(http.StatusUnprocessableEntity, fmt.Sprintf("Failed to process image: %v", err))
}

// normalizeBoth builds the thumbnail and readable profiles in parallel.
// A failure of either one fails the whole upload.
func (h *Handlers) normalizeBoth(raw []byte) (thumb, readable *imaging.Encoded, err error) {
	thumbProfile, readableProfile := imaging.Thumbnail, imaging.Readable
	thumbProfile.MaxPixels = h.maxImagePixels
	readableProfile.MaxPixels = h.maxImagePixels

	var g errgroup.Group
	g.Go(func() error {
		var err error
		thumb, err = h.normalize(bytes.NewReader(raw), thumbProfile)
		if err != nil {
			return fmt.Errorf("thumbnail: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		readable, err = h.normalize(bytes.NewReader(raw), readableProfile)
		if err != nil {
			return fmt.Errorf("readable: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return thumb, readable, nil
}

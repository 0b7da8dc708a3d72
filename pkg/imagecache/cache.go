// Package imagecache keeps normalized images in durable storage under a
// fixed byte ceiling.
//
// Eviction is strictly by insertion age: when a Store would push the
// aggregate size over the ceiling, the oldest records are deleted until
// enough space is freed. Reads never affect eviction order. The incoming
// image is always inserted, even when it alone exceeds the ceiling.
package imagecache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"routedog/pkg/metrics"
	"routedog/pkg/repository/image"
)

// MaxStorageBytes is the default ceiling.
const MaxStorageBytes int64 = 50 * 1024 * 1024

var (
	ErrEmptyID   = errors.New("image id is empty")
	ErrEmptyData = errors.New("image data is empty")
	ErrNotFound  = image.ErrNotFound
)

// Usage is a diagnostic snapshot of the cache.
type Usage struct {
	TotalBytes int64 `json:"totalBytes"`
	Count      int   `json:"count"`
	MaxBytes   int64 `json:"maxBytes"`
}

// Cache is a size-bounded image store over an ImageRepository.
type Cache struct {
	repo     image.ImageRepository
	maxBytes int64
	now      func() time.Time
	reg      *metrics.Registry

	// mu serializes the usage -> evict -> insert sequence and guards last.
	mu   sync.Mutex
	last time.Time
}

type Option func(*Cache)

// WithMaxBytes overrides the ceiling. Non-positive values are ignored.
func WithMaxBytes(n int64) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxBytes = n
		}
	}
}

// WithClock sets the time source used for createdAt.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

func WithMetrics(reg *metrics.Registry) Option {
	return func(c *Cache) {
		c.reg = reg
	}
}

// New creates a cache over repo. The cache owns repo and closes it in Close.
func New(repo image.ImageRepository, opts ...Option) *Cache {
	c := &Cache{
		repo:     repo,
		maxBytes: MaxStorageBytes,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MaxBytes returns the configured ceiling.
func (c *Cache) MaxBytes() int64 {
	return c.maxBytes
}

// Store inserts data under id, evicting the oldest records first if the
// ceiling would otherwise be exceeded. Storing an existing id replaces it.
func (c *Cache) Store(ctx context.Context, id string, data []byte) error {
	if id == "" {
		return ErrEmptyID
	}
	if len(data) == 0 {
		return ErrEmptyData
	}
	size := int64(len(data))

	c.mu.Lock()
	defer c.mu.Unlock()

	metas, err := c.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("store %q: %w", id, err)
	}

	for _, m := range metas {
		if m.CreatedAt.After(c.last) {
			c.last = m.CreatedAt
		}
	}

	remaining, err := c.evict(ctx, id, metas, size)
	if err != nil {
		return fmt.Errorf("store %q: %w", id, err)
	}

	rec := image.Record{
		Meta: image.Meta{ID: id, SizeBytes: size, CreatedAt: c.nextTimestamp()},
		Data: data,
	}
	if err := c.repo.Put(ctx, rec); err != nil {
		return fmt.Errorf("store %q: %w", id, err)
	}

	log.Ctx(ctx).Info().Str("image_id", id).Int64("bytes", size).Msg("image cached")
	if c.reg != nil {
		c.reg.Inc(ctx, "images_saved_total", nil, 1)
		c.reg.Inc(ctx, "images_bytes_stored_total", nil, size)
		c.reg.Set(ctx, "image_cache_bytes", nil, remaining+size)
	}
	return nil
}

// evict deletes the oldest records until incoming fits under the ceiling
// or nothing is left to delete. A record already stored under id counts
// as replaced: it is excluded from usage and never evicted here.
// It returns the usage left after eviction, excluding the incoming record.
func (c *Cache) evict(ctx context.Context, id string, metas []image.Meta, incoming int64) (int64, error) {
	candidates := make([]image.Meta, 0, len(metas))
	var usage int64
	for _, m := range metas {
		if m.ID == id {
			continue
		}
		usage += m.SizeBytes
		candidates = append(candidates, m)
	}

	if usage+incoming <= c.maxBytes {
		return usage, nil
	}
	needed := usage + incoming - c.maxBytes

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].ID < candidates[j].ID
		}
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})

	var freed int64
	for _, m := range candidates {
		if freed >= needed {
			break
		}
		if err := c.repo.Delete(ctx, m.ID); err != nil {
			return usage - freed, fmt.Errorf("evict %q: %w", m.ID, err)
		}
		freed += m.SizeBytes

		log.Ctx(ctx).Info().Str("image_id", m.ID).Int64("bytes", m.SizeBytes).Msg("evicted old image to free space")
		if c.reg != nil {
			c.reg.Inc(ctx, "images_evicted_total", nil, 1)
			c.reg.Inc(ctx, "images_bytes_evicted_total", nil, m.SizeBytes)
		}
	}
	return usage - freed, nil
}

// nextTimestamp returns a createdAt strictly after the previous one and
// after every record already in the repository. Callers hold mu.
func (c *Cache) nextTimestamp() time.Time {
	ts := c.now().UTC()
	if !ts.After(c.last) {
		ts = c.last.Add(time.Nanosecond)
	}
	c.last = ts
	return ts
}

// Get returns the payload stored under id, or ErrNotFound.
func (c *Cache) Get(ctx context.Context, id string) ([]byte, error) {
	rec, err := c.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, image.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get %q: %w", id, err)
	}
	return rec.Data, nil
}

// Delete removes id. Deleting a missing id is not an error.
func (c *Cache) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete %q: %w", id, err)
	}
	if c.reg == nil {
		return nil
	}

	c.reg.Inc(ctx, "images_deleted_total", nil, 1)
	u, err := c.Usage(ctx)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("image_id", id).Msg("cannot refresh cache size after delete")
		return nil
	}
	c.reg.Set(ctx, "image_cache_bytes", nil, u.TotalBytes)
	return nil
}

// TotalBytes returns the aggregate recorded size of all stored images.
func (c *Cache) TotalBytes(ctx context.Context) (int64, error) {
	u, err := c.Usage(ctx)
	if err != nil {
		return 0, err
	}
	return u.TotalBytes, nil
}

func (c *Cache) Usage(ctx context.Context) (Usage, error) {
	metas, err := c.repo.List(ctx)
	if err != nil {
		return Usage{}, fmt.Errorf("usage: %w", err)
	}
	u := Usage{Count: len(metas), MaxBytes: c.maxBytes}
	for _, m := range metas {
		u.TotalBytes += m.SizeBytes
	}
	return u, nil
}

// Close releases the underlying repository.
func (c *Cache) Close() error {
	return c.repo.Close()
}

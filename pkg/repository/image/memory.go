package image

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// MemoryRepository is an in-memory ImageRepository implementation.
type MemoryRepository struct {
	mu   sync.RWMutex
	data map[string]Record
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{data: make(map[string]Record)}
}

// Put stores a copy of the record.
func (r *MemoryRepository) Put(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		return errors.New("empty image id")
	}

	// Make a copy of the data to avoid external modifications.
	copyBuf := make([]byte, len(rec.Data))
	copy(copyBuf, rec.Data)
	rec.Data = copyBuf

	r.mu.Lock()
	r.data[rec.ID] = rec
	r.mu.Unlock()

	log.Ctx(ctx).Debug().Str("image_id", rec.ID).Int64("bytes", rec.SizeBytes).Msg("image saved to memory")
	return nil
}

// Get returns a copy of stored data by id without deleting it.
func (r *MemoryRepository) Get(ctx context.Context, id string) (Record, error) {
	r.mu.RLock()
	rec, ok := r.data[id]
	r.mu.RUnlock()
	if !ok {
		return Record{}, ErrNotFound
	}
	out := make([]byte, len(rec.Data))
	copy(out, rec.Data)
	rec.Data = out
	return rec, nil
}

// Delete removes the entry from memory.
func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	rec, ok := r.data[id]
	if ok {
		delete(r.data, id)
	}
	r.mu.Unlock()

	if ok {
		log.Ctx(ctx).Debug().Str("image_id", id).Int64("bytes", rec.SizeBytes).Msg("image memory freed")
	}
	return nil
}

func (r *MemoryRepository) List(ctx context.Context) ([]Meta, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Meta, 0, len(r.data))
	for _, rec := range r.data {
		out = append(out, rec.Meta)
	}
	return out, nil
}

func (r *MemoryRepository) Close() error { return nil }

package image

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no image is stored under the requested id.
var ErrNotFound = errors.New("image not found")

// Meta describes a stored image without its payload.
type Meta struct {
	ID        string
	SizeBytes int64
	CreatedAt time.Time
}

// Record is a stored image. SizeBytes and CreatedAt are assigned by the
// caller at insertion time and stored verbatim.
type Record struct {
	Meta
	Data []byte
}

// ImageRepository defines durable keyed storage for image payloads.
// Implementations must be safe for concurrent use.
type ImageRepository interface {
	// Put stores rec under rec.ID, replacing any previous record.
	Put(ctx context.Context, rec Record) error
	// Get returns the record by id or ErrNotFound.
	Get(ctx context.Context, id string) (Record, error)
	// Delete removes the record. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error
	// List returns metadata for every stored record, in no particular order.
	List(ctx context.Context) ([]Meta, error)
	// Close releases the underlying storage handle.
	Close() error
}

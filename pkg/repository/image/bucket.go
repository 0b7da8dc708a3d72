package image

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	// URL openers for the schemes accepted by OpenBucket.
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
)

const (
	defaultPrefix = "images/"

	// Metadata keys are lowercased by gocloud.
	metaSize      = "size-bytes"
	metaCreatedAt = "created-at"
	metaEncoding  = "encoding"

	encodingZstd = "zstd"
)

// BucketRepository stores images as objects in a gocloud.dev blob bucket.
// Each image is one object; its size and creation time travel in the
// object metadata so List never reads payloads.
type BucketRepository struct {
	bucket *blob.Bucket
	prefix string

	compress bool
	encoder  *zstd.Encoder
	decoder  *zstd.Decoder
}

type BucketOption func(*BucketRepository)

// WithCompression zstd-compresses payloads at rest. Recorded sizes stay
// the logical payload size.
func WithCompression() BucketOption {
	return func(r *BucketRepository) {
		r.compress = true
	}
}

// WithPrefix overrides the object key prefix (default "images/").
func WithPrefix(prefix string) BucketOption {
	return func(r *BucketRepository) {
		if prefix != "" && !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		r.prefix = prefix
	}
}

// OpenBucketRepository opens the bucket at url (file://, mem://, s3://, ...).
func OpenBucketRepository(ctx context.Context, url string, opts ...BucketOption) (*BucketRepository, error) {
	bucket, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("open bucket %q: %w", url, err)
	}
	r, err := NewBucketRepository(bucket, opts...)
	if err != nil {
		_ = bucket.Close()
		return nil, err
	}
	return r, nil
}

// NewBucketRepository wraps an already opened bucket. The repository owns
// the bucket and closes it in Close.
func NewBucketRepository(bucket *blob.Bucket, opts ...BucketOption) (*BucketRepository, error) {
	r := &BucketRepository{bucket: bucket, prefix: defaultPrefix}
	for _, opt := range opts {
		opt(r)
	}

	// The decoder is always available so compressed objects stay readable
	// after compression is switched off.
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	r.decoder = dec

	if r.compress {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			dec.Close()
			return nil, fmt.Errorf("zstd encoder: %w", err)
		}
		r.encoder = enc
	}
	return r, nil
}

func (r *BucketRepository) key(id string) string {
	return r.prefix + id
}

func (r *BucketRepository) Put(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		return errors.New("empty image id")
	}

	payload := rec.Data
	md := map[string]string{
		metaSize:      strconv.FormatInt(rec.SizeBytes, 10),
		metaCreatedAt: rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if r.compress {
		payload = r.encoder.EncodeAll(rec.Data, make([]byte, 0, len(rec.Data)/2))
		md[metaEncoding] = encodingZstd
	}

	err := r.bucket.WriteAll(ctx, r.key(rec.ID), payload, &blob.WriterOptions{
		ContentType: "application/octet-stream",
		Metadata:    md,
	})
	if err != nil {
		return fmt.Errorf("write image %q: %w", rec.ID, err)
	}

	log.Ctx(ctx).Debug().
		Str("image_id", rec.ID).
		Int64("bytes", rec.SizeBytes).
		Int("stored_bytes", len(payload)).
		Msg("image written to bucket")
	return nil
}

func (r *BucketRepository) Get(ctx context.Context, id string) (Record, error) {
	key := r.key(id)

	attrs, err := r.bucket.Attributes(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return Record{}, fmt.Errorf("image %q: %w", id, ErrNotFound)
		}
		return Record{}, fmt.Errorf("stat image %q: %w", id, err)
	}

	data, err := r.bucket.ReadAll(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return Record{}, fmt.Errorf("image %q: %w", id, ErrNotFound)
		}
		return Record{}, fmt.Errorf("read image %q: %w", id, err)
	}

	if attrs.Metadata[metaEncoding] == encodingZstd {
		data, err = r.decoder.DecodeAll(data, nil)
		if err != nil {
			return Record{}, fmt.Errorf("decompress image %q: %w", id, err)
		}
	}

	meta, err := parseMeta(id, attrs.Metadata)
	if err != nil {
		return Record{}, err
	}
	return Record{Meta: meta, Data: data}, nil
}

func (r *BucketRepository) Delete(ctx context.Context, id string) error {
	err := r.bucket.Delete(ctx, r.key(id))
	if err != nil && gcerrors.Code(err) != gcerrors.NotFound {
		return fmt.Errorf("delete image %q: %w", id, err)
	}
	return nil
}

func (r *BucketRepository) List(ctx context.Context) ([]Meta, error) {
	var out []Meta
	iter := r.bucket.List(&blob.ListOptions{Prefix: r.prefix})
	for {
		obj, err := iter.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list images: %w", err)
		}
		if obj.IsDir {
			continue
		}

		id := strings.TrimPrefix(obj.Key, r.prefix)
		attrs, err := r.bucket.Attributes(ctx, obj.Key)
		if err != nil {
			if gcerrors.Code(err) == gcerrors.NotFound {
				// Deleted between List and Attributes.
				continue
			}
			return nil, fmt.Errorf("stat image %q: %w", id, err)
		}
		meta, err := parseMeta(id, attrs.Metadata)
		if err != nil {
			return nil, err
		}
		out = append(out, meta)
	}
	return out, nil
}

func (r *BucketRepository) Close() error {
	if r.encoder != nil {
		_ = r.encoder.Close()
	}
	if r.decoder != nil {
		r.decoder.Close()
	}
	return r.bucket.Close()
}

func parseMeta(id string, md map[string]string) (Meta, error) {
	size, err := strconv.ParseInt(md[metaSize], 10, 64)
	if err != nil {
		return Meta{}, fmt.Errorf("image %q: bad %s metadata: %w", id, metaSize, err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, md[metaCreatedAt])
	if err != nil {
		return Meta{}, fmt.Errorf("image %q: bad %s metadata: %w", id, metaCreatedAt, err)
	}
	return Meta{ID: id, SizeBytes: size, CreatedAt: createdAt}, nil
}

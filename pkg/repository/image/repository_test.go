package image_test

import (
	"bytes"
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/blob/memblob"

	"routedog/pkg/repository/image"
)

func record(id string, data string, createdAt time.Time) image.Record {
	return image.Record{
		Meta: image.Meta{ID: id, SizeBytes: int64(len(data)), CreatedAt: createdAt},
		Data: []byte(data),
	}
}

func backends() map[string]func(t *testing.T) image.ImageRepository {
	return map[string]func(t *testing.T) image.ImageRepository{
		"memory": func(t *testing.T) image.ImageRepository {
			return image.NewMemoryRepository()
		},
		"memblob": func(t *testing.T) image.ImageRepository {
			repo, err := image.NewBucketRepository(memblob.OpenBucket(nil))
			require.NoError(t, err)
			return repo
		},
		"fileblob": func(t *testing.T) image.ImageRepository {
			bucket, err := fileblob.OpenBucket(t.TempDir(), nil)
			require.NoError(t, err)
			repo, err := image.NewBucketRepository(bucket)
			require.NoError(t, err)
			return repo
		},
		"fileblob+zstd": func(t *testing.T) image.ImageRepository {
			bucket, err := fileblob.OpenBucket(t.TempDir(), nil)
			require.NoError(t, err)
			repo, err := image.NewBucketRepository(bucket, image.WithCompression())
			require.NoError(t, err)
			return repo
		},
	}
}

func TestRepositoryContract(t *testing.T) {
	created := time.Date(2025, 1, 2, 3, 4, 5, 123456789, time.UTC)

	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := open(t)
			defer repo.Close()

			_, err := repo.Get(ctx, "missing")
			require.ErrorIs(t, err, image.ErrNotFound)

			payload := "data:image/jpeg;base64," + string(bytes.Repeat([]byte("QUJD"), 64))
			require.NoError(t, repo.Put(ctx, record("a", payload, created)))
			require.NoError(t, repo.Put(ctx, record("b", "data:image/png;base64,AAAA", created.Add(time.Millisecond))))

			got, err := repo.Get(ctx, "a")
			require.NoError(t, err)
			require.Equal(t, payload, string(got.Data))
			require.EqualValues(t, len(payload), got.SizeBytes)
			require.True(t, created.Equal(got.CreatedAt), "created %v, got %v", created, got.CreatedAt)

			metas, err := repo.List(ctx)
			require.NoError(t, err)
			sort.Slice(metas, func(i, j int) bool { return metas[i].ID < metas[j].ID })
			require.Len(t, metas, 2)
			require.Equal(t, "a", metas[0].ID)
			require.Equal(t, "b", metas[1].ID)
			require.EqualValues(t, len("data:image/png;base64,AAAA"), metas[1].SizeBytes)

			// Overwrite replaces size and timestamp.
			require.NoError(t, repo.Put(ctx, record("a", "tiny", created.Add(time.Second))))
			got, err = repo.Get(ctx, "a")
			require.NoError(t, err)
			require.Equal(t, "tiny", string(got.Data))
			require.EqualValues(t, 4, got.SizeBytes)

			require.NoError(t, repo.Delete(ctx, "a"))
			require.NoError(t, repo.Delete(ctx, "a"))
			require.NoError(t, repo.Delete(ctx, "never-existed"))

			_, err = repo.Get(ctx, "a")
			require.ErrorIs(t, err, image.ErrNotFound)

			metas, err = repo.List(ctx)
			require.NoError(t, err)
			require.Len(t, metas, 1)
		})
	}
}

func TestMemoryRepositoryCopies(t *testing.T) {
	ctx := context.Background()
	repo := image.NewMemoryRepository()

	buf := []byte("abc")
	require.NoError(t, repo.Put(ctx, image.Record{Meta: image.Meta{ID: "x", SizeBytes: 3}, Data: buf}))
	buf[0] = 'z'

	got, err := repo.Get(ctx, "x")
	require.NoError(t, err)
	require.Equal(t, "abc", string(got.Data))

	got.Data[1] = 'z'
	again, err := repo.Get(ctx, "x")
	require.NoError(t, err)
	require.Equal(t, "abc", string(again.Data))
}

func TestBucketRepositorySurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	created := time.Now().UTC()

	bucket, err := fileblob.OpenBucket(dir, nil)
	require.NoError(t, err)
	repo, err := image.NewBucketRepository(bucket, image.WithCompression())
	require.NoError(t, err)
	require.NoError(t, repo.Put(ctx, record("persisted", "data:image/jpeg;base64,/9j/4AAQ", created)))
	require.NoError(t, repo.Close())

	// Reopen without compression; compressed objects must stay readable.
	bucket, err = fileblob.OpenBucket(dir, nil)
	require.NoError(t, err)
	repo, err = image.NewBucketRepository(bucket)
	require.NoError(t, err)
	defer repo.Close()

	got, err := repo.Get(ctx, "persisted")
	require.NoError(t, err)
	require.Equal(t, "data:image/jpeg;base64,/9j/4AAQ", string(got.Data))
	require.True(t, created.Equal(got.CreatedAt))
}

func TestOpenBucketRepositoryURL(t *testing.T) {
	ctx := context.Background()
	repo, err := image.OpenBucketRepository(ctx, "mem://", image.WithPrefix("cache"))
	require.NoError(t, err)
	defer repo.Close()

	require.NoError(t, repo.Put(ctx, record("k", "v", time.Now())))
	metas, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, metas, 1)
	require.Equal(t, "k", metas[0].ID)
}

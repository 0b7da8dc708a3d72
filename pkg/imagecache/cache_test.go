package imagecache_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routedog/pkg/imagecache"
	"routedog/pkg/metrics"
	"routedog/pkg/repository/image"
)

const mib = 1024 * 1024

// fakeClock advances one millisecond per call.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func payload(n int) []byte {
	return bytes.Repeat([]byte{'x'}, n)
}

func ids(t *testing.T, repo image.ImageRepository) []string {
	t.Helper()
	metas, err := repo.List(context.Background())
	require.NoError(t, err)
	out := make([]string, 0, len(metas))
	for _, m := range metas {
		out = append(out, m.ID)
	}
	sort.Strings(out)
	return out
}

func newCache(maxBytes int64) (*imagecache.Cache, *image.MemoryRepository) {
	repo := image.NewMemoryRepository()
	return imagecache.New(repo, imagecache.WithMaxBytes(maxBytes), imagecache.WithClock(newFakeClock().Now)), repo
}

func TestStoreUnderCeilingKeepsEverything(t *testing.T) {
	ctx := context.Background()
	cache, repo := newCache(100)

	sizes := []int{10, 20, 30, 40}
	var sum int64
	for i, n := range sizes {
		require.NoError(t, cache.Store(ctx, fmt.Sprintf("img-%d", i), payload(n)))
		sum += int64(n)
	}

	total, err := cache.TotalBytes(ctx)
	require.NoError(t, err)
	require.Equal(t, sum, total)
	require.Equal(t, []string{"img-0", "img-1", "img-2", "img-3"}, ids(t, repo))
}

func TestStoreEvictsOldestFirst(t *testing.T) {
	ctx := context.Background()
	cache, repo := newCache(100)

	require.NoError(t, cache.Store(ctx, "a", payload(30)))
	require.NoError(t, cache.Store(ctx, "b", payload(30)))
	require.NoError(t, cache.Store(ctx, "c", payload(30)))

	// needed = 90+25-100 = 15; evicting a frees 30.
	require.NoError(t, cache.Store(ctx, "d", payload(25)))
	require.Equal(t, []string{"b", "c", "d"}, ids(t, repo))

	// needed = 85+50-100 = 35; a single eviction of b is not enough.
	require.NoError(t, cache.Store(ctx, "e", payload(50)))
	require.Equal(t, []string{"d", "e"}, ids(t, repo))

	total, err := cache.TotalBytes(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 75, total)
}

func TestReadDoesNotProtectFromEviction(t *testing.T) {
	ctx := context.Background()
	cache, repo := newCache(100)

	require.NoError(t, cache.Store(ctx, "a", payload(40)))
	require.NoError(t, cache.Store(ctx, "b", payload(40)))

	for i := 0; i < 3; i++ {
		_, err := cache.Get(ctx, "a")
		require.NoError(t, err)
	}

	require.NoError(t, cache.Store(ctx, "c", payload(40)))
	require.Equal(t, []string{"b", "c"}, ids(t, repo))

	_, err := cache.Get(ctx, "a")
	require.ErrorIs(t, err, imagecache.ErrNotFound)
}

func TestDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	cache, _ := newCache(100)

	require.NoError(t, cache.Store(ctx, "a", payload(10)))
	require.NoError(t, cache.Delete(ctx, "missing"))

	total, err := cache.TotalBytes(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 10, total)

	require.NoError(t, cache.Delete(ctx, "a"))
	require.NoError(t, cache.Delete(ctx, "a"))

	total, err = cache.TotalBytes(ctx)
	require.NoError(t, err)
	require.Zero(t, total)
}

func TestTwentyMegabyteScenario(t *testing.T) {
	ctx := context.Background()
	repo := image.NewMemoryRepository()
	cache := imagecache.New(repo, imagecache.WithClock(newFakeClock().Now))
	require.Equal(t, imagecache.MaxStorageBytes, cache.MaxBytes())

	require.NoError(t, cache.Store(ctx, "first", payload(20*mib)))
	require.NoError(t, cache.Store(ctx, "second", payload(20*mib)))
	require.NoError(t, cache.Store(ctx, "third", payload(20*mib)))

	// The third store already exceeded the ceiling and evicted the first.
	require.Equal(t, []string{"second", "third"}, ids(t, repo))
}

func TestFifteenMegabyteStoreEvictsTwo(t *testing.T) {
	ctx := context.Background()
	repo := image.NewMemoryRepository()
	clock := newFakeClock()

	// Seed the repository directly so the three 20 MiB images coexist
	// before the fourth store runs eviction.
	for i, id := range []string{"first", "second", "third"} {
		require.NoError(t, repo.Put(ctx, image.Record{
			Meta: image.Meta{ID: id, SizeBytes: 20 * mib, CreatedAt: clock.Now().Add(time.Duration(i))},
			Data: payload(20 * mib),
		}))
	}

	reg := metrics.NewRegistry()
	cache := imagecache.New(repo, imagecache.WithClock(clock.Now), imagecache.WithMetrics(reg))

	// needed = (60+15)-50 = 25; first frees 20, second brings it to 40.
	require.NoError(t, cache.Store(ctx, "fourth", payload(15*mib)))
	require.Equal(t, []string{"fourth", "third"}, ids(t, repo))

	total, err := cache.TotalBytes(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 35*mib, total)

	require.EqualValues(t, 2, reg.Value("images_evicted_total", nil))
	require.EqualValues(t, 40*mib, reg.Value("images_bytes_evicted_total", nil))
	require.EqualValues(t, 35*mib, reg.Value("image_cache_bytes", nil))
}

func TestOversizedImageIsStillInserted(t *testing.T) {
	ctx := context.Background()
	cache, repo := newCache(100)

	require.NoError(t, cache.Store(ctx, "a", payload(40)))
	require.NoError(t, cache.Store(ctx, "b", payload(40)))
	require.NoError(t, cache.Store(ctx, "huge", payload(250)))

	require.Equal(t, []string{"huge"}, ids(t, repo))
	got, err := cache.Get(ctx, "huge")
	require.NoError(t, err)
	require.Len(t, got, 250)
}

func TestOverwriteReplacesInsteadOfAdding(t *testing.T) {
	ctx := context.Background()
	cache, repo := newCache(100)

	require.NoError(t, cache.Store(ctx, "a", payload(30)))
	require.NoError(t, cache.Store(ctx, "b", payload(30)))
	require.NoError(t, cache.Store(ctx, "c", payload(30)))

	// Replacing b with 40 bytes: 60 others + 40 = 100 fits without eviction.
	require.NoError(t, cache.Store(ctx, "b", payload(40)))
	require.Equal(t, []string{"a", "b", "c"}, ids(t, repo))

	total, err := cache.TotalBytes(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 100, total)

	// The overwrite refreshed b's age, so a and then c go before b.
	require.NoError(t, cache.Store(ctx, "d", payload(50)))
	require.Equal(t, []string{"b", "d"}, ids(t, repo))
}

func TestStoreValidation(t *testing.T) {
	ctx := context.Background()
	cache, repo := newCache(100)

	require.ErrorIs(t, cache.Store(ctx, "", payload(1)), imagecache.ErrEmptyID)
	require.ErrorIs(t, cache.Store(ctx, "a", nil), imagecache.ErrEmptyData)
	require.Empty(t, ids(t, repo))
}

func TestConcurrentStoresRespectCeiling(t *testing.T) {
	ctx := context.Background()
	repo := image.NewMemoryRepository()
	cache := imagecache.New(repo, imagecache.WithMaxBytes(1000))

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, cache.Store(ctx, fmt.Sprintf("img-%02d", i), payload(100+i)))
		}(i)
	}
	wg.Wait()

	total, err := cache.TotalBytes(ctx)
	require.NoError(t, err)
	require.LessOrEqual(t, total, int64(1000))

	usage, err := cache.Usage(ctx)
	require.NoError(t, err)
	require.Equal(t, total, usage.TotalBytes)
	require.EqualValues(t, 1000, usage.MaxBytes)
	require.NotZero(t, usage.Count)
}

func TestCreatedAtIsStrictlyIncreasing(t *testing.T) {
	ctx := context.Background()
	repo := image.NewMemoryRepository()
	frozen := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := imagecache.New(repo, imagecache.WithMaxBytes(100), imagecache.WithClock(func() time.Time { return frozen }))

	require.NoError(t, cache.Store(ctx, "z", payload(40)))
	require.NoError(t, cache.Store(ctx, "a", payload(40)))
	require.NoError(t, cache.Store(ctx, "m", payload(40)))

	// With a frozen clock, insertion order still decides: z is oldest.
	require.Equal(t, []string{"a", "m"}, ids(t, repo))
}

type failingRepo struct {
	*image.MemoryRepository
	failDelete bool
}

var errBroken = errors.New("disk on fire")

func (r *failingRepo) Delete(ctx context.Context, id string) error {
	if r.failDelete {
		return errBroken
	}
	return r.MemoryRepository.Delete(ctx, id)
}

func TestStorageErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	repo := &failingRepo{MemoryRepository: image.NewMemoryRepository()}
	cache := imagecache.New(repo, imagecache.WithMaxBytes(100))

	require.NoError(t, cache.Store(ctx, "a", payload(80)))

	repo.failDelete = true
	err := cache.Store(ctx, "b", payload(80))
	require.ErrorIs(t, err, errBroken)
	require.Equal(t, []string{"a"}, ids(t, repo))

	require.ErrorIs(t, cache.Delete(ctx, "a"), errBroken)
	require.NoError(t, cache.Close())
}

func TestMetricsAreRecorded(t *testing.T) {
	ctx := context.Background()
	reg := metrics.NewRegistry()
	cache := imagecache.New(image.NewMemoryRepository(), imagecache.WithMaxBytes(100), imagecache.WithMetrics(reg))

	require.NoError(t, cache.Store(ctx, "a", payload(60)))
	require.NoError(t, cache.Store(ctx, "b", payload(60)))
	require.NoError(t, cache.Delete(ctx, "b"))

	require.EqualValues(t, 2, reg.Value("images_saved_total", nil))
	require.EqualValues(t, 120, reg.Value("images_bytes_stored_total", nil))
	require.EqualValues(t, 1, reg.Value("images_evicted_total", nil))
	require.EqualValues(t, 60, reg.Value("images_bytes_evicted_total", nil))
	require.EqualValues(t, 1, reg.Value("images_deleted_total", nil))
	require.EqualValues(t, 0, reg.Value("image_cache_bytes", nil))
}

func TestDeleteLowersCacheGauge(t *testing.T) {
	ctx := context.Background()
	reg := metrics.NewRegistry()
	cache := imagecache.New(image.NewMemoryRepository(), imagecache.WithMaxBytes(100), imagecache.WithMetrics(reg))

	require.NoError(t, cache.Store(ctx, "a", payload(30)))
	require.NoError(t, cache.Store(ctx, "b", payload(25)))
	require.EqualValues(t, 55, reg.Value("image_cache_bytes", nil))

	require.NoError(t, cache.Delete(ctx, "a"))
	require.EqualValues(t, 25, reg.Value("image_cache_bytes", nil))

	require.NoError(t, cache.Delete(ctx, "missing"))
	require.EqualValues(t, 25, reg.Value("image_cache_bytes", nil))
	require.EqualValues(t, 2, reg.Value("images_deleted_total", nil))
}

func TestStoreSortsAfterRecordsFromAheadClock(t *testing.T) {
	ctx := context.Background()
	repo := image.NewMemoryRepository()

	// Written earlier by a process whose clock ran years ahead.
	ahead := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Put(ctx, image.Record{
		Meta: image.Meta{ID: "old", SizeBytes: 40, CreatedAt: ahead},
		Data: payload(40),
	}))

	cache := imagecache.New(repo, imagecache.WithMaxBytes(100), imagecache.WithClock(newFakeClock().Now))
	require.NoError(t, cache.Store(ctx, "new", payload(40)))

	rec, err := repo.Get(ctx, "new")
	require.NoError(t, err)
	require.True(t, rec.CreatedAt.After(ahead))

	require.NoError(t, cache.Store(ctx, "third", payload(40)))
	require.Equal(t, []string{"new", "third"}, ids(t, repo))
}

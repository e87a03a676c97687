package cache_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChillFish8/lust/internal/domain"
	"github.com/ChillFish8/lust/internal/infrastructure/cache"
)

func key(bucket, preset string) domain.VariantKey {
	return domain.VariantKey{
		Bucket:  bucket,
		ImageID: uuid.New(),
		Preset:  preset,
		Format:  domain.FormatPNG,
	}
}

func TestNew_RejectsAmbiguousConfig(t *testing.T) {
	_, err := cache.New(cache.Config{})
	assert.Error(t, err)

	_, err = cache.New(cache.Config{MaxImages: 10, MaxCapacityMB: 10})
	assert.Error(t, err)
}

func TestVariantCache_CountEviction(t *testing.T) {
	c, err := cache.New(cache.Config{MaxImages: 2})
	require.NoError(t, err)

	first := key("photos", "small")
	second := key("photos", "small")
	third := key("photos", "small")

	c.Set(first, []byte("a"))
	c.Set(second, []byte("b"))
	c.Set(third, []byte("c"))

	_, ok := c.Get(first)
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = c.Get(second)
	assert.True(t, ok)
	_, ok = c.Get(third)
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestVariantCache_ByteCapacityEviction(t *testing.T) {
	c, err := cache.New(cache.Config{MaxCapacityMB: 1})
	require.NoError(t, err)

	big := bytes.Repeat([]byte{0xAB}, 600<<10)

	first := key("photos", "large")
	second := key("photos", "large")

	c.Set(first, big)
	c.Set(second, big)

	_, ok := c.Get(first)
	assert.False(t, ok, "insertion beyond capacity should evict the oldest entry")
	_, ok = c.Get(second)
	assert.True(t, ok)
	assert.LessOrEqual(t, c.Weight(), int64(1<<20))
}

func TestVariantCache_OversizePayloadIsNotCached(t *testing.T) {
	c, err := cache.New(cache.Config{MaxCapacityMB: 1})
	require.NoError(t, err)

	k := key("photos", "original")
	c.Set(k, bytes.Repeat([]byte{0x01}, 2<<20))

	_, ok := c.Get(k)
	assert.False(t, ok)
	assert.Zero(t, c.Weight())
}

func TestVariantCache_UpdateSameKeyKeepsWeightConsistent(t *testing.T) {
	c, err := cache.New(cache.Config{MaxCapacityMB: 1})
	require.NoError(t, err)

	k := key("photos", "small")
	c.Set(k, bytes.Repeat([]byte{0x01}, 1000))
	c.Set(k, bytes.Repeat([]byte{0x02}, 500))

	assert.Equal(t, int64(500), c.Weight())
	assert.Equal(t, 1, c.Len())
}

func TestVariantCache_GetOrComputeSingleFlight(t *testing.T) {
	c, err := cache.New(cache.Config{MaxImages: 100})
	require.NoError(t, err)

	k := key("photos", "small")

	var calls atomic.Int64
	gate := make(chan struct{})

	const waiters = 50
	results := make([][]byte, waiters)

	var start, done sync.WaitGroup
	start.Add(waiters)
	done.Add(waiters)
	for i := 0; i < waiters; i++ {
		go func(i int) {
			defer done.Done()
			start.Done()
			data, err := c.GetOrCompute(context.Background(), k, func() ([]byte, error) {
				<-gate
				calls.Add(1)
				return []byte("payload"), nil
			})
			require.NoError(t, err)
			results[i] = data
		}(i)
	}

	// Release the producer only once every caller is in flight.
	start.Wait()
	close(gate)
	done.Wait()

	assert.Equal(t, int64(1), calls.Load(), "producer must be invoked exactly once")
	for _, data := range results {
		assert.Equal(t, []byte("payload"), data)
	}
}

func TestVariantCache_GetOrComputeDoesNotCacheFailures(t *testing.T) {
	c, err := cache.New(cache.Config{MaxImages: 10})
	require.NoError(t, err)

	k := key("photos", "small")
	boom := errors.New("decode exploded")

	_, err = c.GetOrCompute(context.Background(), k, func() ([]byte, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	// The failure must not be negatively cached.
	data, err := c.GetOrCompute(context.Background(), k, func() ([]byte, error) {
		return []byte("recovered"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("recovered"), data)
}

func TestVariantCache_GetOrComputeCancelledWaiter(t *testing.T) {
	c, err := cache.New(cache.Config{MaxImages: 10})
	require.NoError(t, err)

	k := key("photos", "small")
	gate := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_, _ = c.GetOrCompute(context.Background(), k, func() ([]byte, error) {
			close(started)
			<-gate
			return []byte("late"), nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.GetOrCompute(ctx, k, func() ([]byte, error) {
		t.Fatal("second producer must not run while a flight is active")
		return nil, nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	// The original flight still completes for its own caller.
	close(gate)
}

func TestVariantCache_InvalidatePrefix(t *testing.T) {
	c, err := cache.New(cache.Config{MaxImages: 10})
	require.NoError(t, err)

	imageID := uuid.New()
	keep := key("photos", "small")
	doomedSmall := domain.VariantKey{Bucket: "photos", ImageID: imageID, Preset: "small", Format: domain.FormatPNG}
	doomedLarge := domain.VariantKey{Bucket: "photos", ImageID: imageID, Preset: "large", Format: domain.FormatWebP}

	c.Set(keep, []byte("keep"))
	c.Set(doomedSmall, []byte("a"))
	c.Set(doomedLarge, []byte("b"))

	c.InvalidatePrefix(domain.ImagePrefix("photos", imageID))

	_, ok := c.Get(doomedSmall)
	assert.False(t, ok)
	_, ok = c.Get(doomedLarge)
	assert.False(t, ok)
	_, ok = c.Get(keep)
	assert.True(t, ok)
}

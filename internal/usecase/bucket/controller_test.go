package bucket_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	adapter "github.com/ChillFish8/lust/internal/adapter/storage"
	"github.com/ChillFish8/lust/internal/domain"
	"github.com/ChillFish8/lust/internal/infrastructure/cache"
	"github.com/ChillFish8/lust/internal/infrastructure/config"
	"github.com/ChillFish8/lust/internal/infrastructure/dispatcher"
	"github.com/ChillFish8/lust/internal/infrastructure/processor"
	"github.com/ChillFish8/lust/internal/infrastructure/storage"
	"github.com/ChillFish8/lust/internal/usecase/bucket"
)

// countingBackend wraps the memory backend with operation counters so
// tests can observe the serving path's storage traffic.
type countingBackend struct {
	*storage.MemoryBackend
	gets atomic.Int64
	puts atomic.Int64
}

func (b *countingBackend) Get(ctx context.Context, path string) ([]byte, error) {
	b.gets.Add(1)
	return b.MemoryBackend.Get(ctx, path)
}

func (b *countingBackend) Put(ctx context.Context, path string, data []byte) error {
	b.puts.Add(1)
	return b.MemoryBackend.Put(ctx, path, data)
}

func testImage(t *testing.T, size int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for x := 0; x < size; x++ {
		for y := 0; y < size; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: uint8(x ^ y), A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeDims(t *testing.T, data []byte, want domain.Format) (int, int) {
	t.Helper()

	img, format, err := processor.New(0).Decode(data, "")
	require.NoError(t, err)
	require.Equal(t, want, format)
	return img.Bounds().Dx(), img.Bounds().Dy()
}

func bucketConfig(mode config.Mode) config.BucketConfig {
	return config.BucketConfig{
		Mode: mode,
		Formats: config.FormatsConfig{
			PNG:                      true,
			JPEG:                     true,
			WebP:                     true,
			OriginalImageStoreFormat: "jpeg",
		},
		DefaultServingFormat: "png",
		DefaultServingPreset: domain.PresetOriginal,
		Presets: map[string]config.PresetConfig{
			"small": {Width: 32, Height: 32, Filter: "lanczos3"},
			"large": {Width: 128, Height: 128, Filter: "lanczos3"},
		},
		MaxCustomDimension: 4096,
	}
}

type fixture struct {
	controller *bucket.Controller
	backend    *countingBackend
	cache      *cache.VariantCache
	pool       *dispatcher.Pool
}

type fixtureOption func(*bucket.ControllerOptions)

func withUploadLimit(limit int64) fixtureOption {
	return func(opts *bucket.ControllerOptions) { opts.UploadLimit = limit }
}

func withoutCache() fixtureOption {
	return func(opts *bucket.ControllerOptions) { opts.Cache = nil }
}

func newFixture(t *testing.T, cfg config.BucketConfig, opts ...fixtureOption) *fixture {
	t.Helper()

	backend := &countingBackend{MemoryBackend: storage.NewMemoryBackend()}
	variantCache, err := cache.New(cache.Config{MaxImages: 1000})
	require.NoError(t, err)

	pool := dispatcher.NewPool(4)
	t.Cleanup(pool.Close)

	options := bucket.ControllerOptions{
		Slug:      "photos",
		Config:    cfg,
		Processor: processor.New(0),
		Storage:   backend,
		Cache:     variantCache,
		Pool:      pool,
		Limiter:   dispatcher.NewLimiter(nil, 0),
		Logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &fixture{
		controller: bucket.NewController(options),
		backend:    backend,
		cache:      options.Cache,
		pool:       pool,
	}
}

func listAll(t *testing.T, backend adapter.Backend) []adapter.Entry {
	t.Helper()
	entries, _, err := backend.List(context.Background(), "photos", adapter.ListFilter{}, 1)
	require.NoError(t, err)
	return entries
}

func TestController_UploadAOT(t *testing.T) {
	f := newFixture(t, bucketConfig(config.ModeAOT))
	ctx := context.Background()

	report, err := f.controller.Upload(ctx, testImage(t, 256), "")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, report.ImageID)
	assert.NotZero(t, report.Checksum)

	// 3 formats x (2 presets + original) = 9 persisted variants.
	assert.Len(t, listAll(t, f.backend), 9)
	total := 0
	for _, formats := range report.Variants {
		total += len(formats)
	}
	assert.Equal(t, 9, total)

	variant, err := f.controller.Fetch(ctx, bucket.FetchRequest{
		ImageID: report.ImageID,
		Preset:  "small",
		Format:  domain.FormatWebP,
	})
	require.NoError(t, err)
	require.NotNil(t, variant)
	assert.Equal(t, domain.FormatWebP, variant.Format)

	width, height := decodeDims(t, variant.Data, domain.FormatWebP)
	assert.Equal(t, 32, width)
	assert.Equal(t, 32, height)
}

func TestController_UploadJIT(t *testing.T) {
	f := newFixture(t, bucketConfig(config.ModeJIT))
	ctx := context.Background()

	report, err := f.controller.Upload(ctx, testImage(t, 256), "")
	require.NoError(t, err)

	// Only the base format is persisted: one jpeg per preset.
	entries := listAll(t, f.backend)
	assert.Len(t, entries, 3)
	for _, entry := range entries {
		key, err := domain.ParseVariantPath(entry.Path)
		require.NoError(t, err)
		assert.Equal(t, domain.FormatJPEG, key.Format)
	}

	variant, err := f.controller.Fetch(ctx, bucket.FetchRequest{
		ImageID: report.ImageID,
		Preset:  "small",
		Format:  domain.FormatWebP,
	})
	require.NoError(t, err)
	require.NotNil(t, variant)

	width, _ := decodeDims(t, variant.Data, domain.FormatWebP)
	assert.Equal(t, 32, width)

	// The transcoded webp is now persisted alongside the base.
	assert.Len(t, listAll(t, f.backend), 4)

	// A second identical fetch is a pure cache hit.
	gets, puts := f.backend.gets.Load(), f.backend.puts.Load()
	again, err := f.controller.Fetch(ctx, bucket.FetchRequest{
		ImageID: report.ImageID,
		Preset:  "small",
		Format:  domain.FormatWebP,
	})
	require.NoError(t, err)
	assert.Equal(t, variant.Data, again.Data)
	assert.Equal(t, gets, f.backend.gets.Load())
	assert.Equal(t, puts, f.backend.puts.Load())
}

func TestController_UploadRealtime(t *testing.T) {
	f := newFixture(t, bucketConfig(config.ModeRealtime))
	ctx := context.Background()

	report, err := f.controller.Upload(ctx, testImage(t, 256), "")
	require.NoError(t, err)

	// Only the original is persisted, in the store format.
	entries := listAll(t, f.backend)
	require.Len(t, entries, 1)
	key, err := domain.ParseVariantPath(entries[0].Path)
	require.NoError(t, err)
	assert.Equal(t, domain.PresetOriginal, key.Preset)
	assert.Equal(t, domain.FormatJPEG, key.Format)

	cachedBefore := f.cache.Len()
	puts := f.backend.puts.Load()

	variant, err := f.controller.Fetch(ctx, bucket.FetchRequest{
		ImageID: report.ImageID,
		Format:  domain.FormatPNG,
		Custom:  &bucket.CustomSize{Width: 48, Height: 48},
	})
	require.NoError(t, err)
	require.NotNil(t, variant)

	width, height := decodeDims(t, variant.Data, domain.FormatPNG)
	assert.Equal(t, 48, width)
	assert.Equal(t, 48, height)

	// Realtime never persists computed variants; it caches them under the
	// synthetic custom-size preset.
	assert.Equal(t, puts, f.backend.puts.Load())
	assert.Equal(t, cachedBefore+1, f.cache.Len())

	cached, ok := f.cache.Get(domain.VariantKey{
		Bucket:  "photos",
		ImageID: report.ImageID,
		Preset:  domain.CustomPreset(48, 48),
		Format:  domain.FormatPNG,
	})
	assert.True(t, ok)
	assert.Equal(t, variant.Data, cached)
}

func TestController_FetchValidation(t *testing.T) {
	ctx := context.Background()

	t.Run("custom size outside realtime", func(t *testing.T) {
		f := newFixture(t, bucketConfig(config.ModeAOT))
		_, err := f.controller.Fetch(ctx, bucket.FetchRequest{
			ImageID: uuid.New(),
			Custom:  &bucket.CustomSize{Width: 10, Height: 10},
		})
		assert.ErrorIs(t, err, domain.ErrCustomSizeNotAllowed)
	})

	t.Run("unreasonable custom size", func(t *testing.T) {
		f := newFixture(t, bucketConfig(config.ModeRealtime))
		_, err := f.controller.Fetch(ctx, bucket.FetchRequest{
			ImageID: uuid.New(),
			Custom:  &bucket.CustomSize{Width: 100_000, Height: 10},
		})
		assert.ErrorIs(t, err, domain.ErrCustomSizeNotAllowed)
	})

	t.Run("disabled format", func(t *testing.T) {
		f := newFixture(t, bucketConfig(config.ModeAOT))
		_, err := f.controller.Fetch(ctx, bucket.FetchRequest{
			ImageID: uuid.New(),
			Format:  domain.FormatGIF,
		})
		assert.ErrorIs(t, err, domain.ErrFormatNotEnabled)
	})

	t.Run("unknown preset", func(t *testing.T) {
		f := newFixture(t, bucketConfig(config.ModeAOT))
		_, err := f.controller.Fetch(ctx, bucket.FetchRequest{
			ImageID: uuid.New(),
			Preset:  "gigantic",
		})
		assert.ErrorIs(t, err, domain.ErrUnknownPreset)
	})

	t.Run("defaults apply", func(t *testing.T) {
		cfg := bucketConfig(config.ModeAOT)
		cfg.DefaultServingPreset = "small"
		f := newFixture(t, cfg)

		report, err := f.controller.Upload(ctx, testImage(t, 256), "")
		require.NoError(t, err)

		variant, err := f.controller.Fetch(ctx, bucket.FetchRequest{ImageID: report.ImageID})
		require.NoError(t, err)
		require.NotNil(t, variant)
		assert.Equal(t, domain.FormatPNG, variant.Format)

		width, _ := decodeDims(t, variant.Data, domain.FormatPNG)
		assert.Equal(t, 32, width)
	})
}

func TestController_FetchMissingImage(t *testing.T) {
	for _, mode := range []config.Mode{config.ModeAOT, config.ModeJIT, config.ModeRealtime} {
		t.Run(string(mode), func(t *testing.T) {
			f := newFixture(t, bucketConfig(mode))
			variant, err := f.controller.Fetch(context.Background(), bucket.FetchRequest{ImageID: uuid.New()})
			require.NoError(t, err)
			assert.Nil(t, variant)
		})
	}
}

func TestController_Delete(t *testing.T) {
	for _, mode := range []config.Mode{config.ModeAOT, config.ModeJIT, config.ModeRealtime} {
		t.Run(string(mode), func(t *testing.T) {
			f := newFixture(t, bucketConfig(mode))
			ctx := context.Background()

			report, err := f.controller.Upload(ctx, testImage(t, 64), "")
			require.NoError(t, err)

			// Prime the cache so the delete has entries to invalidate.
			_, err = f.controller.Fetch(ctx, bucket.FetchRequest{ImageID: report.ImageID})
			require.NoError(t, err)

			require.NoError(t, f.controller.Delete(ctx, report.ImageID))

			variant, err := f.controller.Fetch(ctx, bucket.FetchRequest{ImageID: report.ImageID})
			require.NoError(t, err)
			assert.Nil(t, variant)
			assert.Empty(t, listAll(t, f.backend))

			// Idempotent.
			require.NoError(t, f.controller.Delete(ctx, report.ImageID))
			require.NoError(t, f.controller.Delete(ctx, uuid.New()))
		})
	}
}

func TestController_UploadPayloadTooLarge(t *testing.T) {
	f := newFixture(t, bucketConfig(config.ModeJIT), withUploadLimit(2048<<10))

	payload := make([]byte, 10<<20)
	_, err := f.controller.Upload(context.Background(), payload, "")
	assert.ErrorIs(t, err, domain.ErrPayloadTooLarge)
}

func TestController_UploadInvalidImage(t *testing.T) {
	f := newFixture(t, bucketConfig(config.ModeAOT))

	_, err := f.controller.Upload(context.Background(), []byte("not an image"), "")
	assert.ErrorIs(t, err, domain.ErrInvalidImage)
	assert.Empty(t, listAll(t, f.backend))
}

func TestController_ConcurrentColdJITFetch(t *testing.T) {
	f := newFixture(t, bucketConfig(config.ModeJIT))
	ctx := context.Background()

	report, err := f.controller.Upload(ctx, testImage(t, 256), "")
	require.NoError(t, err)
	putsAfterUpload := f.backend.puts.Load()

	const requests = 50
	results := make([][]byte, requests)

	var wg sync.WaitGroup
	wg.Add(requests)
	for i := 0; i < requests; i++ {
		go func(i int) {
			defer wg.Done()
			variant, err := f.controller.Fetch(ctx, bucket.FetchRequest{
				ImageID: report.ImageID,
				Preset:  "large",
				Format:  domain.FormatWebP,
			})
			require.NoError(t, err)
			require.NotNil(t, variant)
			results[i] = variant.Data
		}(i)
	}
	wg.Wait()

	// Exactly one transcode happened: one new variant was persisted, and
	// every caller saw its bytes.
	assert.Equal(t, putsAfterUpload+1, f.backend.puts.Load())
	for _, data := range results {
		assert.Equal(t, results[0], data)
	}
}

func TestController_ConcurrentColdFetchWithoutCache(t *testing.T) {
	f := newFixture(t, bucketConfig(config.ModeJIT), withoutCache())
	ctx := context.Background()

	report, err := f.controller.Upload(ctx, testImage(t, 128), "")
	require.NoError(t, err)
	putsAfterUpload := f.backend.puts.Load()

	const requests = 20
	var wg sync.WaitGroup
	wg.Add(requests)
	for i := 0; i < requests; i++ {
		go func() {
			defer wg.Done()
			variant, err := f.controller.Fetch(ctx, bucket.FetchRequest{
				ImageID: report.ImageID,
				Preset:  "small",
				Format:  domain.FormatPNG,
			})
			require.NoError(t, err)
			require.NotNil(t, variant)
		}()
	}
	wg.Wait()

	// The dispatcher's flight group coalesces the computation even with
	// caching disabled.
	assert.Equal(t, putsAfterUpload+1, f.backend.puts.Load())
}

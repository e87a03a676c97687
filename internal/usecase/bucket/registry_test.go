package bucket_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ChillFish8/lust/internal/domain"
	"github.com/ChillFish8/lust/internal/infrastructure/config"
	"github.com/ChillFish8/lust/internal/infrastructure/dispatcher"
	"github.com/ChillFish8/lust/internal/infrastructure/storage"
	"github.com/ChillFish8/lust/internal/usecase/bucket"
)

func TestRegistry(t *testing.T) {
	pool := dispatcher.NewPool(1)
	t.Cleanup(pool.Close)

	cfg := &config.Config{
		GlobalCache: &config.CacheConfig{MaxImages: 10},
		Buckets: map[string]config.BucketConfig{
			"photos":  bucketConfig(config.ModeJIT),
			"banners": bucketConfig(config.ModeRealtime),
		},
	}

	registry, err := bucket.NewRegistry(cfg, storage.NewMemoryBackend(), pool, zap.NewNop())
	require.NoError(t, err)

	photos, err := registry.Get("photos")
	require.NoError(t, err)
	assert.Equal(t, config.ModeJIT, photos.Mode())

	banners, err := registry.Get("banners")
	require.NoError(t, err)
	assert.Equal(t, config.ModeRealtime, banners.Mode())

	_, err = registry.Get("missing")
	assert.ErrorIs(t, err, domain.ErrUnknownBucket)
}

func TestRegistry_RejectsBadCacheConfig(t *testing.T) {
	pool := dispatcher.NewPool(1)
	t.Cleanup(pool.Close)

	badBucket := bucketConfig(config.ModeJIT)
	badBucket.Cache = &config.CacheConfig{MaxImages: 1, MaxCapacityMB: 1}

	cfg := &config.Config{
		Buckets: map[string]config.BucketConfig{"photos": badBucket},
	}

	_, err := bucket.NewRegistry(cfg, storage.NewMemoryBackend(), pool, zap.NewNop())
	assert.Error(t, err)
}

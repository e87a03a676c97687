package bucket

import (
	"fmt"

	"go.uber.org/zap"

	adapter "github.com/ChillFish8/lust/internal/adapter/storage"
	"github.com/ChillFish8/lust/internal/domain"
	"github.com/ChillFish8/lust/internal/infrastructure/cache"
	"github.com/ChillFish8/lust/internal/infrastructure/config"
	"github.com/ChillFish8/lust/internal/infrastructure/dispatcher"
	"github.com/ChillFish8/lust/internal/infrastructure/processor"
)

// Registry holds the fixed set of bucket controllers for the process
// lifetime.
type Registry struct {
	controllers map[string]*Controller
}

// NewRegistry builds one controller per configured bucket, wiring the
// shared CPU pool, global semaphore and global cache fall-through.
func NewRegistry(
	cfg *config.Config,
	backend adapter.Backend,
	pool *dispatcher.Pool,
	logger *zap.Logger,
) (*Registry, error) {
	proc := processor.New(cfg.MaxImagePixels)
	global := dispatcher.NewGlobalSemaphore(cfg.MaxConcurrency)

	var globalCache *cache.VariantCache
	if cfg.GlobalCache != nil {
		var err error
		globalCache, err = cache.New(cache.Config{
			MaxImages:     cfg.GlobalCache.MaxImages,
			MaxCapacityMB: cfg.GlobalCache.MaxCapacityMB,
		})
		if err != nil {
			return nil, fmt.Errorf("building global cache: %w", err)
		}
	}

	controllers := make(map[string]*Controller, len(cfg.Buckets))
	for slug, bucketCfg := range cfg.Buckets {
		// A bucket-level cache overrides the global one; with neither,
		// caching is disabled and single-flight falls back to the
		// controller's own flight group.
		bucketCache := globalCache
		if bucketCfg.Cache != nil {
			var err error
			bucketCache, err = cache.New(cache.Config{
				MaxImages:     bucketCfg.Cache.MaxImages,
				MaxCapacityMB: bucketCfg.Cache.MaxCapacityMB,
			})
			if err != nil {
				return nil, fmt.Errorf("building cache for bucket %q: %w", slug, err)
			}
		}

		controllers[slug] = NewController(ControllerOptions{
			Slug:        slug,
			Config:      bucketCfg,
			Processor:   proc,
			Storage:     backend,
			Cache:       bucketCache,
			Pool:        pool,
			Limiter:     dispatcher.NewLimiter(global, bucketCfg.MaxConcurrency),
			UploadLimit: cfg.EffectiveUploadLimit(bucketCfg),
			Logger:      logger,
		})
	}

	return &Registry{controllers: controllers}, nil
}

// Get returns the controller for a bucket slug.
func (r *Registry) Get(slug string) (*Controller, error) {
	controller, ok := r.controllers[slug]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownBucket, slug)
	}
	return controller, nil
}

package cache

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"golang.org/x/sync/singleflight"

	"github.com/ChillFish8/lust/internal/domain"
)

// Config sizes a cache. Exactly one of the two limits must be set.
type Config struct {
	// MaxImages bounds the cache by entry count.
	MaxImages int

	// MaxCapacityMB bounds the cache by total payload bytes.
	MaxCapacityMB int
}

func (c Config) validate() error {
	if (c.MaxImages > 0) == (c.MaxCapacityMB > 0) {
		return fmt.Errorf("cache config must set exactly one of max_images or max_capacity")
	}
	return nil
}

// VariantCache is an in-memory LRU over variant payloads keyed by their
// canonical paths. Eviction weight is either 1 per entry or the byte size
// of the payload depending on configuration. Population of missing keys is
// single-flighted: concurrent callers of GetOrCompute for the same key see
// exactly one producer invocation.
type VariantCache struct {
	mu       sync.Mutex
	lru      *simplelru.LRU[string, []byte]
	weight   int64
	capacity int64
	byBytes  bool

	flight singleflight.Group
}

// New builds a cache from its config.
func New(cfg Config) (*VariantCache, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	c := &VariantCache{}
	if cfg.MaxCapacityMB > 0 {
		c.byBytes = true
		c.capacity = int64(cfg.MaxCapacityMB) << 20
	} else {
		c.capacity = int64(cfg.MaxImages)
	}

	// The LRU's own count bound only applies in image-count mode; in byte
	// mode eviction is driven by the weight accounting below.
	bound := cfg.MaxImages
	if c.byBytes {
		bound = math.MaxInt32
	}

	lru, err := simplelru.NewLRU[string, []byte](bound, c.onEvict)
	if err != nil {
		return nil, fmt.Errorf("building lru: %w", err)
	}
	c.lru = lru

	return c, nil
}

// onEvict runs under mu: simplelru invokes it synchronously from Add,
// Remove and RemoveOldest.
func (c *VariantCache) onEvict(_ string, value []byte) {
	c.weight -= c.entryWeight(value)
}

func (c *VariantCache) entryWeight(value []byte) int64 {
	if c.byBytes {
		return int64(len(value))
	}
	return 1
}

// Get returns the cached payload for the key if present.
func (c *VariantCache) Get(key domain.VariantKey) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Get(key.Path())
}

// Set inserts a payload, evicting least recently used entries until the
// configured bound holds again. Payloads heavier than the whole capacity
// are not cached at all.
func (c *VariantCache) Set(key domain.VariantKey, data []byte) {
	weight := c.entryWeight(data)
	if weight > c.capacity {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	path := key.Path()
	if old, ok := c.lru.Peek(path); ok {
		c.weight -= c.entryWeight(old)
	}
	c.lru.Add(path, data)
	c.weight += weight

	for c.weight > c.capacity {
		if _, _, ok := c.lru.RemoveOldest(); !ok {
			break
		}
	}
}

// GetOrCompute returns the cached payload for the key, invoking producer
// to fill it on a miss. Concurrent callers for the same missing key share
// one producer invocation and all receive its result. A failed producer is
// not cached and its error reaches every waiter.
//
// The producer always runs to completion once started; a caller whose
// context is cancelled stops waiting but does not abort the flight other
// waiters are parked on.
func (c *VariantCache) GetOrCompute(
	ctx context.Context,
	key domain.VariantKey,
	producer func() ([]byte, error),
) ([]byte, error) {
	if data, ok := c.Get(key); ok {
		return data, nil
	}

	path := key.Path()
	ch := c.flight.DoChan(path, func() (any, error) {
		// Recheck under the flight: another caller may have populated the
		// key between our miss and this flight starting.
		if data, ok := c.Get(key); ok {
			return data, nil
		}

		data, err := producer()
		if err != nil {
			return nil, err
		}

		c.Set(key, data)
		return data, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// InvalidatePrefix drops every entry whose path begins with prefix.
func (c *VariantCache) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, path := range c.lru.Keys() {
		if strings.HasPrefix(path, prefix) {
			c.lru.Remove(path)
		}
	}
}

// Len reports the number of live entries.
func (c *VariantCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Weight reports the current total eviction weight of live entries.
func (c *VariantCache) Weight() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.weight
}

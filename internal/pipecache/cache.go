// Package pipecache is the pipeline/resource cache collaborator: nodes of
// the same type sharing compatible configuration build shared backend state
// once and reuse it afterwards. The core degrades correctly (just slower) if
// the cache always misses.
package pipecache

import (
	"context"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/voxgraph/voxgraph/internal/ctxlog"
)

const (
	DefaultExpiration      = 10 * time.Minute
	DefaultCleanupInterval = 30 * time.Minute
)

// Cache wraps an in-memory TTL cache with hit/miss accounting and structured
// logging. Entries are type-erased; callers assert the concrete type of what
// their own build function produced.
type Cache struct {
	cache  *gocache.Cache
	hits   atomic.Uint64
	misses atomic.Uint64
}

// New creates a cache with the given expiration and cleanup interval.
func New(defaultExpiration, cleanupInterval time.Duration) *Cache {
	return &Cache{cache: gocache.New(defaultExpiration, cleanupInterval)}
}

// GetOrCreate returns the cached value for key, building and storing it on a
// miss. The build function runs at most once per miss; concurrent use is not
// a concern because compilation is frame-synchronous and single-threaded.
func (c *Cache) GetOrCreate(ctx context.Context, key string, build func() (any, error)) (any, error) {
	logger := ctxlog.FromContext(ctx)

	if v, found := c.cache.Get(key); found {
		c.hits.Add(1)
		logger.Debug("Pipeline cache hit.", "key", key)
		return v, nil
	}

	c.misses.Add(1)
	logger.Debug("Pipeline cache miss, building.", "key", key)
	v, err := build()
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, v, gocache.DefaultExpiration)
	return v, nil
}

// Invalidate drops one entry, forcing a rebuild on next use.
func (c *Cache) Invalidate(key string) {
	c.cache.Delete(key)
}

// Stats returns the hit and miss counters.
func (c *Cache) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

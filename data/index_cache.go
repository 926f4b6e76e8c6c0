package data

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/giygas/leaflet-api/interfaces"
	"github.com/giygas/leaflet-api/logging"
	"github.com/giygas/leaflet-api/metrics"
	"github.com/giygas/leaflet-api/vectorindex"
	"golang.org/x/sync/singleflight"
)

var _ interfaces.IndexStore = (*IndexCache)(nil)

type cacheEntry struct {
	index    *vectorindex.Index
	lastUsed time.Time
}

// IndexCache keeps built indexes keyed by the SHA-256 of the PDF bytes.
// Entries expire ttl after their last use. Concurrent requests for the same
// PDF share one build. A zero ttl disables caching: every call builds.
type IndexCache struct {
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu      sync.Mutex
	entries map[string]*cacheEntry
}

// NewIndexCache creates a cache whose entries live ttl after last use
func NewIndexCache(ttl time.Duration) *IndexCache {
	return &IndexCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*cacheEntry),
	}
}

// Key returns the cache key of pdf
func Key(pdf []byte) string {
	sum := sha256.Sum256(pdf)
	return hex.EncodeToString(sum[:])
}

// Enabled reports whether indexes are kept between calls
func (c *IndexCache) Enabled() bool {
	return c.ttl > 0
}

// GetOrBuild returns the live cached index for pdf or builds it with build.
// The caller returns with ctx.Err() once ctx ends, the build keeps running
// and its index is cached for the next call.
func (c *IndexCache) GetOrBuild(ctx context.Context, pdf []byte, build func(ctx context.Context, pdf []byte) (*vectorindex.Index, error)) (*vectorindex.Index, bool, error) {
	if !c.Enabled() {
		metrics.IndexCacheRequests.WithLabelValues("disabled").Inc()
		index, err := build(ctx, pdf)
		return index, false, err
	}

	key := Key(pdf)
	if index, ok := c.lookup(key); ok {
		metrics.IndexCacheRequests.WithLabelValues("hit").Inc()
		return index, true, nil
	}

	metrics.IndexCacheRequests.WithLabelValues("miss").Inc()

	ch := c.group.DoChan(key, func() (any, error) {
		// a concurrent caller may have finished the build while we waited
		if index, ok := c.lookup(key); ok {
			return index, nil
		}

		// the build outlives a single caller cancelling, later callers reuse it
		index, err := build(context.WithoutCancel(ctx), pdf)
		if err != nil {
			return nil, err
		}
		c.store(key, index)
		return index, nil
	})

	select {
	case <-ctx.Done():
		logging.Debug("Caller left before the index build finished", "key", key[:12], "error", ctx.Err())
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		if res.Shared {
			logging.Debug("Index build shared between requests", "key", key[:12])
		}
		return res.Val.(*vectorindex.Index), false, nil
	}
}

func (c *IndexCache) lookup(key string) (*vectorindex.Index, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	now := c.now()
	if now.Sub(entry.lastUsed) > c.ttl {
		delete(c.entries, key)
		metrics.IndexCacheEntries.Set(float64(len(c.entries)))
		return nil, false
	}
	entry.lastUsed = now
	return entry.index, true
}

func (c *IndexCache) store(key string, index *vectorindex.Index) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &cacheEntry{index: index, lastUsed: c.now()}
	metrics.IndexCacheEntries.Set(float64(len(c.entries)))
}

// EvictExpired drops entries unused for longer than the ttl and returns how many were removed
func (c *IndexCache) EvictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, entry := range c.entries {
		if now.Sub(entry.lastUsed) > c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	metrics.IndexCacheEntries.Set(float64(len(c.entries)))
	return removed
}

// Len returns the number of cached indexes
func (c *IndexCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

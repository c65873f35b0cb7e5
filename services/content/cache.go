package content

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultMemoryCacheSize bounds a MemoryCache created with a non-positive size
const DefaultMemoryCacheSize = 256

// Cache stores serialized results by key
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// StatsReporter is implemented by caches that count their own traffic
type StatsReporter interface {
	Stats() CacheStats
}

// CacheStats represents cache statistics
type CacheStats struct {
	Size    int     `json:"size"`
	MaxSize int     `json:"max_size"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is a size-bounded LRU. maxTTL caps every entry and lets the
// LRU drop stale entries in the background; shorter per-entry TTLs are
// enforced on read.
type MemoryCache struct {
	lru     *expirable.LRU[string, memoryEntry]
	maxSize int
	hits    atomic.Uint64
	misses  atomic.Uint64
	now     func() time.Time
}

// NewMemoryCache creates a cache holding at most maxSize entries for at most
// maxTTL each. A non-positive maxTTL disables background expiry.
func NewMemoryCache(maxSize int, maxTTL time.Duration) *MemoryCache {
	if maxSize <= 0 {
		maxSize = DefaultMemoryCacheSize
	}
	if maxTTL < 0 {
		maxTTL = 0
	}
	return &MemoryCache{
		lru:     expirable.NewLRU[string, memoryEntry](maxSize, nil, maxTTL),
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Get returns the value if present and unexpired
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, ok := c.lru.Get(key)
	if ok && !c.now().Before(entry.expiresAt) {
		c.lru.Remove(key)
		ok = false
	}
	if !ok {
		c.misses.Add(1)
		return nil, false, nil
	}

	c.hits.Add(1)
	return entry.value, true, nil
}

// Set stores value for ttl, evicting the least recently used entry when full
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.lru.Add(key, memoryEntry{value: value, expiresAt: c.now().Add(ttl)})
	return nil
}

// Delete removes a single entry
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}

// Clear removes all entries
func (c *MemoryCache) Clear(ctx context.Context) error {
	c.lru.Purge()
	return nil
}

// Stats returns cache statistics
func (c *MemoryCache) Stats() CacheStats {
	hits, misses := c.hits.Load(), c.misses.Load()
	stats := CacheStats{
		Size:    c.lru.Len(),
		MaxSize: c.maxSize,
		Hits:    hits,
		Misses:  misses,
	}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}
	return stats
}

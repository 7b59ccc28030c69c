package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/cuemby/task-sentinel/pkg/metrics"
	"github.com/cuemby/task-sentinel/pkg/vectorclock"
)

// Config controls the bounded LRU layer in front of the Memory Synchronizer.
type Config struct {
	// MaxEntries bounds how many keys the cache holds at once, counting
	// soft-invalidated entries. Eviction follows strict LRU order over all
	// held entries; invalidated entries are not evicted ahead of valid ones.
	MaxEntries int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxEntries: 10000,
	}
}

// entry is what the underlying LRU actually stores: the value alongside its
// causal clock and a soft-invalidation flag. Invalidated entries stay in the
// LRU (so their recency position is preserved) but read as a miss until
// overwritten or naturally evicted.
type entry struct {
	value       []byte
	clock       vectorclock.Clock
	invalidated bool
}

// Cache is a bounded, thread-safe LRU cache with soft invalidation, fronting
// a Memory Synchronizer backend so repeated reads of a hot key don't all
// fall through to the backend.
type Cache struct {
	mu  sync.Mutex
	lru *lru.Cache
}

// New builds a Cache per cfg. MaxEntries <= 0 is rejected by the underlying
// LRU, so callers should run cfg through DefaultConfig first if unsure.
func New(cfg Config) (*Cache, error) {
	l, err := lru.NewWithEvict(cfg.MaxEntries, func(key, value interface{}) {
		metrics.CacheEvictionsTotal.Inc()
	})
	if err != nil {
		return nil, err
	}
	return &Cache{lru: l}, nil
}

// Get returns the cached value and clock for key, and whether the entry was
// present and not soft-invalidated. A hit on an invalidated entry reports as
// a miss but leaves the entry in the LRU for Put to overwrite in place.
func (c *Cache) Get(key string) (value []byte, clock vectorclock.Clock, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, found := c.lru.Get(key)
	if !found {
		metrics.CacheMissesTotal.Inc()
		return nil, nil, false
	}
	e := raw.(*entry)
	if e.invalidated {
		metrics.CacheMissesTotal.Inc()
		return nil, nil, false
	}
	metrics.CacheHitsTotal.Inc()
	return e.value, e.clock, true
}

// Put stores value/clock under key, clearing any prior invalidation.
func (c *Cache) Put(key string, value []byte, clock vectorclock.Clock) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Add(key, &entry{value: value, clock: clock})
}

// Invalidate marks key as stale without evicting it, so its LRU recency
// position (and therefore its eviction priority relative to untouched
// entries) is unaffected. A subsequent Get reports a miss until Put
// refreshes the entry.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, found := c.lru.Peek(key)
	if !found {
		return
	}
	raw.(*entry).invalidated = true
}

// Remove evicts key outright.
func (c *Cache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Remove(key)
}

// Len returns the number of entries currently held, including soft-invalidated
// ones that have not yet been evicted or overwritten.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lru.Len()
}

// Purge clears the entire cache.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Purge()
}

// Package cache provides the bounded result cache used for per-file analysis
// results. Keys are normalized file paths; values are whatever the caller
// stores (dependency lists, symbol graphs).
package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	Size      int     `json:"size"`
	MaxSize   int     `json:"maxSize"`
	HitRate   float64 `json:"hitRate"`
}

// Cache is a string-keyed store with capacity-driven eviction. Entries never
// expire by time. With maxSize == 0 the cache is unbounded; otherwise the
// least-recently-used entry (LRU mode) or the oldest inserted entry (FIFO
// mode) is evicted when an insert would exceed capacity.
type Cache[V any] struct {
	mu      sync.Mutex
	maxSize int

	// lru is non-nil only for bounded LRU mode.
	lru *lru.Cache[string, V]

	// entries and order back the unbounded and bounded-FIFO modes.
	entries map[string]V
	order   []string

	hits, misses, evictions int64
}

// New creates a cache. maxSize of 0 means unbounded. useLRU selects
// recency-based eviction for bounded caches; it has no effect when unbounded.
func New[V any](maxSize int, useLRU bool) *Cache[V] {
	c := &Cache[V]{maxSize: maxSize}
	if maxSize > 0 && useLRU {
		// Size is validated above, so the only error path is unreachable.
		c.lru, _ = lru.NewWithEvict[string, V](maxSize, func(string, V) {
			c.evictions++
		})
		return c
	}
	c.entries = make(map[string]V)
	return c
}

// Get returns the value for key. A hit in LRU mode refreshes recency.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var v V
	var ok bool
	if c.lru != nil {
		v, ok = c.lru.Get(key)
	} else {
		v, ok = c.entries[key]
	}
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return v, ok
}

// Set stores key → value, evicting if the cache is at capacity.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lru != nil {
		c.lru.Add(key, value) // eviction counter bumps via the evict hook
		return
	}
	if _, exists := c.entries[key]; !exists {
		if c.maxSize > 0 && len(c.entries) >= c.maxSize {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
			c.evictions++
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = value
}

// Has reports whether key is present without touching recency or counters.
func (c *Cache[V]) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lru != nil {
		return c.lru.Contains(key)
	}
	_, ok := c.entries[key]
	return ok
}

// Delete removes key if present.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lru != nil {
		// Remove fires the evict hook; an explicit delete is not an eviction.
		if c.lru.Remove(key) {
			c.evictions--
		}
		return
	}
	if _, ok := c.entries[key]; ok {
		delete(c.entries, key)
		for i, k := range c.order {
			if k == key {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
	}
}

// Clear removes every entry and resets all counters.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lru != nil {
		c.lru.Purge()
	} else {
		c.entries = make(map[string]V)
		c.order = nil
	}
	c.hits, c.misses, c.evictions = 0, 0, 0
}

// Len returns the number of entries.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lenLocked()
}

func (c *Cache[V]) lenLocked() int {
	if c.lru != nil {
		return c.lru.Len()
	}
	return len(c.entries)
}

// Keys returns a copy of the current key set, in no particular order.
func (c *Cache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lru != nil {
		return c.lru.Keys()
	}
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	return keys
}

// Stats returns the current counters.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Size:      c.lenLocked(),
		MaxSize:   c.maxSize,
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}

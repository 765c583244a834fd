package preview

import (
	"sync"
	"time"
)

type cacheEntry struct {
	data        []byte
	contentType string
	createdAt   time.Time
}

// Cache is a bounded in-memory cache for rendered preview frames keyed by
// (preview, transform). When full it evicts the oldest entry by creation
// time, not by access time: preview traffic is dominated by scrubbing
// bursts, and created-at eviction keeps the policy deterministic.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]cacheEntry
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
}

// NewCache creates a cache holding at most maxEntries rendered frames for
// at most ttl each.
func NewCache(maxEntries int, ttl time.Duration) *Cache {
	return &Cache{
		entries:    make(map[string]cacheEntry),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Get returns a cached render, or false when absent or expired.
func (c *Cache) Get(key string) ([]byte, string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, "", false
	}
	if c.ttl > 0 && c.now().Sub(entry.createdAt) > c.ttl {
		delete(c.entries, key)
		return nil, "", false
	}
	return entry.data, entry.contentType, true
}

// Put stores a rendered frame, evicting the oldest entry when full.
func (c *Cache) Put(key string, data []byte, contentType string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok && len(c.entries) >= c.maxEntries {
		c.evictOldest()
	}

	c.entries[key] = cacheEntry{
		data:        data,
		contentType: contentType,
		createdAt:   c.now(),
	}
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) evictOldest() {
	var oldestKey string
	var oldestAt time.Time
	first := true
	for key, entry := range c.entries {
		if first || entry.createdAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = entry.createdAt
			first = false
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

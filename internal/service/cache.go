package service

import (
	"encoding/json"
	"sync"
	"time"
)

// cacheItem represents a cached vendor payload
type cacheItem struct {
	value    json.RawMessage
	storedAt time.Time
}

// Cache is an in-memory response cache with a fixed TTL. Expiry is lazy: a
// stale entry is removed when Get detects it; there is no background sweep.
// No size bound; the endpoint and device sets are both small.
type Cache struct {
	mu    sync.Mutex
	items map[string]cacheItem
	ttl   time.Duration
	now   func() time.Time
}

// NewCache creates a new cache instance
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		items: make(map[string]cacheItem),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Set stores a payload under key, overwriting any previous entry.
func (c *Cache) Set(key string, value json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = cacheItem{
		value:    value,
		storedAt: c.now(),
	}
}

// Get retrieves a payload. An entry older than the TTL is treated as absent
// and purged on the spot.
func (c *Cache) Get(key string) (json.RawMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, found := c.items[key]
	if !found {
		return nil, false
	}

	if c.now().Sub(item.storedAt) > c.ttl {
		delete(c.items, key)
		return nil, false
	}

	return item.value, true
}

// Clear removes all items from cache
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]cacheItem)
}

// Size returns the number of items in cache, stale entries included.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// TTL returns the configured time-to-live.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// cacheItem represents a single item in the cache with expiration
type cacheItem struct {
	Value      []byte
	Expiration time.Time
}

// MemoryCache is a thread-safe, size-bounded in-memory cache with per-entry TTL.
// The LRU evicts anything older than maxLifetime regardless of the TTL it was written with.
type MemoryCache struct {
	items *expirable.LRU[string, cacheItem]
}

// NewMemoryCache creates a new in-memory cache holding at most size entries
func NewMemoryCache(size int, maxLifetime time.Duration) *MemoryCache {
	if size <= 0 {
		size = 1024
	}
	return &MemoryCache{
		items: expirable.NewLRU[string, cacheItem](size, nil, maxLifetime),
	}
}

// GetMany retrieves values for all keys; expired or absent keys yield nil slots
func (c *MemoryCache) GetMany(ctx context.Context, keys []string) ([][]byte, error) {
	now := time.Now()
	values := make([][]byte, len(keys))
	for i, key := range keys {
		item, ok := c.items.Get(key)
		if !ok || now.After(item.Expiration) {
			continue
		}
		values[i] = append([]byte(nil), item.Value...)
	}
	return values, nil
}

// SetMany stores all entries with the same TTL
func (c *MemoryCache) SetMany(ctx context.Context, entries map[string][]byte, ttl time.Duration) error {
	expiration := time.Now().Add(ttl)
	for key, value := range entries {
		// Copy so later mutation by the caller cannot reach the cache, mirroring Redis
		c.items.Add(key, cacheItem{
			Value:      append([]byte(nil), value...),
			Expiration: expiration,
		})
	}
	return nil
}

// Size returns the current number of items in the cache (for debugging/monitoring)
func (c *MemoryCache) Size() int {
	return c.items.Len()
}

// Clear removes all items from the cache
func (c *MemoryCache) Clear() {
	c.items.Purge()
}

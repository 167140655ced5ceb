package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is an in-process cache with per-entry expiry. When maxItems is
// reached, expired entries are purged first and then the entry closest to
// expiry is evicted.
type MemoryCache struct {
	mu       sync.RWMutex
	items    map[string]cacheItem
	maxItems int
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

type cacheItem struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (i cacheItem) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && !now.Before(i.expiresAt)
}

// NewMemoryCache creates a cache holding at most maxItems entries (0 means no
// bound) and starts a background sweep of expired entries.
func NewMemoryCache(maxItems int) *MemoryCache {
	c := &MemoryCache{
		items:    make(map[string]cacheItem),
		maxItems: maxItems,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
	go c.cleanupExpired(time.Minute)
	return c
}

// Get retrieves a value from cache
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, exists := c.items[key]
	if !exists || item.expired(c.now()) {
		return nil, false, nil
	}

	out := make([]byte, len(item.value))
	copy(out, item.value)
	return out, true, nil
}

// Set stores a value in cache for ttl. A ttl of zero or less keeps the value
// until it is deleted or evicted.
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists && c.maxItems > 0 && len(c.items) >= c.maxItems {
		c.evictLocked()
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	item := cacheItem{value: stored}
	if ttl > 0 {
		item.expiresAt = c.now().Add(ttl)
	}
	c.items[key] = item
	return nil
}

// Delete removes a value from cache
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close stops the background sweep.
func (c *MemoryCache) Close() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

func (c *MemoryCache) evictLocked() {
	now := c.now()
	for key, item := range c.items {
		if item.expired(now) {
			delete(c.items, key)
		}
	}
	if len(c.items) < c.maxItems {
		return
	}

	// Entries without expiry go last.
	var victim string
	var soonest time.Time
	for key, item := range c.items {
		if victim == "" || (!item.expiresAt.IsZero() && (soonest.IsZero() || item.expiresAt.Before(soonest))) {
			victim, soonest = key, item.expiresAt
		}
	}
	delete(c.items, victim)
}

// cleanupExpired periodically removes expired items
func (c *MemoryCache) cleanupExpired(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			now := c.now()
			for key, item := range c.items {
				if item.expired(now) {
					delete(c.items, key)
				}
			}
			c.mu.Unlock()
		case <-c.stopCh:
			return
		}
	}
}

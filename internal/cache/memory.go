package cache

import (
	"context"
	"sync"
	"time"

	"github.com/yoku-app/gateway/internal/observability"
)

// cleanupInterval is how often expired entries are swept.
const cleanupInterval = time.Minute

// memoryCache implements an in-memory cache for tests and local development.
type memoryCache struct {
	logger observability.Logger

	mu    sync.RWMutex
	items map[string]memoryEntry

	stopCh chan struct{}
	once   sync.Once
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e memoryEntry) expired() bool {
	return !e.expiresAt.IsZero() && time.Now().After(e.expiresAt)
}

// newMemoryCache creates a new in-memory cache.
func newMemoryCache(logger observability.Logger) *memoryCache {
	c := &memoryCache{
		logger: logger,
		items:  make(map[string]memoryEntry),
		stopCh: make(chan struct{}),
	}

	go c.cleanupLoop()

	logger.Info("memory cache initialized")

	return c
}

// Get retrieves a value from the cache.
func (c *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	entry, exists := c.items[key]
	c.mu.RUnlock()

	if !exists || entry.expired() {
		GetCacheMetrics().missesTotal.WithLabelValues("memory").Inc()
		return nil, ErrCacheMiss
	}

	GetCacheMetrics().hitsTotal.WithLabelValues("memory").Inc()
	return entry.value, nil
}

// Set stores a value in the cache.
func (c *memoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	// Copy so later mutation by the caller cannot corrupt the entry.
	stored := make([]byte, len(value))
	copy(stored, value)

	c.mu.Lock()
	c.items[key] = memoryEntry{value: stored, expiresAt: expiresAt}
	c.mu.Unlock()

	return nil
}

// Delete removes a value from the cache.
func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
	return nil
}

// Close stops the cleanup goroutine.
func (c *memoryCache) Close() error {
	c.once.Do(func() { close(c.stopCh) })
	return nil
}

// cleanupLoop periodically removes expired entries.
func (c *memoryCache) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

// removeExpired deletes all expired entries.
func (c *memoryCache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.items {
		if entry.expired() {
			delete(c.items, key)
		}
	}
}

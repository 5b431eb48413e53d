// Package cache provides the key-value store backing the gateway's
// identity cache. Keys are stored verbatim so that entries written by other
// components (such as a revocation-issuing logout service) remain visible.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/yoku-app/gateway/internal/config"
	"github.com/yoku-app/gateway/internal/observability"
)

// Common cache errors.
var (
	// ErrCacheMiss indicates that the key was not found in the cache.
	// A miss is data, not a failure; any other error is a transport
	// failure against the cache backend.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidConfig indicates that the cache configuration is invalid.
	ErrInvalidConfig = errors.New("invalid cache configuration")
)

// Cache is the contract for the cache backend. Implementations perform
// single attempts only; retry and degradation policy belongs to callers.
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns ErrCacheMiss if the key is not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with the given TTL.
	// A TTL of 0 means the entry never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache. Deleting an absent key is
	// a no-op, not a failure.
	Delete(ctx context.Context, key string) error

	// Close closes the cache connection.
	Close() error
}

// New creates a cache from configuration.
func New(cfg *config.CacheConfig, logger observability.Logger) (Cache, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}

	if logger == nil {
		logger = observability.NopLogger()
	}

	switch cfg.Type {
	case config.CacheTypeMemory, "":
		return newMemoryCache(logger), nil
	case config.CacheTypeRedis:
		return newRedisCache(cfg.Redis, logger)
	default:
		return nil, errors.New("unknown cache type: " + cfg.Type)
	}
}

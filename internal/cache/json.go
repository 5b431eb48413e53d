package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// GetJSON fetches and decodes a JSON-serialized value. An absent key
// returns (nil, nil); only transport failures against the cache backend
// produce an error, so callers can tell a miss from an outage.
func GetJSON[T any](ctx context.Context, c Cache, key string) (*T, error) {
	data, err := c.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache get %s: %w", key, err)
	}

	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("cache entry %s is not valid JSON: %w", key, err)
	}

	return &value, nil
}

// SetJSON serializes and stores a value. With a positive TTL the backend
// expires the entry no earlier than that bound.
func SetJSON[T any](ctx context.Context, c Cache, key string, value T, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal %s: %w", key, err)
	}

	if err := c.Set(ctx, key, data, ttl); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}

	return nil
}

// Exists reports whether a key is present, treating a miss as data.
func Exists(ctx context.Context, c Cache, key string) (bool, error) {
	_, err := c.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return false, nil
		}
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	return true, nil
}

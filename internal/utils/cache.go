package utils

import (
	"context"       // Context for Redis operations
	"encoding/json" // JSON encoding/decoding
	"errors"        // Error inspection
	"time"          // Time durations

	"github.com/redis/go-redis/v9" // Redis client
)

// Cache is a JSON read-through cache over Redis. A nil *Cache is a valid
// cache that never hits, so handlers run unchanged without Redis.
type Cache struct {
	rdb *redis.Client // Redis client
	ttl time.Duration // Entry lifetime
}

// NewCache wraps a Redis client; a nil client yields a nil cache
func NewCache(rdb *redis.Client, ttl time.Duration) *Cache {
	if rdb == nil {
		return nil // Caching disabled
	}
	return &Cache{rdb: rdb, ttl: ttl}
}

// Get retrieves a value from Redis and unmarshals it into dest
func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	if c == nil {
		return false, nil // Caching disabled
	}
	val, err := c.rdb.Get(ctx, key).Bytes() // Get value from Redis
	if errors.Is(err, redis.Nil) {
		return false, nil // Key does not exist
	} else if err != nil {
		return false, err // Other Redis error
	}
	return true, json.Unmarshal(val, dest) // Unmarshal JSON into dest
}

// Set stores a value in Redis with the cache TTL
func (c *Cache) Set(ctx context.Context, key string, value any) error {
	if c == nil {
		return nil // Caching disabled
	}
	b, err := json.Marshal(value) // Marshal value to JSON
	if err != nil {
		return err // Return error if marshaling fails
	}
	return c.rdb.Set(ctx, key, b, c.ttl).Err() // Set value in Redis with TTL
}

// Delete removes keys from Redis
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if c == nil || len(keys) == 0 {
		return nil // Nothing to do
	}
	return c.rdb.Del(ctx, keys...).Err() // Delete keys from Redis
}

// DeletePrefix removes every key starting with prefix
func (c *Cache) DeletePrefix(ctx context.Context, prefix string) error {
	if c == nil {
		return nil // Caching disabled
	}
	iter := c.rdb.Scan(ctx, 0, prefix+"*", 100).Iterator() // Walk matching keys
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val()) // Collect key
	}
	if err := iter.Err(); err != nil {
		return err // Scan failed
	}
	return c.Delete(ctx, keys...) // Drop collected keys
}

// Generation reads the counter stored at key, zero when unset
func (c *Cache) Generation(ctx context.Context, key string) (int64, error) {
	if c == nil {
		return 0, nil // Caching disabled
	}
	n, err := c.rdb.Get(ctx, key).Int64() // Read counter
	if errors.Is(err, redis.Nil) {
		return 0, nil // Never bumped
	}
	return n, err
}

// Bump advances the counter at key so views cached under older values are never read again
func (c *Cache) Bump(ctx context.Context, key string) error {
	if c == nil {
		return nil // Caching disabled
	}
	return c.rdb.Incr(ctx, key).Err() // Atomic increment
}

// Once records key and reports whether this call was the first to do so
func (c *Cache) Once(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if c == nil {
		return true, nil // Caching disabled, nothing to compare against
	}
	return c.rdb.SetNX(ctx, key, 1, ttl).Result() // Set only if absent
}

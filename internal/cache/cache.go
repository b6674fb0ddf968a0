// Package cache is a small read-model cache over redis. The API is the
// source of truth; list endpoints cache their responses here and every
// mutating call invalidates the affected keys. With no REDIS_URL configured
// the cache degrades to a pass-through and the server runs without redis.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cache wraps a redis client. A nil client means caching is disabled.
type Cache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.SugaredLogger
}

// New connects to redis, or returns a disabled cache when redisURL is empty.
func New(redisURL string, ttl time.Duration, logger *zap.SugaredLogger) (*Cache, error) {
	if redisURL == "" {
		return &Cache{ttl: ttl, logger: logger}, nil
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	return &Cache{rdb: redis.NewClient(opt), ttl: ttl, logger: logger}, nil
}

// Enabled reports whether a redis backend is attached.
func (c *Cache) Enabled() bool {
	return c != nil && c.rdb != nil
}

// Ping checks redis connectivity for the readiness probe.
func (c *Cache) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}

// GetJSON loads key into v, reporting whether a value was found. Cache
// errors are logged and treated as misses, never surfaced.
func (c *Cache) GetJSON(ctx context.Context, key string, v any) bool {
	if !c.Enabled() {
		return false
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		c.logger.Warnw("Cache read failed", "key", key, "error", err)
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		c.logger.Warnw("Cache entry corrupt, dropping", "key", key, "error", err)
		c.rdb.Del(ctx, key)
		return false
	}
	return true
}

// SetJSON stores v under key with the configured TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v any) {
	if !c.Enabled() {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		c.logger.Warnw("Cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warnw("Cache write failed", "key", key, "error", err)
	}
}

// Invalidate drops the given keys after a mutation.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if !c.Enabled() || len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warnw("Cache invalidation failed", "keys", keys, "error", err)
	}
}

// Copyright (C) 2026, Aletheia Ads Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

package keyreg

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisCache caches key lookups in Redis. Failures are treated as cache
// misses; the registry never depends on it for correctness.
type RedisCache struct {
	client *redis.Client
	log    *zap.Logger
}

// NewRedisCache wraps an open Redis client.
func NewRedisCache(client *redis.Client, log *zap.Logger) *RedisCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisCache{client: client, log: log}
}

// Get returns a cached value, or false on miss or error.
func (c *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			c.log.Debug("key cache read failed", zap.Error(err))
		}
		return "", false
	}
	return val, true
}

// Set stores a value with a TTL; errors are logged and dropped.
func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.log.Debug("key cache write failed", zap.Error(err))
	}
}

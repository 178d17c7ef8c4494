package cache

import (
	"context"
	"time"

	"github.com/petalpost/petalpost/internal/logger"
	"github.com/redis/go-redis/v9"
)

// RedisClient is the part of the go-redis client the cache needs
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisCache shares entries between replicas. Failures are logged and
// surface as misses; the cache is never the source of truth.
type RedisCache struct {
	client RedisClient
	prefix string
	logger *logger.Logger
}

func NewRedisCache(client RedisClient, prefix string, logger *logger.Logger) Cache {
	return &RedisCache{
		client: client,
		prefix: prefix,
		logger: logger,
	}
}

func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) bool {
	span := startSpan(ctx, "redis", "get", key)

	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err == redis.Nil {
		finishSpan(span, nil)
		return false
	}
	if err == nil {
		err = decode(data, dest)
	}
	finishSpan(span, err)
	if err != nil {
		c.logger.Warnw("redis cache read failed", "key", key, "error", err)
		return false
	}
	return true
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) {
	span := startSpan(ctx, "redis", "set", key)

	data, err := encode(value)
	if err == nil {
		if expiration < 0 {
			expiration = 0
		}
		err = c.client.Set(ctx, c.prefix+key, data, expiration).Err()
	}
	finishSpan(span, err)
	if err != nil {
		c.logger.Warnw("redis cache write failed", "key", key, "error", err)
	}
}

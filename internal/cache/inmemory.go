package cache

import (
	"context"
	"time"

	goCache "github.com/patrickmn/go-cache"
)

// DefaultCleanupInterval is how often expired items are removed from the cache
const DefaultCleanupInterval = 10 * time.Minute

// InMemoryCache is a process-local Cache backed by go-cache
type InMemoryCache struct {
	cache *goCache.Cache
}

func NewInMemoryCache() Cache {
	return &InMemoryCache{
		cache: goCache.New(goCache.NoExpiration, DefaultCleanupInterval),
	}
}

func (c *InMemoryCache) Get(ctx context.Context, key string, dest interface{}) bool {
	span := startSpan(ctx, "inmemory", "get", key)

	v, ok := c.cache.Get(key)
	if !ok {
		finishSpan(span, nil)
		return false
	}
	data, ok := v.([]byte)
	if !ok {
		finishSpan(span, nil)
		return false
	}
	err := decode(data, dest)
	finishSpan(span, err)
	return err == nil
}

func (c *InMemoryCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) {
	span := startSpan(ctx, "inmemory", "set", key)

	data, err := encode(value)
	if err != nil {
		finishSpan(span, err)
		return
	}
	if expiration <= 0 {
		expiration = goCache.NoExpiration
	}
	c.cache.Set(key, data, expiration)
	finishSpan(span, nil)
}

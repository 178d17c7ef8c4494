package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/petalpost/petalpost/internal/logger"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisCache(t *testing.T) (Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisCache(client, "petalpost:", logger.NewNoopLogger()), mr
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedisCache(t)
	key := GenerateKey(PrefixGatewayHost, "www.payfast.co.za")

	var got entry
	assert.False(t, c.Get(ctx, key, &got))

	c.Set(ctx, key, &entry{Addrs: []string{"1.2.3.4", "1.2.3.5"}}, 0)
	require.True(t, c.Get(ctx, key, &got))
	assert.Equal(t, []string{"1.2.3.4", "1.2.3.5"}, got.Addrs)

	assert.True(t, mr.Exists("petalpost:"+key))
	assert.Equal(t, time.Duration(0), mr.TTL("petalpost:"+key))
}

func TestRedisCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedisCache(t)

	c.Set(ctx, "short", 7, time.Minute)
	var n int
	require.True(t, c.Get(ctx, "short", &n))
	assert.Equal(t, 7, n)

	mr.FastForward(2 * time.Minute)
	assert.False(t, c.Get(ctx, "short", &n))
}

func TestRedisCache_UnavailableIsMiss(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedisCache(t)
	mr.Close()

	c.Set(ctx, "key", 1, 0)
	var n int
	assert.False(t, c.Get(ctx, "key", &n))
}

func TestRedisCache_CorruptEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestRedisCache(t)
	require.NoError(t, mr.Set("petalpost:key", "not json"))

	var got entry
	assert.False(t, c.Get(ctx, "key", &got))
}

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type entry struct {
	Addrs      []string
	ResolvedAt time.Time
}

func TestGenerateKey(t *testing.T) {
	assert.Equal(t, "gateway_host:v1:www.payfast.co.za", GenerateKey(PrefixGatewayHost, "www.payfast.co.za"))
	assert.Equal(t, "gateway_host:v1", GenerateKey(PrefixGatewayHost))
}

func TestInMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache()
	key := GenerateKey(PrefixGatewayHost, "www.payfast.co.za")

	var got entry
	assert.False(t, c.Get(ctx, key, &got))

	resolvedAt := time.Date(2024, time.November, 1, 8, 0, 0, 0, time.UTC)
	c.Set(ctx, key, &entry{Addrs: []string{"1.2.3.4"}, ResolvedAt: resolvedAt}, 0)
	assert.True(t, c.Get(ctx, key, &got))
	assert.Equal(t, []string{"1.2.3.4"}, got.Addrs)
	assert.True(t, resolvedAt.Equal(got.ResolvedAt))

	c.Set(ctx, key, &entry{Addrs: []string{"5.6.7.8"}}, -1)
	got = entry{}
	assert.True(t, c.Get(ctx, key, &got))
	assert.Equal(t, []string{"5.6.7.8"}, got.Addrs)

	c.Set(ctx, "short", 1, time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	var n int
	assert.False(t, c.Get(ctx, "short", &n))
}

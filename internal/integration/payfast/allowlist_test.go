package payfast

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/petalpost/petalpost/internal/cache"
	"github.com/petalpost/petalpost/internal/config"
	ierr "github.com/petalpost/petalpost/internal/errors"
	"github.com/petalpost/petalpost/internal/logger"
	"github.com/petalpost/petalpost/internal/types"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	mu    sync.Mutex
	addrs map[string][]string
	err   error
	calls int
}

func (r *fakeResolver) LookupHost(_ context.Context, host string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return r.addrs[host], nil
}

func newAllowList(r Resolver, clock types.Clock) *HostAllowList {
	cfg := config.GetDefaultConfig()
	cfg.PayFast.ValidHosts = []string{"www.payfast.co.za", "w1w.payfast.co.za"}
	cfg.PayFast.DNSCacheTTL = time.Minute
	return NewHostAllowList(cfg, r, cache.NewInMemoryCache(), clock, logger.NewNoopLogger())
}

func TestHostAllowList(t *testing.T) {
	ctx := context.Background()
	clock := &types.FixedClock{At: time.Date(2024, 10, 1, 8, 0, 0, 0, time.UTC)}
	r := &fakeResolver{addrs: map[string][]string{
		"www.payfast.co.za": {"197.97.145.144", "41.74.179.194"},
		"w1w.payfast.co.za": {"197.97.145.145"},
	}}
	a := newAllowList(r, clock)

	ok, err := a.Allowed(ctx, "41.74.179.194")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.Allowed(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = a.Allowed(ctx, "not-an-ip")
	require.NoError(t, err)
	assert.False(t, ok)

	// cached within the ttl
	assert.Equal(t, 2, r.calls)

	t.Run("stale copy reused when resolution fails", func(t *testing.T) {
		clock.At = clock.At.Add(2 * time.Minute)
		r.err = errors.New("no such host")

		ok, err := a.Allowed(ctx, "197.97.145.145")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 4, r.calls)
	})

	t.Run("refreshed after ttl", func(t *testing.T) {
		r.err = nil
		r.addrs["w1w.payfast.co.za"] = []string{"197.97.145.150"}

		ok, err := a.Allowed(ctx, "197.97.145.150")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = a.Allowed(ctx, "197.97.145.145")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestHostAllowList_NoCopyIsTransient(t *testing.T) {
	clock := &types.FixedClock{At: time.Now()}
	a := newAllowList(&fakeResolver{err: errors.New("dns down")}, clock)

	ok, err := a.Allowed(context.Background(), "197.97.145.144")
	require.Error(t, err)
	assert.False(t, ok)
	assert.True(t, ierr.IsTransient(err))
}

func TestHostAllowList_SharedRedisCache(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	shared := cache.NewRedisCache(client, "petalpost:", logger.NewNoopLogger())

	cfg := config.GetDefaultConfig()
	cfg.PayFast.ValidHosts = []string{"www.payfast.co.za"}
	cfg.PayFast.DNSCacheTTL = time.Minute
	clock := &types.FixedClock{At: time.Date(2024, 10, 1, 8, 0, 0, 0, time.UTC)}

	first := &fakeResolver{addrs: map[string][]string{"www.payfast.co.za": {"197.97.145.144"}}}
	ok, err := NewHostAllowList(cfg, first, shared, clock, logger.NewNoopLogger()).Allowed(ctx, "197.97.145.144")
	require.NoError(t, err)
	assert.True(t, ok)

	// a second replica reuses the resolution instead of hitting DNS
	second := &fakeResolver{err: errors.New("dns down")}
	ok, err = NewHostAllowList(cfg, second, shared, clock, logger.NewNoopLogger()).Allowed(ctx, "197.97.145.144")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, second.calls)
}

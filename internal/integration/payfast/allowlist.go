package payfast

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/petalpost/petalpost/internal/cache"
	"github.com/petalpost/petalpost/internal/config"
	ierr "github.com/petalpost/petalpost/internal/errors"
	"github.com/petalpost/petalpost/internal/logger"
	"github.com/petalpost/petalpost/internal/types"
	"github.com/samber/lo"
)

// Resolver looks up the addresses of a host. *net.Resolver satisfies it.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// SourceVerifier decides whether a notification came from the gateway
type SourceVerifier interface {
	Allowed(ctx context.Context, ip string) (bool, error)
}

type resolvedHost struct {
	Addrs      []string  `json:"addrs"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// HostAllowList resolves the gateway's published hosts and caches their
// addresses. A stale copy is reused when resolution fails; the list only
// reports a transient error when no copy exists at all.
type HostAllowList struct {
	hosts    []string
	ttl      time.Duration
	resolver Resolver
	cache    cache.Cache
	clock    types.Clock
	logger   *logger.Logger
	mu       sync.Mutex
}

// NewHostAllowList creates an allow-list over the configured gateway hosts
func NewHostAllowList(
	cfg *config.Configuration,
	resolver Resolver,
	c cache.Cache,
	clock types.Clock,
	logger *logger.Logger,
) *HostAllowList {
	ttl := cfg.PayFast.DNSCacheTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &HostAllowList{
		hosts:    cfg.PayFast.ValidHosts,
		ttl:      ttl,
		resolver: resolver,
		cache:    c,
		clock:    clock,
		logger:   logger,
	}
}

// Allowed reports whether ip belongs to one of the gateway hosts
func (a *HostAllowList) Allowed(ctx context.Context, ip string) (bool, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false, nil
	}

	addrs, err := a.Addresses(ctx)
	if err != nil {
		return false, err
	}

	return lo.ContainsBy(addrs, func(addr string) bool {
		other := net.ParseIP(addr)
		return other != nil && other.Equal(parsed)
	}), nil
}

// Addresses returns every known address of the gateway hosts
func (a *HostAllowList) Addresses(ctx context.Context) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var (
		all     []string
		missing []string
	)
	for _, host := range a.hosts {
		addrs, ok := a.resolve(ctx, host)
		if !ok {
			missing = append(missing, host)
			continue
		}
		all = append(all, addrs...)
	}

	if len(all) == 0 && len(missing) > 0 {
		return nil, ierr.NewError("gateway hosts could not be resolved").
			WithHint("Source address verification is temporarily unavailable").
			WithReportableDetails(map[string]interface{}{
				"hosts": missing,
			}).
			Mark(ierr.ErrTransient)
	}
	return lo.Uniq(all), nil
}

func (a *HostAllowList) resolve(ctx context.Context, host string) ([]string, bool) {
	key := cache.GenerateKey(cache.PrefixGatewayHost, host)
	now := a.clock.Now()

	var cached *resolvedHost
	var entry resolvedHost
	if a.cache.Get(ctx, key, &entry) && len(entry.Addrs) > 0 {
		cached = &entry
	}
	if cached != nil && now.Sub(cached.ResolvedAt) < a.ttl {
		return cached.Addrs, true
	}

	addrs, err := a.resolver.LookupHost(ctx, host)
	if err != nil || len(addrs) == 0 {
		if cached != nil {
			a.logger.Warnw("gateway host resolution failed, reusing stale addresses",
				"host", host,
				"error", err,
				"resolved_at", cached.ResolvedAt)
			return cached.Addrs, true
		}
		a.logger.Errorw("gateway host resolution failed",
			"host", host,
			"error", err)
		return nil, false
	}

	// stored without expiry so that a stale copy survives resolver outages
	a.cache.Set(ctx, key, &resolvedHost{Addrs: addrs, ResolvedAt: now}, 0)
	return addrs, true
}

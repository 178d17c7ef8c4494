package cache

import (
	"context"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/petalpost/petalpost/internal/types"
)

// Cache holds short-lived lookups. Values are stored JSON encoded so that
// every backend hands back the same shape the caller put in.
type Cache interface {
	// Get decodes the entry under key into dest and reports whether it was found.
	Get(ctx context.Context, key string, dest interface{}) bool
	// Set stores value under key. A non-positive expiration keeps the entry
	// until it is overwritten.
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration)
}

const (
	// PrefixGatewayHost keys resolved gateway host addresses
	PrefixGatewayHost = "gateway_host:v1"
)

// GenerateKey joins a prefix and its parts with colons
func GenerateKey(prefix string, parts ...string) string {
	return strings.Join(append([]string{prefix}, parts...), ":")
}

func encode(value interface{}) ([]byte, error) {
	return types.JSON.Marshal(value)
}

func decode(data []byte, dest interface{}) error {
	return types.JSON.Unmarshal(data, dest)
}

// startSpan returns nil when the request carries no sentry hub
func startSpan(ctx context.Context, backend, operation, key string) *sentry.Span {
	if sentry.GetHubFromContext(ctx) == nil {
		return nil
	}

	span := sentry.StartSpan(ctx, "cache."+backend+"."+operation)
	span.Op = "db.cache"
	span.Description = operation + " " + key
	span.SetData("key", key)
	return span
}

func finishSpan(span *sentry.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.Status = sentry.SpanStatusInternalError
		span.SetData("error", err.Error())
	} else {
		span.Status = sentry.SpanStatusOK
	}
	span.Finish()
}

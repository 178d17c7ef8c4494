package types

import (
	ierr "github.com/petalpost/petalpost/internal/errors"
	"github.com/samber/lo"
)

type RunMode string

const (
	// ModeLocal runs the API server and the event router in one process
	ModeLocal RunMode = "local"
	// ModeAPI runs just the API server (cron is triggered externally)
	ModeAPI RunMode = "api"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// PubSubType defines the type of pubsub implementation
type PubSubType string

const (
	// MemoryPubSub uses in-memory implementation
	MemoryPubSub PubSubType = "memory"
)

// CacheType selects the cache backend
type CacheType string

const (
	CacheTypeMemory CacheType = "memory"
	CacheTypeRedis  CacheType = "redis"
)

func (t CacheType) Validate() error {
	allowed := []CacheType{CacheTypeMemory, CacheTypeRedis}
	if !lo.Contains(allowed, t) {
		return ierr.NewError("invalid cache type").
			WithHint("Cache type must be memory or redis").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

package config

import (
	"time"

	"github.com/petalpost/petalpost/internal/types"
	"github.com/samber/lo"
)

// Webhook represents the configuration for outbound domain events
type Webhook struct {
	Enabled bool             `mapstructure:"enabled"`
	Topic   string           `mapstructure:"topic"`
	PubSub  types.PubSubType `mapstructure:"pubsub"`
	// Endpoints receive every published event unless it is excluded.
	Endpoints []WebhookEndpoint `mapstructure:"endpoints"`

	MaxRetries      int           `mapstructure:"max_retries"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

// WebhookEndpoint is a single subscriber of outbound events
type WebhookEndpoint struct {
	URL            string            `mapstructure:"url"`
	Headers        map[string]string `mapstructure:"headers"`
	Enabled        bool              `mapstructure:"enabled"`
	ExcludedEvents []string          `mapstructure:"excluded_events"`
	// Secret signs every delivery to this endpoint when set
	Secret string `mapstructure:"secret"`
}

// Accepts reports whether the endpoint receives eventName
func (e WebhookEndpoint) Accepts(eventName string) bool {
	return e.Enabled && !lo.Contains(e.ExcludedEvents, eventName)
}

// Subscribed reports whether any endpoint receives eventName
func (w Webhook) Subscribed(eventName string) bool {
	return w.Enabled && lo.SomeBy(w.Endpoints, func(e WebhookEndpoint) bool {
		return e.Accepts(eventName)
	})
}

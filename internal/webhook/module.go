package webhook

import (
	"github.com/petalpost/petalpost/internal/config"
	ierr "github.com/petalpost/petalpost/internal/errors"
	"github.com/petalpost/petalpost/internal/logger"
	"github.com/petalpost/petalpost/internal/pubsub"
	"github.com/petalpost/petalpost/internal/pubsub/memory"
	"github.com/petalpost/petalpost/internal/types"
	"github.com/petalpost/petalpost/internal/webhook/handler"
	"github.com/petalpost/petalpost/internal/webhook/publisher"
	"go.uber.org/fx"
)

// Module wires outbound event delivery: the transport, the publisher the
// services write to and the handler that posts to endpoints
var Module = fx.Module("webhook",
	fx.Provide(
		providePubSub,
		publisher.NewPublisher,
		handler.NewHandler,
		NewWebhookService,
	),
)

func providePubSub(cfg *config.Configuration, logger *logger.Logger) (pubsub.PubSub, error) {
	switch cfg.Webhook.PubSub {
	case types.MemoryPubSub, "":
	default:
		return nil, ierr.NewErrorf("unsupported webhook pubsub %q", cfg.Webhook.PubSub).
			WithHint("Only the in-memory transport is available").
			Mark(ierr.ErrValidation)
	}

	for _, endpoint := range cfg.Webhook.Endpoints {
		if endpoint.Enabled && endpoint.Secret == "" {
			logger.Warnw("webhook endpoint has no signing secret, deliveries will be unsigned",
				"endpoint", endpoint.URL)
		}
	}
	return memory.NewPubSub(cfg, logger), nil
}

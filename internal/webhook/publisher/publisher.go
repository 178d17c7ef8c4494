package publisher

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/petalpost/petalpost/internal/config"
	ierr "github.com/petalpost/petalpost/internal/errors"
	"github.com/petalpost/petalpost/internal/logger"
	"github.com/petalpost/petalpost/internal/pubsub"
	"github.com/petalpost/petalpost/internal/types"
)

// WebhookPublisher queues outbound events for delivery
type WebhookPublisher interface {
	PublishWebhook(ctx context.Context, event *types.WebhookEvent) error
	Close() error
}

type webhookPublisher struct {
	pubSub pubsub.PubSub
	config *config.Webhook
	logger *logger.Logger
}

func NewPublisher(
	pubSub pubsub.PubSub,
	cfg *config.Configuration,
	logger *logger.Logger,
) (WebhookPublisher, error) {
	return &webhookPublisher{
		pubSub: pubSub,
		config: &cfg.Webhook,
		logger: logger,
	}, nil
}

// PublishWebhook fills in the event envelope and queues it. Events no
// endpoint receives are dropped here rather than at delivery.
func (p *webhookPublisher) PublishWebhook(ctx context.Context, event *types.WebhookEvent) error {
	if !p.config.Subscribed(event.EventName) {
		p.logger.Debugw("no endpoint receives event, skipping",
			"event_name", event.EventName,
		)
		return nil
	}

	if event.ID == "" {
		event.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_WEBHOOK_EVENT)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.UserID == "" {
		event.UserID = types.GetUserID(ctx)
	}

	payload, err := types.JSON.Marshal(event)
	if err != nil {
		return ierr.WithError(err).
			WithHintf("Event %s could not be encoded", event.EventName).
			Mark(ierr.ErrSystem)
	}

	// the event id doubles as the message id so redeliveries are recognisable
	msg := message.NewMessage(event.ID, payload)
	msg.Metadata.Set("event_name", event.EventName)
	msg.Metadata.Set("request_id", types.GetRequestID(ctx))

	if err := p.pubSub.Publish(ctx, p.config.Topic, msg); err != nil {
		p.logger.Errorw("failed to publish webhook event",
			"error", err,
			"event_id", event.ID,
			"event_name", event.EventName,
		)
		return ierr.WithError(err).
			WithHint("Event could not be queued for delivery").
			Mark(ierr.ErrTransient)
	}

	p.logger.Infow("queued webhook event",
		"event_id", event.ID,
		"event_name", event.EventName,
		"topic", p.config.Topic,
	)
	return nil
}

func (p *webhookPublisher) Close() error {
	return p.pubSub.Close()
}

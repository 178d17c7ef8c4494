package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/petalpost/petalpost/internal/config"
	ierr "github.com/petalpost/petalpost/internal/errors"
	"github.com/petalpost/petalpost/internal/httpclient"
	"github.com/petalpost/petalpost/internal/logger"
	"github.com/petalpost/petalpost/internal/pubsub"
	pubsubRouter "github.com/petalpost/petalpost/internal/pubsub/router"
	"github.com/petalpost/petalpost/internal/security"
	"github.com/petalpost/petalpost/internal/types"
	"github.com/samber/lo"
)

// Handler interface for processing webhook events
type Handler interface {
	RegisterHandler(router *pubsubRouter.Router)
}

type handler struct {
	pubSub pubsub.PubSub
	config *config.Webhook
	client httpclient.Client
	logger *logger.Logger
}

// NewHandler creates a handler that delivers events to the configured endpoints
func NewHandler(
	pubSub pubsub.PubSub,
	cfg *config.Configuration,
	client httpclient.Client,
	logger *logger.Logger,
) (Handler, error) {
	return &handler{
		pubSub: pubSub,
		config: &cfg.Webhook,
		client: client,
		logger: logger,
	}, nil
}

func (h *handler) RegisterHandler(router *pubsubRouter.Router) {
	router.AddNoPublishHandler(
		"webhook_handler",
		h.config.Topic,
		h.pubSub,
		h.processMessage,
	)
}

// processMessage processes a single webhook message
func (h *handler) processMessage(msg *message.Message) error {
	ctx := msg.Context()

	var event types.WebhookEvent
	if err := types.JSON.Unmarshal(msg.Payload, &event); err != nil {
		h.logger.Errorw("failed to unmarshal webhook event",
			"error", err,
			"message_uuid", msg.UUID,
		)
		return nil // Don't retry on unmarshal errors
	}

	ctx = types.SetUserID(ctx, event.UserID)
	ctx = types.SetRequestID(ctx, msg.Metadata.Get("request_id"))

	return h.deliver(ctx, &event, msg.Payload, msg.UUID)
}

// deliver posts the event to every enabled endpoint that does not exclude it.
// Any failed endpoint fails the message so that the router retries it.
func (h *handler) deliver(ctx context.Context, event *types.WebhookEvent, body []byte, messageUUID string) error {
	var failed error
	for _, endpoint := range h.config.Endpoints {
		if !endpoint.Accepts(event.EventName) {
			h.logger.Debugw("endpoint does not receive event",
				"endpoint", endpoint.URL,
				"event", event.EventName,
			)
			continue
		}

		headers := lo.Assign(endpoint.Headers, map[string]string{
			"X-Petalpost-Event":    event.EventName,
			"X-Petalpost-Event-Id": event.ID,
		})
		if endpoint.Secret != "" {
			headers[security.SignatureHeader] = security.SignPayload(endpoint.Secret, body, time.Now())
		}

		resp, err := h.client.Send(ctx, &httpclient.Request{
			Method:  http.MethodPost,
			URL:     endpoint.URL,
			Headers: headers,
			Body:    body,
		})
		if err != nil {
			h.logger.Errorw("failed to send webhook",
				"error", err,
				"endpoint", endpoint.URL,
				"message_uuid", messageUUID,
				"event", event.EventName,
			)
			failed = err
			continue
		}

		h.logger.Infow("webhook sent successfully",
			"endpoint", endpoint.URL,
			"message_uuid", messageUUID,
			"event", event.EventName,
			"status_code", resp.StatusCode,
		)
	}

	if failed != nil {
		return ierr.WithError(failed).
			WithHintf("Delivery of %s did not reach every endpoint", event.EventName).
			Mark(ierr.ErrHTTPClient)
	}
	return nil
}

package webhook

import (
	"context"

	"github.com/petalpost/petalpost/internal/config"
	"github.com/petalpost/petalpost/internal/logger"
	pubsubRouter "github.com/petalpost/petalpost/internal/pubsub/router"
	"github.com/petalpost/petalpost/internal/webhook/handler"
	"github.com/petalpost/petalpost/internal/webhook/publisher"
)

// WebhookService orchestrates webhook operations
type WebhookService struct {
	config    *config.Configuration
	publisher publisher.WebhookPublisher
	handler   handler.Handler
	router    *pubsubRouter.Router
	logger    *logger.Logger
}

// NewWebhookService creates a new webhook service
func NewWebhookService(
	cfg *config.Configuration,
	publisher publisher.WebhookPublisher,
	h handler.Handler,
	router *pubsubRouter.Router,
	l *logger.Logger,
) *WebhookService {
	return &WebhookService{
		config:    cfg,
		publisher: publisher,
		handler:   h,
		router:    router,
		logger:    l,
	}
}

// Start registers the delivery handler on the router. The router itself is
// run by the process lifecycle.
func (s *WebhookService) Start(_ context.Context) error {
	if !s.config.Webhook.Enabled {
		s.logger.Info("webhook delivery disabled")
		return nil
	}

	s.handler.RegisterHandler(s.router)
	s.logger.Infow("webhook delivery registered",
		"topic", s.config.Webhook.Topic,
		"endpoints", len(s.config.Webhook.Endpoints),
	)
	return nil
}

// Stop closes the publisher
func (s *WebhookService) Stop() error {
	if err := s.publisher.Close(); err != nil {
		s.logger.Errorw("failed to close webhook publisher", "error", err)
		return err
	}

	s.logger.Info("webhook service stopped")
	return nil
}

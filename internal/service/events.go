package service

import (
	"context"
	"encoding/json"

	"github.com/petalpost/petalpost/internal/api/dto"
	"github.com/petalpost/petalpost/internal/domain/invoice"
	"github.com/petalpost/petalpost/internal/domain/order"
	"github.com/petalpost/petalpost/internal/domain/subscription"
	"github.com/petalpost/petalpost/internal/types"
	webhookDto "github.com/petalpost/petalpost/internal/webhook/dto"
)

// Events are published once the owning transaction has committed. A failed
// publish is logged and never undoes billing state.

func (p ServiceParams) publishWebhookEvent(ctx context.Context, eventName string, payload any) {
	if p.WebhookPublisher == nil {
		return
	}

	raw, err := types.JSON.Marshal(payload)
	if err != nil {
		p.Logger.Errorw("failed to marshal webhook payload", "error", err, "event_name", eventName)
		return
	}

	event := &types.WebhookEvent{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_WEBHOOK_EVENT),
		EventName: eventName,
		UserID:    types.GetUserID(ctx),
		Timestamp: p.Clock.Now().UTC(),
		Payload:   json.RawMessage(raw),
	}
	if err := p.WebhookPublisher.PublishWebhook(ctx, event); err != nil {
		p.Logger.Errorf("failed to publish %s event: %v", event.EventName, err)
	}
}

func (p ServiceParams) publishInvoiceEvent(ctx context.Context, eventName string, inv *invoice.Invoice) {
	p.publishWebhookEvent(ctx, eventName, webhookDto.NewInvoiceWebhookPayload(dto.NewInvoiceResponse(inv), eventName))
}

func (p ServiceParams) publishSubscriptionEvent(ctx context.Context, eventName string, sub *subscription.Subscription) {
	p.publishWebhookEvent(ctx, eventName, webhookDto.NewSubscriptionWebhookPayload(dto.NewSubscriptionResponse(sub), eventName))
}

func (p ServiceParams) publishOrderEvent(ctx context.Context, eventName string, o *order.Order) {
	p.publishWebhookEvent(ctx, eventName, webhookDto.NewOrderWebhookPayload(dto.NewOrderResponse(o), eventName))
}

func (p ServiceParams) publishPaymentRejectedEvent(ctx context.Context, result *dto.ITNResult) {
	p.publishWebhookEvent(ctx, types.WebhookEventPaymentRejected, webhookDto.NewPaymentRejectedWebhookPayload(result))
}

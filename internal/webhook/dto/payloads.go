package webhookDto

import (
	"github.com/petalpost/petalpost/internal/api/dto"
	"github.com/petalpost/petalpost/internal/types"
)

// Payloads carry the entity as committed. Receivers should treat them as
// a snapshot and fetch through the API when they need current state.

type InvoiceWebhookPayload struct {
	EventType string               `json:"event_type"`
	Invoice   *dto.InvoiceResponse `json:"invoice"`
}

type SubscriptionWebhookPayload struct {
	EventType    string                    `json:"event_type"`
	Subscription *dto.SubscriptionResponse `json:"subscription"`
}

type OrderWebhookPayload struct {
	EventType string             `json:"event_type"`
	Order     *dto.OrderResponse `json:"order"`
}

// PaymentRejectedWebhookPayload reports a notification that failed verification
type PaymentRejectedWebhookPayload struct {
	EventType    string                     `json:"event_type"`
	Reference    string                     `json:"reference"`
	PayableType  types.PayableType          `json:"payable_type,omitempty"`
	PayableID    string                     `json:"payable_id,omitempty"`
	FailedChecks []types.PaymentCheck       `json:"failed_checks"`
	Decision     types.NotificationDecision `json:"decision"`
}

func NewInvoiceWebhookPayload(invoice *dto.InvoiceResponse, eventType string) *InvoiceWebhookPayload {
	return &InvoiceWebhookPayload{EventType: eventType, Invoice: invoice}
}

func NewSubscriptionWebhookPayload(subscription *dto.SubscriptionResponse, eventType string) *SubscriptionWebhookPayload {
	return &SubscriptionWebhookPayload{EventType: eventType, Subscription: subscription}
}

func NewOrderWebhookPayload(order *dto.OrderResponse, eventType string) *OrderWebhookPayload {
	return &OrderWebhookPayload{EventType: eventType, Order: order}
}

func NewPaymentRejectedWebhookPayload(result *dto.ITNResult) *PaymentRejectedWebhookPayload {
	return &PaymentRejectedWebhookPayload{
		EventType:    types.WebhookEventPaymentRejected,
		Reference:    result.Reference,
		PayableType:  result.PayableType,
		PayableID:    result.PayableID,
		FailedChecks: result.FailedChecks,
		Decision:     result.Decision,
	}
}

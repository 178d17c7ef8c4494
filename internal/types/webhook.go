package types

import (
	"encoding/json"
	"time"
)

// WebhookEvent represents a domain event to be delivered to subscribers
type WebhookEvent struct {
	ID        string          `json:"id"`
	EventName string          `json:"event_name"`
	UserID    string          `json:"user_id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

const (
	WebhookEventInvoiceCreated   = "invoice.created"
	WebhookEventInvoiceUpdated   = "invoice.updated"
	WebhookEventInvoicePaid      = "invoice.paid"
	WebhookEventInvoiceCancelled = "invoice.cancelled"
	WebhookEventOrderPaid        = "order.paid"
	WebhookEventPaymentRejected  = "payment.rejected"

	WebhookEventSubscriptionCreated = "subscription.created"
	WebhookEventSubscriptionUpdated = "subscription.updated"
)

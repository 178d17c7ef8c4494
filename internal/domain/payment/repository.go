package payment

import (
	"context"
)

// SessionRepository persists gateway checkout sessions
type SessionRepository interface {
	Create(ctx context.Context, session *Session) error
	Get(ctx context.Context, reference string) (*Session, error)
	GetForUpdate(ctx context.Context, reference string) (*Session, error)
	Update(ctx context.Context, session *Session) error
	ListByInvoice(ctx context.Context, invoiceID string) ([]*Session, error)
	// SupersedePending moves every pending session of the invoice or order to
	// superseded and returns how many were affected.
	SupersedePending(ctx context.Context, payableID string) (int, error)
}

// NotificationRepository is the append-only ITN log
type NotificationRepository interface {
	Create(ctx context.Context, n *Notification) error
	ListByReference(ctx context.Context, reference string) ([]*Notification, error)
}

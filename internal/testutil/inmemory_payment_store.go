package testutil

import (
	"context"
	"time"

	"github.com/petalpost/petalpost/internal/domain/payment"
	ierr "github.com/petalpost/petalpost/internal/errors"
	"github.com/petalpost/petalpost/internal/types"
	"github.com/samber/lo"
)

// InMemorySessionStore implements payment.SessionRepository
type InMemorySessionStore struct {
	*InMemoryStore[*payment.Session]
}

func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{
		InMemoryStore: NewInMemoryStore(copySession),
	}
}

func copySession(s *payment.Session) *payment.Session {
	if s == nil {
		return nil
	}
	c := *s
	c.FailedChecks = types.NewJSONB(append([]types.PaymentCheck(nil), s.FailedChecks.Data...))
	return &c
}

func (s *InMemorySessionStore) Create(ctx context.Context, session *payment.Session) error {
	if session == nil {
		return ierr.NewError("payment session cannot be nil").Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Create(ctx, session.Reference, session)
}

func (s *InMemorySessionStore) Get(ctx context.Context, reference string) (*payment.Session, error) {
	return s.InMemoryStore.Get(ctx, reference)
}

func (s *InMemorySessionStore) GetForUpdate(ctx context.Context, reference string) (*payment.Session, error) {
	return s.InMemoryStore.Get(ctx, reference)
}

func (s *InMemorySessionStore) Update(ctx context.Context, session *payment.Session) error {
	session.Touch(ctx)
	return s.InMemoryStore.Update(ctx, session.Reference, session)
}

func (s *InMemorySessionStore) ListByInvoice(ctx context.Context, invoiceID string) ([]*payment.Session, error) {
	return s.InMemoryStore.List(ctx, func(_ context.Context, session *payment.Session) bool {
		return lo.FromPtr(session.InvoiceID) == invoiceID
	}, sessionsByCreation, 0, 0), nil
}

func (s *InMemorySessionStore) SupersedePending(ctx context.Context, payableID string) (int, error) {
	pending := s.InMemoryStore.List(ctx, func(_ context.Context, session *payment.Session) bool {
		return session.IsPending() &&
			(lo.FromPtr(session.InvoiceID) == payableID || lo.FromPtr(session.OrderID) == payableID)
	}, nil, 0, 0)

	now := time.Now().UTC()
	for _, session := range pending {
		session.Status = types.PaymentSessionStatusSuperseded
		session.SupersededAt = &now
		session.Touch(ctx)
		if err := s.InMemoryStore.Update(ctx, session.Reference, session); err != nil {
			return 0, err
		}
	}
	return len(pending), nil
}

func sessionsByCreation(a, b *payment.Session) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.Reference < b.Reference
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

// InMemoryNotificationStore implements payment.NotificationRepository
type InMemoryNotificationStore struct {
	*InMemoryStore[*payment.Notification]
}

func NewInMemoryNotificationStore() *InMemoryNotificationStore {
	return &InMemoryNotificationStore{
		InMemoryStore: NewInMemoryStore(func(n *payment.Notification) *payment.Notification {
			c := *n
			c.RawParams = types.NewJSONB(append([][2]string(nil), n.RawParams.Data...))
			c.Checks = types.NewJSONB(append([]payment.CheckResult(nil), n.Checks.Data...))
			return &c
		}),
	}
}

func (s *InMemoryNotificationStore) Create(ctx context.Context, n *payment.Notification) error {
	return s.InMemoryStore.Create(ctx, n.ID, n)
}

func (s *InMemoryNotificationStore) ListByReference(ctx context.Context, reference string) ([]*payment.Notification, error) {
	return s.InMemoryStore.List(ctx, func(_ context.Context, n *payment.Notification) bool {
		return n.Reference == reference
	}, func(a, b *payment.Notification) bool {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID < b.ID
		}
		return a.CreatedAt.Before(b.CreatedAt)
	}, 0, 0), nil
}

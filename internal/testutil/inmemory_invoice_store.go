package testutil

import (
	"context"

	"github.com/petalpost/petalpost/internal/domain/invoice"
	ierr "github.com/petalpost/petalpost/internal/errors"
	"github.com/petalpost/petalpost/internal/types"
	"github.com/samber/lo"
)

// InMemoryInvoiceStore implements invoice.Repository
type InMemoryInvoiceStore struct {
	*InMemoryStore[*invoice.Invoice]
}

// NewInMemoryInvoiceStore creates a new in-memory invoice store
func NewInMemoryInvoiceStore() *InMemoryInvoiceStore {
	return &InMemoryInvoiceStore{
		InMemoryStore: NewInMemoryStore(copyInvoice),
	}
}

func copyInvoice(inv *invoice.Invoice) *invoice.Invoice {
	if inv == nil {
		return nil
	}
	c := *inv
	c.Adjustments = types.NewJSONB(append([]invoice.Adjustment(nil), inv.Adjustments.Data...))
	c.Metadata = lo.Assign(inv.Metadata)
	return &c
}

func (s *InMemoryInvoiceStore) Create(ctx context.Context, inv *invoice.Invoice) error {
	if inv == nil {
		return ierr.NewError("invoice cannot be nil").Mark(ierr.ErrValidation)
	}
	// mirrors the partial unique index on (subscription_id, cycle_month)
	if inv.InvoiceType == types.InvoiceTypeCycle {
		dup := s.InMemoryStore.Count(ctx, func(_ context.Context, other *invoice.Invoice) bool {
			return other.InvoiceType == types.InvoiceTypeCycle &&
				other.SubscriptionID == inv.SubscriptionID &&
				other.CycleMonth.Equal(inv.CycleMonth)
		})
		if dup > 0 {
			return ierr.NewError("cycle invoice already exists").
				WithHint("An invoice for this cycle already exists").
				Mark(ierr.ErrAlreadyExists)
		}
	}
	if inv.Version == 0 {
		inv.Version = 1
	}
	return s.InMemoryStore.Create(ctx, inv.ID, inv)
}

func (s *InMemoryInvoiceStore) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemoryInvoiceStore) GetForUpdate(ctx context.Context, id string) (*invoice.Invoice, error) {
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemoryInvoiceStore) Update(ctx context.Context, inv *invoice.Invoice) error {
	inv.Touch(ctx)
	err := s.Mutate(inv.ID, func(stored *invoice.Invoice) (*invoice.Invoice, error) {
		if stored.Version != inv.Version {
			return nil, versionConflict("invoice", inv.ID)
		}
		next := copyInvoice(inv)
		next.Version++
		return next, nil
	})
	if err != nil {
		return err
	}
	inv.Version++
	return nil
}

func (s *InMemoryInvoiceStore) List(ctx context.Context, filter *types.InvoiceFilter) ([]*invoice.Invoice, error) {
	limit, offset := 0, 0
	if filter != nil {
		limit, offset = filter.Limit, filter.Offset
	}
	return s.InMemoryStore.List(ctx, invoiceFilterFn(filter), invoiceNewestFirst, limit, offset), nil
}

func (s *InMemoryInvoiceStore) GetLatestPending(ctx context.Context, subscriptionID string) (*invoice.Invoice, error) {
	pending := s.InMemoryStore.List(ctx, func(_ context.Context, inv *invoice.Invoice) bool {
		return inv.SubscriptionID == subscriptionID &&
			inv.InvoiceType == types.InvoiceTypeCycle &&
			inv.InvoiceStatus == types.InvoiceStatusPendingPayment
	}, invoiceNewestFirst, 1, 0)
	if len(pending) == 0 {
		return nil, ierr.NewError("pending invoice not found").
			WithHint("No pending invoice").
			Mark(ierr.ErrNotFound)
	}
	return pending[0], nil
}

func invoiceNewestFirst(a, b *invoice.Invoice) bool {
	if a.CycleMonth.Equal(b.CycleMonth) {
		return a.InvoiceNumber > b.InvoiceNumber
	}
	return a.CycleMonth.After(b.CycleMonth)
}

func invoiceFilterFn(filter *types.InvoiceFilter) FilterFunc[*invoice.Invoice] {
	return func(_ context.Context, inv *invoice.Invoice) bool {
		if filter == nil {
			return true
		}
		if filter.SubscriptionID != "" && inv.SubscriptionID != filter.SubscriptionID {
			return false
		}
		if filter.CycleMonth != nil && !inv.CycleMonth.Equal(*filter.CycleMonth) {
			return false
		}
		if len(filter.InvoiceTypes) > 0 && !lo.Contains(filter.InvoiceTypes, inv.InvoiceType) {
			return false
		}
		if len(filter.Statuses) > 0 && !lo.Contains(filter.Statuses, inv.InvoiceStatus) {
			return false
		}
		return true
	}
}

package testutil

import (
	"context"

	"github.com/petalpost/petalpost/internal/domain/subscription"
	ierr "github.com/petalpost/petalpost/internal/errors"
	"github.com/petalpost/petalpost/internal/types"
	"github.com/samber/lo"
)

// InMemorySubscriptionStore implements subscription.Repository
type InMemorySubscriptionStore struct {
	*InMemoryStore[*subscription.Subscription]
}

// NewInMemorySubscriptionStore creates a new in-memory subscription store
func NewInMemorySubscriptionStore() *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{
		InMemoryStore: NewInMemoryStore(copySubscription),
	}
}

func copySubscription(sub *subscription.Subscription) *subscription.Subscription {
	if sub == nil {
		return nil
	}
	c := *sub
	c.DeliverySlots = types.NewJSONB(append([]types.OrdinalSlot(nil), sub.DeliverySlots.Data...))
	c.RecurringCharges = types.NewJSONB(append([]subscription.RecurringCharge(nil), sub.RecurringCharges.Data...))
	c.Metadata = lo.Assign(sub.Metadata)
	return &c
}

func (s *InMemorySubscriptionStore) Create(ctx context.Context, sub *subscription.Subscription) error {
	if sub == nil {
		return ierr.NewError("subscription cannot be nil").Mark(ierr.ErrValidation)
	}
	if sub.Version == 0 {
		sub.Version = 1
	}
	return s.InMemoryStore.Create(ctx, sub.ID, sub)
}

func (s *InMemorySubscriptionStore) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemorySubscriptionStore) GetForUpdate(ctx context.Context, id string) (*subscription.Subscription, error) {
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemorySubscriptionStore) Update(ctx context.Context, sub *subscription.Subscription) error {
	sub.Touch(ctx)
	err := s.Mutate(sub.ID, func(stored *subscription.Subscription) (*subscription.Subscription, error) {
		if stored.Version != sub.Version {
			return nil, versionConflict("subscription", sub.ID)
		}
		next := copySubscription(sub)
		next.Version++
		return next, nil
	})
	if err != nil {
		return err
	}
	sub.Version++
	return nil
}

func (s *InMemorySubscriptionStore) List(ctx context.Context, filter *types.SubscriptionFilter) ([]*subscription.Subscription, error) {
	limit, offset := 0, 0
	if filter != nil {
		limit, offset = filter.Limit, filter.Offset
	}
	return s.InMemoryStore.List(ctx, subscriptionFilterFn(filter), func(a, b *subscription.Subscription) bool {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID < b.ID
		}
		return a.CreatedAt.Before(b.CreatedAt)
	}, limit, offset), nil
}

func (s *InMemorySubscriptionStore) Count(ctx context.Context, filter *types.SubscriptionFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, subscriptionFilterFn(filter)), nil
}

func subscriptionFilterFn(filter *types.SubscriptionFilter) FilterFunc[*subscription.Subscription] {
	return func(_ context.Context, sub *subscription.Subscription) bool {
		if filter == nil {
			return true
		}
		if filter.CustomerID != "" && sub.CustomerID != filter.CustomerID {
			return false
		}
		if len(filter.Statuses) > 0 && !lo.Contains(filter.Statuses, sub.SubscriptionStatus) {
			return false
		}
		return true
	}
}

func versionConflict(entity, id string) error {
	return ierr.NewErrorf("%s was modified concurrently", entity).
		WithHintf("The %s changed since it was read, please retry", entity).
		WithReportableDetails(map[string]any{"id": id}).
		Mark(ierr.ErrVersionConflict)
}

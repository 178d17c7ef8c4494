package testutil

import (
	"context"

	"github.com/petalpost/petalpost/internal/domain/order"
	"github.com/samber/lo"
)

// InMemoryOrderStore implements order.Repository
type InMemoryOrderStore struct {
	*InMemoryStore[*order.Order]
}

func NewInMemoryOrderStore() *InMemoryOrderStore {
	return &InMemoryOrderStore{
		InMemoryStore: NewInMemoryStore(func(o *order.Order) *order.Order {
			c := *o
			c.Metadata = lo.Assign(o.Metadata)
			return &c
		}),
	}
}

func (s *InMemoryOrderStore) Create(ctx context.Context, o *order.Order) error {
	if o.Version == 0 {
		o.Version = 1
	}
	return s.InMemoryStore.Create(ctx, o.ID, o)
}

func (s *InMemoryOrderStore) Get(ctx context.Context, id string) (*order.Order, error) {
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemoryOrderStore) GetForUpdate(ctx context.Context, id string) (*order.Order, error) {
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemoryOrderStore) Update(ctx context.Context, o *order.Order) error {
	o.Touch(ctx)
	err := s.Mutate(o.ID, func(stored *order.Order) (*order.Order, error) {
		if stored.Version != o.Version {
			return nil, versionConflict("order", o.ID)
		}
		next := *o
		next.Version++
		return &next, nil
	})
	if err != nil {
		return err
	}
	o.Version++
	return nil
}

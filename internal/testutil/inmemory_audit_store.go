package testutil

import (
	"context"

	"github.com/petalpost/petalpost/internal/domain/audit"
	"github.com/petalpost/petalpost/internal/types"
)

// InMemoryAuditStore implements audit.Repository
type InMemoryAuditStore struct {
	*InMemoryStore[*audit.Record]
}

func NewInMemoryAuditStore() *InMemoryAuditStore {
	return &InMemoryAuditStore{
		InMemoryStore: NewInMemoryStore(func(r *audit.Record) *audit.Record {
			c := *r
			return &c
		}),
	}
}

func (s *InMemoryAuditStore) Create(ctx context.Context, record *audit.Record) error {
	return s.InMemoryStore.Create(ctx, record.ID, record)
}

func (s *InMemoryAuditStore) ListByEntity(ctx context.Context, entityType types.AuditEntityType, entityID string) ([]*audit.Record, error) {
	return s.InMemoryStore.List(ctx, func(_ context.Context, r *audit.Record) bool {
		return r.EntityType == entityType && r.EntityID == entityID
	}, func(a, b *audit.Record) bool {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID < b.ID
		}
		return a.CreatedAt.Before(b.CreatedAt)
	}, 0, 0), nil
}

// All returns every record regardless of entity
func (s *InMemoryAuditStore) All(ctx context.Context) []*audit.Record {
	return s.InMemoryStore.List(ctx, nil, func(a, b *audit.Record) bool {
		return a.CreatedAt.Before(b.CreatedAt)
	}, 0, 0)
}

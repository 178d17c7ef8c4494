package subscription

import (
	"context"

	"github.com/petalpost/petalpost/internal/types"
)

type Repository interface {
	Create(ctx context.Context, subscription *Subscription) error
	Get(ctx context.Context, id string) (*Subscription, error)
	// GetForUpdate reads the subscription inside the caller's transaction
	// with a row lock.
	GetForUpdate(ctx context.Context, id string) (*Subscription, error)
	// Update persists the subscription when its version still matches and
	// bumps the version.
	Update(ctx context.Context, subscription *Subscription) error
	List(ctx context.Context, filter *types.SubscriptionFilter) ([]*Subscription, error)
	Count(ctx context.Context, filter *types.SubscriptionFilter) (int, error)
}

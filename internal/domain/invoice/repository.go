package invoice

import (
	"context"

	"github.com/petalpost/petalpost/internal/types"
)

// Repository defines the interface for invoice persistence operations
type Repository interface {
	// Create inserts a new invoice. A duplicate id yields ErrAlreadyExists.
	Create(ctx context.Context, invoice *Invoice) error

	// Get retrieves an invoice by ID
	Get(ctx context.Context, id string) (*Invoice, error)

	// GetForUpdate retrieves and row-locks an invoice inside the caller's transaction
	GetForUpdate(ctx context.Context, id string) (*Invoice, error)

	// Update persists an invoice when its version still matches
	Update(ctx context.Context, invoice *Invoice) error

	// List retrieves invoices based on filter criteria
	List(ctx context.Context, filter *types.InvoiceFilter) ([]*Invoice, error)

	// GetLatestPending returns the pending cycle invoice with the latest cycle month
	GetLatestPending(ctx context.Context, subscriptionID string) (*Invoice, error)
}

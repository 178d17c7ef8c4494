package testutil

import (
	"context"
	"sync"

	"github.com/petalpost/petalpost/internal/logger"
	"github.com/petalpost/petalpost/internal/postgres"
)

var _ postgres.IClient = (*MockPostgresClient)(nil) // Ensure MockPostgresClient implements IClient

// Transactional is implemented by in-memory stores that take part in mock transactions
type Transactional interface {
	Snapshot() any
	Restore(snapshot any)
}

type mockTxKey struct{}

// MockPostgresClient runs transactions one at a time and rolls every
// registered store back when the function fails, which is as strict as
// SERIALIZABLE isolation.
type MockPostgresClient struct {
	mu     sync.Mutex
	stores []Transactional
	logger *logger.Logger
}

// NewMockPostgresClient creates a new mock postgres client
func NewMockPostgresClient(logger *logger.Logger, stores ...Transactional) *MockPostgresClient {
	return &MockPostgresClient{
		stores: stores,
		logger: logger,
	}
}

// Register adds stores to roll back on failure
func (c *MockPostgresClient) Register(stores ...Transactional) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stores = append(c.stores, stores...)
}

// WithTx executes the given function within a transaction
func (c *MockPostgresClient) WithTx(ctx context.Context, fn func(context.Context) error) error {
	// If we're already in a transaction, reuse it
	if InTx(ctx) {
		return fn(ctx)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	snapshots := make([]any, len(c.stores))
	for i, s := range c.stores {
		snapshots[i] = s.Snapshot()
	}

	if err := fn(context.WithValue(ctx, mockTxKey{}, true)); err != nil {
		for i, s := range c.stores {
			s.Restore(snapshots[i])
		}
		c.logger.Debugw("mock transaction rolled back", "error", err)
		return err
	}
	return nil
}

// Querier is never used by the in-memory repositories
func (c *MockPostgresClient) Querier(ctx context.Context) postgres.Querier {
	return nil
}

// InTx reports whether ctx carries a mock transaction
func InTx(ctx context.Context) bool {
	v, _ := ctx.Value(mockTxKey{}).(bool)
	return v
}

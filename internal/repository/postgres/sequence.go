package postgres

import (
	"context"

	"github.com/petalpost/petalpost/internal/config"
	"github.com/petalpost/petalpost/internal/domain/invoice"
	"github.com/petalpost/petalpost/internal/logger"
	"github.com/petalpost/petalpost/internal/postgres"
)

type sequenceRepository struct {
	db     *postgres.DB
	logger *logger.Logger
	start  int64
}

func NewSequenceRepository(db *postgres.DB, cfg *config.Configuration, logger *logger.Logger) invoice.SequenceRepository {
	return &sequenceRepository{db: db, logger: logger, start: cfg.Billing.InvoiceNumberStart}
}

// Next increments the named counter in the caller's transaction. The row lock
// taken by the upsert serialises concurrent allocators.
func (r *sequenceRepository) Next(ctx context.Context, name string) (int64, error) {
	query := `
		INSERT INTO sequences (name, last_value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE
			SET last_value = sequences.last_value + 1,
				updated_at = NOW()
		RETURNING last_value
	`
	var value int64
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &value, query, name, r.start); err != nil {
		return 0, postgres.WrapError(err, "sequence", map[string]any{"name": name})
	}
	return value, nil
}

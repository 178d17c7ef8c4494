package postgres

import (
	"context"

	"github.com/petalpost/petalpost/internal/domain/audit"
	"github.com/petalpost/petalpost/internal/logger"
	"github.com/petalpost/petalpost/internal/postgres"
	"github.com/petalpost/petalpost/internal/types"
)

type auditRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewAuditRepository(db *postgres.DB, logger *logger.Logger) audit.Repository {
	return &auditRepository{db: db, logger: logger}
}

func (r *auditRepository) Create(ctx context.Context, record *audit.Record) error {
	query := `
		INSERT INTO audit_records (
			id,
			action,
			entity_type,
			entity_id,
			actor_id,
			reason,
			before_state,
			after_state,
			metadata,
			request_id,
			created_at
		) VALUES (
			:id,
			:action,
			:entity_type,
			:entity_id,
			:actor_id,
			:reason,
			:before_state,
			:after_state,
			:metadata,
			:request_id,
			:created_at
		)
	`
	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, record); err != nil {
		return postgres.WrapError(err, "audit record", map[string]any{"entity_id": record.EntityID})
	}
	return nil
}

func (r *auditRepository) ListByEntity(ctx context.Context, entityType types.AuditEntityType, entityID string) ([]*audit.Record, error) {
	var records []*audit.Record
	query := `
		SELECT * FROM audit_records
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at, id
	`
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &records, query, entityType, entityID); err != nil {
		return nil, postgres.WrapError(err, "audit records", map[string]any{"entity_id": entityID})
	}
	return records, nil
}

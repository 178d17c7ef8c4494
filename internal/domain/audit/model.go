package audit

import (
	"context"
	"time"

	"github.com/petalpost/petalpost/internal/types"
)

// Record is an immutable trail entry for one privileged mutation
type Record struct {
	ID         string                `db:"id" json:"id"`
	Action     types.AuditAction     `db:"action" json:"action"`
	EntityType types.AuditEntityType `db:"entity_type" json:"entity_type"`
	EntityID   string                `db:"entity_id" json:"entity_id"`
	ActorID    string                `db:"actor_id" json:"actor_id"`
	Reason     string                `db:"reason" json:"reason"`

	Before   types.JSONB[any]            `db:"before_state" json:"before"`
	After    types.JSONB[any]            `db:"after_state" json:"after"`
	Metadata types.JSONB[map[string]any] `db:"metadata" json:"metadata"`

	RequestID string    `db:"request_id" json:"request_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// NewRecord stamps actor, request id and time from ctx
func NewRecord(ctx context.Context, action types.AuditAction, entityType types.AuditEntityType, entityID, reason string, before, after any, metadata map[string]any) *Record {
	return &Record{
		ID:         types.GenerateUUIDWithPrefix(types.UUID_PREFIX_AUDIT),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    types.GetUserID(ctx),
		Reason:     reason,
		Before:     types.NewJSONB(before),
		After:      types.NewJSONB(after),
		Metadata:   types.NewJSONB(metadata),
		RequestID:  types.GetRequestID(ctx),
		CreatedAt:  time.Now().UTC(),
	}
}

// Repository is append-only: records are never updated or deleted
type Repository interface {
	Create(ctx context.Context, record *Record) error
	ListByEntity(ctx context.Context, entityType types.AuditEntityType, entityID string) ([]*Record, error)
}

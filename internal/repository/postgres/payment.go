package postgres

import (
	"context"

	"github.com/petalpost/petalpost/internal/domain/payment"
	"github.com/petalpost/petalpost/internal/logger"
	"github.com/petalpost/petalpost/internal/postgres"
	"github.com/petalpost/petalpost/internal/types"
)

type paymentSessionRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewPaymentSessionRepository(db *postgres.DB, logger *logger.Logger) payment.SessionRepository {
	return &paymentSessionRepository{db: db, logger: logger}
}

func (r *paymentSessionRepository) Create(ctx context.Context, s *payment.Session) error {
	query := `
		INSERT INTO payment_sessions (
			reference,
			payable_type,
			invoice_id,
			order_id,
			subscription_id,
			amount,
			currency,
			invoice_number,
			gateway_mode,
			status,
			failed_checks,
			gateway_payment_id,
			completed_at,
			superseded_at,
			created_at,
			updated_at,
			created_by,
			updated_by
		) VALUES (
			:reference,
			:payable_type,
			:invoice_id,
			:order_id,
			:subscription_id,
			:amount,
			:currency,
			:invoice_number,
			:gateway_mode,
			:status,
			:failed_checks,
			:gateway_payment_id,
			:completed_at,
			:superseded_at,
			:created_at,
			:updated_at,
			:created_by,
			:updated_by
		)
	`
	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, s); err != nil {
		return postgres.WrapError(err, "payment session", map[string]any{"reference": s.Reference})
	}
	return nil
}

func (r *paymentSessionRepository) Get(ctx context.Context, reference string) (*payment.Session, error) {
	return r.get(ctx, `SELECT * FROM payment_sessions WHERE reference = $1`, reference)
}

func (r *paymentSessionRepository) GetForUpdate(ctx context.Context, reference string) (*payment.Session, error) {
	return r.get(ctx, `SELECT * FROM payment_sessions WHERE reference = $1 FOR UPDATE`, reference)
}

func (r *paymentSessionRepository) get(ctx context.Context, query, reference string) (*payment.Session, error) {
	var s payment.Session
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &s, query, reference); err != nil {
		return nil, postgres.WrapError(err, "payment session", map[string]any{"reference": reference})
	}
	return &s, nil
}

func (r *paymentSessionRepository) Update(ctx context.Context, s *payment.Session) error {
	query := `
		UPDATE payment_sessions SET
			status = :status,
			failed_checks = :failed_checks,
			gateway_payment_id = :gateway_payment_id,
			completed_at = :completed_at,
			superseded_at = :superseded_at,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE reference = :reference
	`
	s.Touch(ctx)
	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, s); err != nil {
		return postgres.WrapError(err, "payment session", map[string]any{"reference": s.Reference})
	}
	return nil
}

func (r *paymentSessionRepository) ListByInvoice(ctx context.Context, invoiceID string) ([]*payment.Session, error) {
	var sessions []*payment.Session
	query := `SELECT * FROM payment_sessions WHERE invoice_id = $1 ORDER BY created_at`
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &sessions, query, invoiceID); err != nil {
		return nil, postgres.WrapError(err, "payment sessions", map[string]any{"invoice_id": invoiceID})
	}
	return sessions, nil
}

func (r *paymentSessionRepository) SupersedePending(ctx context.Context, payableID string) (int, error) {
	query := `
		UPDATE payment_sessions SET
			status = $1,
			superseded_at = NOW(),
			updated_at = NOW(),
			updated_by = $2
		WHERE (invoice_id = $3 OR order_id = $3) AND status = $4
	`
	result, err := r.db.GetQuerier(ctx).ExecContext(ctx, query,
		types.PaymentSessionStatusSuperseded,
		types.GetUserID(ctx),
		payableID,
		types.PaymentSessionStatusPending,
	)
	if err != nil {
		return 0, postgres.WrapError(err, "payment sessions", map[string]any{"payable_id": payableID})
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, postgres.WrapError(err, "payment sessions", nil)
	}
	return int(n), nil
}

type paymentNotificationRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewPaymentNotificationRepository(db *postgres.DB, logger *logger.Logger) payment.NotificationRepository {
	return &paymentNotificationRepository{db: db, logger: logger}
}

func (r *paymentNotificationRepository) Create(ctx context.Context, n *payment.Notification) error {
	query := `
		INSERT INTO payment_notifications (
			id,
			reference,
			gateway_payment_id,
			payment_status,
			amount_gross,
			source_ip,
			raw_params,
			checks,
			decision,
			created_at
		) VALUES (
			:id,
			:reference,
			:gateway_payment_id,
			:payment_status,
			:amount_gross,
			:source_ip,
			:raw_params,
			:checks,
			:decision,
			:created_at
		)
	`
	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, n); err != nil {
		return postgres.WrapError(err, "payment notification", map[string]any{"reference": n.Reference})
	}
	return nil
}

func (r *paymentNotificationRepository) ListByReference(ctx context.Context, reference string) ([]*payment.Notification, error) {
	var list []*payment.Notification
	query := `SELECT * FROM payment_notifications WHERE reference = $1 ORDER BY created_at`
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &list, query, reference); err != nil {
		return nil, postgres.WrapError(err, "payment notifications", map[string]any{"reference": reference})
	}
	return list, nil
}

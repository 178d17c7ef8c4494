package postgres

import (
	"context"

	"github.com/petalpost/petalpost/internal/domain/order"
	"github.com/petalpost/petalpost/internal/logger"
	"github.com/petalpost/petalpost/internal/postgres"
)

type orderRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewOrderRepository(db *postgres.DB, logger *logger.Logger) order.Repository {
	return &orderRepository{db: db, logger: logger}
}

func (r *orderRepository) Create(ctx context.Context, o *order.Order) error {
	query := `
		INSERT INTO orders (
			id,
			invoice_number,
			customer_id,
			customer_email,
			description,
			amount,
			currency,
			payment_method,
			order_status,
			active_payment_reference,
			paid_at,
			paid_reference,
			metadata,
			version,
			created_at,
			updated_at,
			created_by,
			updated_by
		) VALUES (
			:id,
			:invoice_number,
			:customer_id,
			:customer_email,
			:description,
			:amount,
			:currency,
			:payment_method,
			:order_status,
			:active_payment_reference,
			:paid_at,
			:paid_reference,
			:metadata,
			:version,
			:created_at,
			:updated_at,
			:created_by,
			:updated_by
		)
	`

	if o.Version == 0 {
		o.Version = 1
	}
	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, o); err != nil {
		return postgres.WrapError(err, "order", map[string]any{"order_id": o.ID})
	}
	return nil
}

func (r *orderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	return r.get(ctx, `SELECT * FROM orders WHERE id = $1`, id)
}

func (r *orderRepository) GetForUpdate(ctx context.Context, id string) (*order.Order, error) {
	return r.get(ctx, `SELECT * FROM orders WHERE id = $1 FOR UPDATE`, id)
}

func (r *orderRepository) get(ctx context.Context, query, id string) (*order.Order, error) {
	var o order.Order
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &o, query, id); err != nil {
		return nil, postgres.WrapError(err, "order", map[string]any{"order_id": id})
	}
	return &o, nil
}

func (r *orderRepository) Update(ctx context.Context, o *order.Order) error {
	query := `
		UPDATE orders SET
			order_status = :order_status,
			active_payment_reference = :active_payment_reference,
			paid_at = :paid_at,
			paid_reference = :paid_reference,
			metadata = :metadata,
			version = version + 1,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND version = :version
	`

	o.Touch(ctx)
	result, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, o)
	if err != nil {
		return postgres.WrapError(err, "order", map[string]any{"order_id": o.ID})
	}
	if err := checkVersion(result, "order", o.ID); err != nil {
		return err
	}
	o.Version++
	return nil
}

package postgres

import (
	"context"
	"strings"

	"github.com/lib/pq"
	"github.com/petalpost/petalpost/internal/domain/subscription"
	"github.com/petalpost/petalpost/internal/logger"
	"github.com/petalpost/petalpost/internal/postgres"
	"github.com/petalpost/petalpost/internal/types"
	"github.com/samber/lo"
)

type subscriptionRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewSubscriptionRepository(db *postgres.DB, logger *logger.Logger) subscription.Repository {
	return &subscriptionRepository{db: db, logger: logger}
}

func (r *subscriptionRepository) Create(ctx context.Context, sub *subscription.Subscription) error {
	query := `
		INSERT INTO subscriptions (
			id,
			customer_id,
			customer_email,
			customer_name,
			tier,
			price,
			currency,
			delivery_slots,
			address,
			payment_method,
			payment_approved,
			subscription_status,
			current_cycle_month,
			next_billing_month,
			recurring_charges,
			paused_at,
			cancelled_at,
			metadata,
			version,
			created_at,
			updated_at,
			created_by,
			updated_by
		) VALUES (
			:id,
			:customer_id,
			:customer_email,
			:customer_name,
			:tier,
			:price,
			:currency,
			:delivery_slots,
			:address,
			:payment_method,
			:payment_approved,
			:subscription_status,
			:current_cycle_month,
			:next_billing_month,
			:recurring_charges,
			:paused_at,
			:cancelled_at,
			:metadata,
			:version,
			:created_at,
			:updated_at,
			:created_by,
			:updated_by
		)
	`

	if sub.Version == 0 {
		sub.Version = 1
	}
	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, sub); err != nil {
		return postgres.WrapError(err, "subscription", map[string]any{"subscription_id": sub.ID})
	}
	return nil
}

func (r *subscriptionRepository) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	return r.get(ctx, `SELECT * FROM subscriptions WHERE id = $1`, id)
}

func (r *subscriptionRepository) GetForUpdate(ctx context.Context, id string) (*subscription.Subscription, error) {
	return r.get(ctx, `SELECT * FROM subscriptions WHERE id = $1 FOR UPDATE`, id)
}

func (r *subscriptionRepository) get(ctx context.Context, query, id string) (*subscription.Subscription, error) {
	var sub subscription.Subscription
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &sub, query, id); err != nil {
		return nil, postgres.WrapError(err, "subscription", map[string]any{"subscription_id": id})
	}
	return &sub, nil
}

func (r *subscriptionRepository) Update(ctx context.Context, sub *subscription.Subscription) error {
	query := `
		UPDATE subscriptions SET
			customer_email = :customer_email,
			customer_name = :customer_name,
			tier = :tier,
			price = :price,
			delivery_slots = :delivery_slots,
			address = :address,
			payment_method = :payment_method,
			payment_approved = :payment_approved,
			subscription_status = :subscription_status,
			current_cycle_month = :current_cycle_month,
			next_billing_month = :next_billing_month,
			recurring_charges = :recurring_charges,
			paused_at = :paused_at,
			cancelled_at = :cancelled_at,
			metadata = :metadata,
			version = version + 1,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND version = :version
	`

	sub.Touch(ctx)
	result, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, sub)
	if err != nil {
		return postgres.WrapError(err, "subscription", map[string]any{"subscription_id": sub.ID})
	}
	if err := checkVersion(result, "subscription", sub.ID); err != nil {
		return err
	}
	sub.Version++
	return nil
}

func (r *subscriptionRepository) List(ctx context.Context, filter *types.SubscriptionFilter) ([]*subscription.Subscription, error) {
	where, args := subscriptionWhere(filter)
	query := `SELECT * FROM subscriptions` + where + ` ORDER BY created_at, id`
	if filter != nil && filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += ` LIMIT $` + itoa(len(args)-1) + ` OFFSET $` + itoa(len(args))
	}

	var subs []*subscription.Subscription
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &subs, query, args...); err != nil {
		return nil, postgres.WrapError(err, "subscriptions", nil)
	}
	return subs, nil
}

func (r *subscriptionRepository) Count(ctx context.Context, filter *types.SubscriptionFilter) (int, error) {
	where, args := subscriptionWhere(filter)
	var count int
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &count, `SELECT COUNT(*) FROM subscriptions`+where, args...); err != nil {
		return 0, postgres.WrapError(err, "subscriptions", nil)
	}
	return count, nil
}

func subscriptionWhere(filter *types.SubscriptionFilter) (string, []interface{}) {
	if filter == nil {
		return "", nil
	}
	var (
		clauses []string
		args    []interface{}
	)
	if filter.CustomerID != "" {
		args = append(args, filter.CustomerID)
		clauses = append(clauses, "customer_id = $"+itoa(len(args)))
	}
	if len(filter.Statuses) > 0 {
		args = append(args, pq.Array(lo.Map(filter.Statuses, func(s types.SubscriptionStatus, _ int) string { return string(s) })))
		clauses = append(clauses, "subscription_status = ANY($"+itoa(len(args))+")")
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}


package postgres

import (
	"context"
	"strings"

	"github.com/lib/pq"
	"github.com/petalpost/petalpost/internal/domain/invoice"
	"github.com/petalpost/petalpost/internal/logger"
	"github.com/petalpost/petalpost/internal/postgres"
	"github.com/petalpost/petalpost/internal/types"
	"github.com/samber/lo"
)

type invoiceRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewInvoiceRepository(db *postgres.DB, logger *logger.Logger) invoice.Repository {
	return &invoiceRepository{db: db, logger: logger}
}

func (r *invoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	query := `
		INSERT INTO subscription_invoices (
			id,
			subscription_id,
			customer_id,
			customer_email,
			invoice_type,
			invoice_number,
			cycle_month,
			base_invoice_id,
			tier,
			currency,
			base_amount,
			adjustments,
			amount,
			is_prorated,
			proration_ratio,
			schedule,
			payment_method,
			payment_approved,
			invoice_status,
			active_payment_reference,
			paid_at,
			paid_reference,
			cancelled_at,
			email_status,
			email_attempts,
			email_last_attempt_at,
			pdf_path,
			metadata,
			version,
			created_at,
			updated_at,
			created_by,
			updated_by
		) VALUES (
			:id,
			:subscription_id,
			:customer_id,
			:customer_email,
			:invoice_type,
			:invoice_number,
			:cycle_month,
			:base_invoice_id,
			:tier,
			:currency,
			:base_amount,
			:adjustments,
			:amount,
			:is_prorated,
			:proration_ratio,
			:schedule,
			:payment_method,
			:payment_approved,
			:invoice_status,
			:active_payment_reference,
			:paid_at,
			:paid_reference,
			:cancelled_at,
			:email_status,
			:email_attempts,
			:email_last_attempt_at,
			:pdf_path,
			:metadata,
			:version,
			:created_at,
			:updated_at,
			:created_by,
			:updated_by
		)
	`

	if inv.Version == 0 {
		inv.Version = 1
	}
	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, inv); err != nil {
		return postgres.WrapError(err, "invoice", map[string]any{
			"invoice_id":      inv.ID,
			"subscription_id": inv.SubscriptionID,
			"cycle_month":     inv.CycleMonth.String(),
		})
	}
	return nil
}

func (r *invoiceRepository) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	return r.get(ctx, `SELECT * FROM subscription_invoices WHERE id = $1`, id)
}

func (r *invoiceRepository) GetForUpdate(ctx context.Context, id string) (*invoice.Invoice, error) {
	return r.get(ctx, `SELECT * FROM subscription_invoices WHERE id = $1 FOR UPDATE`, id)
}

func (r *invoiceRepository) get(ctx context.Context, query, id string) (*invoice.Invoice, error) {
	var inv invoice.Invoice
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &inv, query, id); err != nil {
		return nil, postgres.WrapError(err, "invoice", map[string]any{"invoice_id": id})
	}
	return &inv, nil
}

func (r *invoiceRepository) Update(ctx context.Context, inv *invoice.Invoice) error {
	query := `
		UPDATE subscription_invoices SET
			base_amount = :base_amount,
			adjustments = :adjustments,
			amount = :amount,
			tier = :tier,
			is_prorated = :is_prorated,
			proration_ratio = :proration_ratio,
			schedule = :schedule,
			payment_method = :payment_method,
			payment_approved = :payment_approved,
			invoice_status = :invoice_status,
			active_payment_reference = :active_payment_reference,
			paid_at = :paid_at,
			paid_reference = :paid_reference,
			cancelled_at = :cancelled_at,
			email_status = :email_status,
			email_attempts = :email_attempts,
			email_last_attempt_at = :email_last_attempt_at,
			pdf_path = :pdf_path,
			metadata = :metadata,
			version = version + 1,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND version = :version
	`

	inv.Touch(ctx)
	result, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, inv)
	if err != nil {
		return postgres.WrapError(err, "invoice", map[string]any{"invoice_id": inv.ID})
	}
	if err := checkVersion(result, "invoice", inv.ID); err != nil {
		return err
	}
	inv.Version++
	return nil
}

func (r *invoiceRepository) List(ctx context.Context, filter *types.InvoiceFilter) ([]*invoice.Invoice, error) {
	var (
		clauses []string
		args    []interface{}
	)
	if filter != nil {
		if filter.SubscriptionID != "" {
			args = append(args, filter.SubscriptionID)
			clauses = append(clauses, "subscription_id = $"+itoa(len(args)))
		}
		if filter.CycleMonth != nil {
			args = append(args, filter.CycleMonth.String())
			clauses = append(clauses, "cycle_month = $"+itoa(len(args)))
		}
		if len(filter.InvoiceTypes) > 0 {
			args = append(args, pq.Array(lo.Map(filter.InvoiceTypes, func(t types.InvoiceType, _ int) string { return string(t) })))
			clauses = append(clauses, "invoice_type = ANY($"+itoa(len(args))+")")
		}
		if len(filter.Statuses) > 0 {
			args = append(args, pq.Array(lo.Map(filter.Statuses, func(s types.InvoiceStatus, _ int) string { return string(s) })))
			clauses = append(clauses, "invoice_status = ANY($"+itoa(len(args))+")")
		}
	}

	query := `SELECT * FROM subscription_invoices`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY cycle_month DESC, invoice_number DESC`
	if filter != nil && filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += ` LIMIT $` + itoa(len(args)-1) + ` OFFSET $` + itoa(len(args))
	}

	var invoices []*invoice.Invoice
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &invoices, query, args...); err != nil {
		return nil, postgres.WrapError(err, "invoices", nil)
	}
	return invoices, nil
}

func (r *invoiceRepository) GetLatestPending(ctx context.Context, subscriptionID string) (*invoice.Invoice, error) {
	query := `
		SELECT * FROM subscription_invoices
		WHERE subscription_id = $1 AND invoice_type = $2 AND invoice_status = $3
		ORDER BY cycle_month DESC
		LIMIT 1
	`
	var inv invoice.Invoice
	err := r.db.GetQuerier(ctx).GetContext(ctx, &inv, query,
		subscriptionID,
		types.InvoiceTypeCycle,
		types.InvoiceStatusPendingPayment,
	)
	if err != nil {
		return nil, postgres.WrapError(err, "pending invoice", map[string]any{"subscription_id": subscriptionID})
	}
	return &inv, nil
}

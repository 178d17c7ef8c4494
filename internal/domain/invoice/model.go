package invoice

import (
	"context"
	"fmt"
	"time"

	"github.com/petalpost/petalpost/internal/domain/delivery"
	ierr "github.com/petalpost/petalpost/internal/errors"
	"github.com/petalpost/petalpost/internal/types"
	"github.com/shopspring/decimal"
)

// Invoice is a subscription invoice. Amount is always derived from
// BaseAmount and the active adjustments, never set directly.
type Invoice struct {
	// ID is deterministic for cycle invoices and nonce-derived for top-ups
	ID             string `db:"id" json:"id"`
	SubscriptionID string `db:"subscription_id" json:"subscription_id"`
	CustomerID     string `db:"customer_id" json:"customer_id"`
	CustomerEmail  string `db:"customer_email" json:"customer_email"`

	InvoiceType types.InvoiceType `db:"invoice_type" json:"invoice_type"`

	// InvoiceNumber comes from the sequence shared with retail orders
	InvoiceNumber int64            `db:"invoice_number" json:"invoice_number"`
	CycleMonth    types.CycleMonth `db:"cycle_month" json:"cycle_month"`

	// BaseInvoiceID is set on top-ups and points at the cycle invoice
	BaseInvoiceID *string `db:"base_invoice_id" json:"base_invoice_id,omitempty"`

	Tier       types.SubscriptionTier `db:"tier" json:"tier"`
	Currency   string                 `db:"currency" json:"currency"`
	BaseAmount decimal.Decimal        `db:"base_amount" json:"base_amount"`

	Adjustments types.JSONB[[]Adjustment] `db:"adjustments" json:"adjustments"`

	// Amount is BaseAmount plus every active adjustment
	Amount decimal.Decimal `db:"amount" json:"amount"`

	IsProrated     bool            `db:"is_prorated" json:"is_prorated"`
	ProrationRatio decimal.Decimal `db:"proration_ratio" json:"proration_ratio"`

	Schedule types.JSONB[delivery.Snapshot] `db:"schedule" json:"schedule"`

	PaymentMethod   types.PaymentMethod `db:"payment_method" json:"payment_method"`
	PaymentApproved bool                `db:"payment_approved" json:"payment_approved"`

	InvoiceStatus types.InvoiceStatus `db:"invoice_status" json:"invoice_status"`

	// ActivePaymentReference is the only session reference allowed to settle the invoice
	ActivePaymentReference *string    `db:"active_payment_reference" json:"active_payment_reference,omitempty"`
	PaidAt                 *time.Time `db:"paid_at" json:"paid_at,omitempty"`
	PaidReference          *string    `db:"paid_reference" json:"paid_reference,omitempty"`
	CancelledAt            *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`

	EmailStatus        *types.NotificationStatus `db:"email_status" json:"email_status,omitempty"`
	EmailAttempts      int                       `db:"email_attempts" json:"email_attempts"`
	EmailLastAttemptAt *time.Time                `db:"email_last_attempt_at" json:"email_last_attempt_at,omitempty"`
	PDFPath            *string                   `db:"pdf_path" json:"pdf_path,omitempty"`

	Metadata types.Metadata `db:"metadata" json:"metadata,omitempty"`
	Version  int            `db:"version" json:"version"`

	types.BaseModel
}

// Adjustment is a priced line item on top of the base amount
type Adjustment struct {
	ID          string                 `json:"id"`
	Description string                 `json:"description"`
	Amount      decimal.Decimal        `json:"amount"`
	UnitAmount  decimal.Decimal        `json:"unit_amount"`
	Quantity    int                    `json:"quantity"`
	Basis       types.ChargeBasis      `json:"basis"`
	Mode        types.AdjustmentMode   `json:"mode"`
	Source      types.AdjustmentSource `json:"source"`
	Status      types.ChargeStatus     `json:"status"`
	Reason      string                 `json:"reason,omitempty"`
	// RecurringChargeID links adjustments materialised from a subscription charge
	RecurringChargeID string     `json:"recurring_charge_id,omitempty"`
	CreatedBy         string     `json:"created_by"`
	CreatedAt         time.Time  `json:"created_at"`
	RemovedBy         string     `json:"removed_by,omitempty"`
	RemovedAt         *time.Time `json:"removed_at,omitempty"`
	RemovedReason     string     `json:"removed_reason,omitempty"`
}

// FormatNumber renders an allocated invoice number for customers
func FormatNumber(n int64) string {
	return fmt.Sprintf("INV-%06d", n)
}

// IsPending reports whether the invoice still awaits payment
func (i *Invoice) IsPending() bool {
	return i.InvoiceStatus == types.InvoiceStatusPendingPayment
}

// AdjustmentList returns every adjustment including removed ones
func (i *Invoice) AdjustmentList() []Adjustment {
	return i.Adjustments.Data
}

// ActiveAdjustments returns the adjustments that count towards the total
func (i *Invoice) ActiveAdjustments() []Adjustment {
	out := make([]Adjustment, 0, len(i.Adjustments.Data))
	for _, a := range i.Adjustments.Data {
		if a.Status == types.ChargeStatusActive {
			out = append(out, a)
		}
	}
	return out
}

// Recompute replays base + active adjustments into Amount
func (i *Invoice) Recompute() decimal.Decimal {
	amounts := make([]decimal.Decimal, 0, len(i.Adjustments.Data))
	for _, a := range i.ActiveAdjustments() {
		amounts = append(amounts, a.Amount)
	}
	i.BaseAmount = types.Round2(i.BaseAmount)
	i.Amount = types.SumRound2(i.BaseAmount, amounts...)
	return i.Amount
}

// SetBaseAmount replaces the base and recomputes the total
func (i *Invoice) SetBaseAmount(base decimal.Decimal) {
	i.BaseAmount = base
	i.Recompute()
}

// AddAdjustment appends an adjustment to a pending invoice and recomputes
func (i *Invoice) AddAdjustment(a Adjustment) error {
	if !i.IsPending() {
		return ierr.NewError("invoice is not pending").
			WithHintf("Charges can only be changed on unpaid invoices, invoice is %s", i.InvoiceStatus).
			WithReportableDetails(map[string]any{
				"invoice_id": i.ID,
				"status":     i.InvoiceStatus,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	a.Amount = types.Round2(a.Amount)
	if a.Status == "" {
		a.Status = types.ChargeStatusActive
	}
	i.Adjustments = types.NewJSONB(append(append([]Adjustment(nil), i.Adjustments.Data...), a))
	i.Recompute()
	return nil
}

// RescaleAdjustments reprices every active per-delivery adjustment for a new
// delivery count. The list is copied so earlier snapshots of the invoice keep
// their amounts. Callers recompute the total afterwards.
func (i *Invoice) RescaleAdjustments(price func(a Adjustment) decimal.Decimal, quantity int) {
	list := append([]Adjustment(nil), i.Adjustments.Data...)
	for idx, a := range list {
		if a.Status != types.ChargeStatusActive || a.Basis != types.ChargeBasisPerDelivery {
			continue
		}
		if a.UnitAmount.IsZero() && a.Quantity > 0 {
			a.UnitAmount = a.Amount.Div(decimal.NewFromInt(int64(a.Quantity)))
		}
		a.Quantity = quantity
		a.Amount = types.Round2(price(a))
		list[idx] = a
	}
	i.Adjustments = types.NewJSONB(list)
}

// RemoveAdjustment marks an adjustment removed and recomputes
func (i *Invoice) RemoveAdjustment(ctx context.Context, adjustmentID, reason string, at time.Time) (*Adjustment, error) {
	return i.removeWhere(ctx, reason, at, func(a Adjustment) bool { return a.ID == adjustmentID })
}

// RemoveRecurringCharge removes the adjustment materialised from chargeID
func (i *Invoice) RemoveRecurringCharge(ctx context.Context, chargeID, reason string, at time.Time) (*Adjustment, error) {
	return i.removeWhere(ctx, reason, at, func(a Adjustment) bool {
		return a.RecurringChargeID == chargeID && a.Status == types.ChargeStatusActive
	})
}

func (i *Invoice) removeWhere(ctx context.Context, reason string, at time.Time, match func(Adjustment) bool) (*Adjustment, error) {
	if !i.IsPending() {
		return nil, ierr.NewError("invoice is not pending").
			WithHintf("Charges can only be changed on unpaid invoices, invoice is %s", i.InvoiceStatus).
			Mark(ierr.ErrInvalidOperation)
	}

	list := append([]Adjustment(nil), i.Adjustments.Data...)
	for idx := range list {
		if !match(list[idx]) {
			continue
		}
		if list[idx].Status == types.ChargeStatusRemoved {
			return nil, ierr.NewError("adjustment already removed").
				WithHintf("Adjustment %s was already removed", list[idx].ID).
				Mark(ierr.ErrInvalidOperation)
		}
		list[idx].Status = types.ChargeStatusRemoved
		list[idx].RemovedAt = &at
		list[idx].RemovedBy = types.GetUserID(ctx)
		list[idx].RemovedReason = reason
		i.Adjustments = types.NewJSONB(list)
		i.Recompute()
		removed := list[idx]
		return &removed, nil
	}

	return nil, ierr.NewError("adjustment not found").
		WithHint("The charge does not exist on this invoice").
		WithReportableDetails(map[string]any{
			"invoice_id": i.ID,
		}).
		Mark(ierr.ErrNotFound)
}

// MarkPaid settles the invoice against reference
func (i *Invoice) MarkPaid(reference string, at time.Time) error {
	if !i.IsPending() {
		return ierr.NewError("invoice cannot be paid").
			WithHintf("Invoice is %s", i.InvoiceStatus).
			Mark(ierr.ErrInvalidOperation)
	}
	i.InvoiceStatus = types.InvoiceStatusPaid
	i.PaidAt = &at
	if reference != "" {
		i.PaidReference = &reference
	}
	i.ActivePaymentReference = nil
	return nil
}

// Cancel moves a pending invoice to cancelled
func (i *Invoice) Cancel(at time.Time) error {
	if !i.IsPending() {
		return ierr.NewError("invoice cannot be cancelled").
			WithHintf("Invoice is %s", i.InvoiceStatus).
			Mark(ierr.ErrInvalidOperation)
	}
	i.InvoiceStatus = types.InvoiceStatusCancelled
	i.CancelledAt = &at
	i.ActivePaymentReference = nil
	return nil
}

// ClearPaymentReference detaches any outstanding session reference
func (i *Invoice) ClearPaymentReference() {
	i.ActivePaymentReference = nil
}

package types

import (
	ierr "github.com/petalpost/petalpost/internal/errors"
	"github.com/samber/lo"
)

// InvoiceType categorizes subscription invoices
type InvoiceType string

const (
	// InvoiceTypeCycle is the one base invoice of a (subscription, cycle month)
	InvoiceTypeCycle InvoiceType = "cycle"
	// InvoiceTypeTopup supplements an already-paid cycle invoice
	InvoiceTypeTopup InvoiceType = "topup"
)

func (t InvoiceType) String() string {
	return string(t)
}

func (t InvoiceType) Validate() error {
	allowed := []InvoiceType{InvoiceTypeCycle, InvoiceTypeTopup}
	if !lo.Contains(allowed, t) {
		return ierr.NewError("invalid invoice type").
			WithHint("Please provide a valid invoice type").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// InvoiceStatus represents the state of an invoice. Paid and cancelled are terminal.
type InvoiceStatus string

const (
	InvoiceStatusPendingPayment InvoiceStatus = "pending_payment"
	InvoiceStatusPaid           InvoiceStatus = "paid"
	InvoiceStatusCancelled      InvoiceStatus = "cancelled"
)

func (s InvoiceStatus) String() string {
	return string(s)
}

func (s InvoiceStatus) Validate() error {
	allowed := []InvoiceStatus{
		InvoiceStatusPendingPayment,
		InvoiceStatusPaid,
		InvoiceStatusCancelled,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid invoice status").
			WithHint("Please provide a valid invoice status").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// IsTerminal reports whether no further transition is allowed
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusPaid || s == InvoiceStatusCancelled
}

// AdjustmentMode says whether an adjustment repeats on future cycles
type AdjustmentMode string

const (
	AdjustmentModeOneTime   AdjustmentMode = "one_time"
	AdjustmentModeRecurring AdjustmentMode = "recurring"
)

func (m AdjustmentMode) Validate() error {
	allowed := []AdjustmentMode{AdjustmentModeOneTime, AdjustmentModeRecurring}
	if !lo.Contains(allowed, m) {
		return ierr.NewError("invalid adjustment mode").
			WithHint("Please provide a valid adjustment mode").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// AdjustmentSource records what created an adjustment
type AdjustmentSource string

const (
	AdjustmentSourceAdmin           AdjustmentSource = "admin"
	AdjustmentSourceRecurringCharge AdjustmentSource = "recurring_charge"
)

// InvoiceFilter narrows invoice listings
type InvoiceFilter struct {
	SubscriptionID string
	CycleMonth     *CycleMonth
	InvoiceTypes   []InvoiceType
	Statuses       []InvoiceStatus
	Limit          int
	Offset         int
}

// NotificationStatus is the outcome of an outbound email attempt
type NotificationStatus string

const (
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
	NotificationStatusSkipped NotificationStatus = "skipped"
)

package dto

import (
	"github.com/petalpost/petalpost/internal/domain/audit"
	"github.com/petalpost/petalpost/internal/domain/delivery"
	ierr "github.com/petalpost/petalpost/internal/errors"
	"github.com/petalpost/petalpost/internal/types"
	"github.com/petalpost/petalpost/internal/validator"
	"github.com/shopspring/decimal"
)

// Every admin request carries the human reason recorded on the audit trail.

type OverrideSubscriptionStatusRequest struct {
	Status types.SubscriptionStatus `json:"status" validate:"required"`
	Reason string                   `json:"reason" validate:"required,notblank"`
}

func (r *OverrideSubscriptionStatusRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	return r.Status.Validate()
}

type OverrideInvoiceStatusRequest struct {
	Status types.InvoiceStatus `json:"status" validate:"required"`
	Reason string              `json:"reason" validate:"required,notblank"`
	// PaymentReference identifies the bank transfer when marking paid
	PaymentReference string `json:"payment_reference,omitempty"`
}

func (r *OverrideInvoiceStatusRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if r.Status != types.InvoiceStatusPaid && r.Status != types.InvoiceStatusCancelled {
		return ierr.NewError("invalid target status").
			WithHintf("Invoices can only be moved to %s or %s", types.InvoiceStatusPaid, types.InvoiceStatusCancelled).
			Mark(ierr.ErrValidation)
	}
	return nil
}

type AddInvoiceChargeRequest struct {
	Description string            `json:"description" validate:"required,max=255"`
	Amount      decimal.Decimal   `json:"amount"`
	Basis       types.ChargeBasis `json:"basis"`
	Reason      string            `json:"reason" validate:"required,notblank"`
}

func (r *AddInvoiceChargeRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if r.Basis == "" {
		r.Basis = types.ChargeBasisFlat
	}
	if err := r.Basis.Validate(); err != nil {
		return err
	}
	return validateChargeAmount(r.Amount)
}

type RemoveChargeRequest struct {
	Reason string `json:"reason" validate:"required,notblank"`
}

func (r *RemoveChargeRequest) Validate() error {
	return validator.ValidateRequest(r)
}

type AddRecurringChargeRequest struct {
	Description string            `json:"description" validate:"required,max=255"`
	Amount      decimal.Decimal   `json:"amount"`
	Basis       types.ChargeBasis `json:"basis"`
	Reason      string            `json:"reason" validate:"required,notblank"`
	// ApplyToPending also adds the charge to the latest unpaid cycle invoice
	ApplyToPending bool `json:"apply_to_pending"`
}

func (r *AddRecurringChargeRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if r.Basis == "" {
		r.Basis = types.ChargeBasisFlat
	}
	if err := r.Basis.Validate(); err != nil {
		return err
	}
	return validateChargeAmount(r.Amount)
}

type ReassignPlanRequest struct {
	Tier          types.SubscriptionTier `json:"tier" validate:"required"`
	Price         decimal.Decimal        `json:"price"`
	DeliverySlots []types.OrdinalSlot    `json:"delivery_slots"`
	Reason        string                 `json:"reason" validate:"required,notblank"`
}

func (r *ReassignPlanRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if err := r.Tier.Validate(); err != nil {
		return err
	}
	if !r.Price.IsPositive() {
		return ierr.NewError("price must be positive").
			WithHint("Plan price must be greater than zero").
			Mark(ierr.ErrValidation)
	}
	if !types.IsWholeCents(r.Price) {
		return ierr.NewError("price has too many decimals").
			WithHint("Price may have at most two decimal places").
			Mark(ierr.ErrValidation)
	}
	return delivery.ValidateSlots(r.Tier, r.DeliverySlots)
}

type ApproveManualPaymentRequest struct {
	Reason string `json:"reason" validate:"required,notblank"`
}

func (r *ApproveManualPaymentRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// ReassignPlanResult describes how the current cycle absorbed the change
type ReassignPlanResult struct {
	Subscription *SubscriptionResponse `json:"subscription"`
	// Invoice is the repriced pending cycle invoice, if there was one
	Invoice *InvoiceResponse `json:"invoice,omitempty"`
	// Topup is the supplementary invoice issued against a paid cycle
	Topup *InvoiceResponse `json:"topup,omitempty"`
}

type AuditRecordResponse struct {
	*audit.Record
}

type ListAuditRecordsResponse struct {
	Items []*AuditRecordResponse `json:"items"`
}

func validateChargeAmount(amount decimal.Decimal) error {
	if amount.IsZero() {
		return ierr.NewError("amount is required").
			WithHint("Charge amount cannot be zero").
			Mark(ierr.ErrValidation)
	}
	if !types.IsWholeCents(amount) {
		return ierr.NewError("amount has too many decimals").
			WithHint("Charge amount may have at most two decimal places").
			Mark(ierr.ErrValidation)
	}
	return nil
}

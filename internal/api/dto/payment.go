package dto

import (
	"github.com/petalpost/petalpost/internal/domain/payment"
	ierr "github.com/petalpost/petalpost/internal/errors"
	"github.com/petalpost/petalpost/internal/integration/payfast"
	"github.com/petalpost/petalpost/internal/types"
	"github.com/petalpost/petalpost/internal/validator"
	"github.com/shopspring/decimal"
)

type CreateCheckoutRequest struct {
	PayableType types.PayableType `json:"payable_type" validate:"required"`
	PayableID   string            `json:"payable_id" validate:"required"`
}

func (r *CreateCheckoutRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if r.PayableType != types.PayableTypeInvoice && r.PayableType != types.PayableTypeOrder {
		return ierr.NewError("invalid payable type").
			WithHintf("Payable type must be %s or %s", types.PayableTypeInvoice, types.PayableTypeOrder).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// CheckoutField is one hidden input of the gateway form, in signing order
type CheckoutField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CheckoutResponse is the signed form the storefront posts to the gateway
type CheckoutResponse struct {
	Reference string          `json:"reference"`
	Amount    decimal.Decimal `json:"amount"`
	Action    string          `json:"action"`
	Fields    []CheckoutField `json:"fields"`
}

func NewCheckoutResponse(session *payment.Session, checkout *payfast.Checkout) *CheckoutResponse {
	fields := make([]CheckoutField, 0, len(checkout.Fields))
	for _, p := range checkout.Fields {
		fields = append(fields, CheckoutField{Name: p.Key, Value: p.Value})
	}
	return &CheckoutResponse{
		Reference: session.Reference,
		Amount:    session.Amount,
		Action:    checkout.Action,
		Fields:    fields,
	}
}

// ITNResult is the reconciler's outcome for one gateway notification
type ITNResult struct {
	Reference    string                     `json:"reference"`
	Decision     types.NotificationDecision `json:"decision"`
	FailedChecks []types.PaymentCheck       `json:"failed_checks,omitempty"`
	PayableType  types.PayableType          `json:"payable_type,omitempty"`
	PayableID    string                     `json:"payable_id,omitempty"`
}

type PaymentSessionResponse struct {
	*payment.Session
}

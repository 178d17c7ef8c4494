package dto

import (
	"context"
	"strings"

	"github.com/petalpost/petalpost/internal/domain/order"
	ierr "github.com/petalpost/petalpost/internal/errors"
	"github.com/petalpost/petalpost/internal/types"
	"github.com/petalpost/petalpost/internal/validator"
	"github.com/shopspring/decimal"
)

type CreateOrderRequest struct {
	CustomerID    string              `json:"customer_id" validate:"required"`
	CustomerEmail string              `json:"customer_email" validate:"required,email"`
	Description   string              `json:"description" validate:"required,max=500"`
	Amount        decimal.Decimal     `json:"amount"`
	PaymentMethod types.PaymentMethod `json:"payment_method" validate:"required"`
	Metadata      types.Metadata      `json:"metadata,omitempty"`
}

func (r *CreateOrderRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if !r.Amount.IsPositive() {
		return ierr.NewError("amount must be positive").
			WithHint("Order amount must be greater than zero").
			Mark(ierr.ErrValidation)
	}
	return r.PaymentMethod.Validate()
}

// ToOrder builds the order. The invoice number is allocated by the caller
// inside the creating transaction.
func (r *CreateOrderRequest) ToOrder(ctx context.Context) *order.Order {
	return &order.Order{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ORDER),
		CustomerID:    r.CustomerID,
		CustomerEmail: strings.ToLower(strings.TrimSpace(r.CustomerEmail)),
		Description:   r.Description,
		Amount:        types.Round2(r.Amount),
		Currency:      types.DefaultCurrency,
		PaymentMethod: r.PaymentMethod,
		OrderStatus:   types.OrderStatusPendingPayment,
		Metadata:      r.Metadata,
		Version:       1,
		BaseModel:     types.GetDefaultBaseModel(ctx),
	}
}

type OrderResponse struct {
	*order.Order
}

func NewOrderResponse(o *order.Order) *OrderResponse {
	if o == nil {
		return nil
	}
	return &OrderResponse{Order: o}
}

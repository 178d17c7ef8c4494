package dto

import (
	"context"
	"strings"

	"github.com/petalpost/petalpost/internal/domain/delivery"
	"github.com/petalpost/petalpost/internal/domain/proration"
	"github.com/petalpost/petalpost/internal/domain/subscription"
	ierr "github.com/petalpost/petalpost/internal/errors"
	"github.com/petalpost/petalpost/internal/types"
	"github.com/petalpost/petalpost/internal/validator"
	"github.com/shopspring/decimal"
)

type CreateSubscriptionRequest struct {
	CustomerID    string                 `json:"customer_id" validate:"required"`
	CustomerEmail string                 `json:"customer_email" validate:"required,email"`
	CustomerName  string                 `json:"customer_name"`
	Tier          types.SubscriptionTier `json:"tier" validate:"required"`
	Price         decimal.Decimal        `json:"price"`
	DeliverySlots []types.OrdinalSlot    `json:"delivery_slots"`
	Address       AddressRequest         `json:"address" validate:"required"`
	PaymentMethod types.PaymentMethod    `json:"payment_method" validate:"required"`
	Metadata      types.Metadata         `json:"metadata,omitempty"`
}

// AddressRequest is the delivery address captured at signup
type AddressRequest struct {
	Line1      string `json:"line1" validate:"required,max=255"`
	Line2      string `json:"line2,omitempty" validate:"omitempty,max=255"`
	Suburb     string `json:"suburb,omitempty" validate:"omitempty,max=100"`
	City       string `json:"city" validate:"required,max=100"`
	PostalCode string `json:"postal_code" validate:"required,max=20"`
	Notes      string `json:"notes,omitempty" validate:"omitempty,max=500"`
}

func (r *CreateSubscriptionRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if err := r.Tier.Validate(); err != nil {
		return err
	}
	if err := r.PaymentMethod.Validate(); err != nil {
		return err
	}
	if !r.Price.IsPositive() {
		return ierr.NewError("price must be positive").
			WithHint("Subscription price must be greater than zero").
			Mark(ierr.ErrValidation)
	}
	if !types.IsWholeCents(r.Price) {
		return ierr.NewError("price has too many decimals").
			WithHint("Price may have at most two decimal places").
			WithReportableDetails(map[string]any{
				"price": r.Price.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	return delivery.ValidateSlots(r.Tier, r.DeliverySlots)
}

// ToSubscription builds the subscription document. Billing months are set
// by the caller once the signup invoice has been priced.
func (r *CreateSubscriptionRequest) ToSubscription(ctx context.Context) *subscription.Subscription {
	return &subscription.Subscription{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		CustomerID:    r.CustomerID,
		CustomerEmail: strings.ToLower(strings.TrimSpace(r.CustomerEmail)),
		CustomerName:  strings.TrimSpace(r.CustomerName),
		Tier:          r.Tier,
		Price:         types.Round2(r.Price),
		Currency:      types.DefaultCurrency,
		DeliverySlots: types.NewJSONB(append([]types.OrdinalSlot(nil), r.DeliverySlots...)),
		Address: types.NewJSONB(subscription.Address{
			Line1:      r.Address.Line1,
			Line2:      r.Address.Line2,
			Suburb:     r.Address.Suburb,
			City:       r.Address.City,
			PostalCode: r.Address.PostalCode,
			Notes:      r.Address.Notes,
		}),
		PaymentMethod:      r.PaymentMethod,
		SubscriptionStatus: types.SubscriptionStatusActive,
		RecurringCharges:   types.NewJSONB([]subscription.RecurringCharge{}),
		Metadata:           r.Metadata,
		Version:            1,
		BaseModel:          types.GetDefaultBaseModel(ctx),
	}
}

type SubscriptionResponse struct {
	*subscription.Subscription
}

func NewSubscriptionResponse(sub *subscription.Subscription) *SubscriptionResponse {
	if sub == nil {
		return nil
	}
	return &SubscriptionResponse{Subscription: sub}
}

// SignupResponse is returned by signup with the first invoice and its pricing
type SignupResponse struct {
	Subscription *SubscriptionResponse `json:"subscription"`
	Invoice      *InvoiceResponse      `json:"invoice"`
	Quote        *proration.Quote      `json:"quote"`
}

type ListSubscriptionsResponse = types.ListResponse[*SubscriptionResponse]

type UpdateDeliverySlotsRequest struct {
	DeliverySlots []types.OrdinalSlot `json:"delivery_slots" validate:"required,min=1"`
}

func (r *UpdateDeliverySlotsRequest) Validate(tier types.SubscriptionTier) error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	return delivery.ValidateSlots(tier, r.DeliverySlots)
}

// ResendInvoiceRequest optionally pins the cycle ("YYYY-MM") to resend
type ResendInvoiceRequest struct {
	CycleMonth string `json:"cycle_month,omitempty"`
}

// ParseCycleMonth returns the pinned cycle or nil when none was given
func (r *ResendInvoiceRequest) ParseCycleMonth() (*types.CycleMonth, error) {
	if r == nil || r.CycleMonth == "" {
		return nil, nil
	}
	month, err := types.ParseCycleMonth(r.CycleMonth)
	if err != nil {
		return nil, err
	}
	return &month, nil
}

// ResendInvoiceResponse reports the invoice that was emailed
type ResendInvoiceResponse struct {
	Invoice     *InvoiceResponse         `json:"invoice"`
	Created     bool                     `json:"created"`
	EmailStatus types.NotificationStatus `json:"email_status"`
}

package subscription

import (
	"context"
	"time"

	"github.com/petalpost/petalpost/internal/domain/delivery"
	ierr "github.com/petalpost/petalpost/internal/errors"
	"github.com/petalpost/petalpost/internal/types"
	"github.com/shopspring/decimal"
)

// Subscription is a customer's recurring flower delivery plan
type Subscription struct {
	// ID is the unique identifier for the subscription
	ID string `db:"id" json:"id"`

	// CustomerID is the identifier of the owning customer
	CustomerID    string `db:"customer_id" json:"customer_id"`
	CustomerEmail string `db:"customer_email" json:"customer_email"`
	CustomerName  string `db:"customer_name" json:"customer_name"`

	// Tier decides the required delivery count and eligible slots
	Tier types.SubscriptionTier `db:"tier" json:"tier"`

	// Price is the full cycle price of the tier
	Price    decimal.Decimal `db:"price" json:"price"`
	Currency string          `db:"currency" json:"currency"`

	DeliverySlots types.JSONB[[]types.OrdinalSlot] `db:"delivery_slots" json:"delivery_slots"`
	Address       types.JSONB[Address]             `db:"address" json:"address"`

	PaymentMethod types.PaymentMethod `db:"payment_method" json:"payment_method"`
	// PaymentApproved is set once a manual transfer has been confirmed by staff
	PaymentApproved bool `db:"payment_approved" json:"payment_approved"`

	SubscriptionStatus types.SubscriptionStatus `db:"subscription_status" json:"subscription_status"`

	// CurrentCycleMonth is the latest cycle an invoice was issued for
	CurrentCycleMonth types.CycleMonth `db:"current_cycle_month" json:"current_cycle_month"`

	// NextBillingMonth is the next cycle the scheduler should invoice
	NextBillingMonth types.CycleMonth `db:"next_billing_month" json:"next_billing_month"`

	RecurringCharges types.JSONB[[]RecurringCharge] `db:"recurring_charges" json:"recurring_charges"`

	PausedAt    *time.Time `db:"paused_at" json:"paused_at,omitempty"`
	CancelledAt *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`

	Metadata types.Metadata `db:"metadata" json:"metadata,omitempty"`

	// Version is bumped on every update
	Version int `db:"version" json:"version"`

	types.BaseModel
}

// Address is the delivery address snapshot taken at signup or on change
type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	Suburb     string `json:"suburb,omitempty"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Notes      string `json:"notes,omitempty"`
}

// RecurringCharge is added as an adjustment to every future cycle invoice
type RecurringCharge struct {
	ID          string             `json:"id"`
	Description string             `json:"description"`
	Amount      decimal.Decimal    `json:"amount"`
	Basis       types.ChargeBasis  `json:"basis"`
	Status      types.ChargeStatus `json:"status"`
	Reason      string             `json:"reason"`
	CreatedBy   string             `json:"created_by"`
	CreatedAt   time.Time          `json:"created_at"`
	RemovedBy   string             `json:"removed_by,omitempty"`
	RemovedAt   *time.Time         `json:"removed_at,omitempty"`
}

// Slots returns the chosen ordinal slots
func (s *Subscription) Slots() []types.OrdinalSlot {
	return s.DeliverySlots.Data
}

// SetSlots replaces the chosen ordinal slots
func (s *Subscription) SetSlots(slots []types.OrdinalSlot) {
	s.DeliverySlots = types.NewJSONB(append([]types.OrdinalSlot(nil), slots...))
}

// ActiveRecurringCharges returns the charges still applied to new cycles
func (s *Subscription) ActiveRecurringCharges() []RecurringCharge {
	out := make([]RecurringCharge, 0, len(s.RecurringCharges.Data))
	for _, c := range s.RecurringCharges.Data {
		if c.Status == types.ChargeStatusActive {
			out = append(out, c)
		}
	}
	return out
}

// AddRecurringCharge appends a new active recurring charge
func (s *Subscription) AddRecurringCharge(c RecurringCharge) {
	s.RecurringCharges = types.NewJSONB(append(s.RecurringCharges.Data, c))
}

// RemoveRecurringCharge marks the charge removed. Removed charges stay on the
// document so past invoices can still be explained.
func (s *Subscription) RemoveRecurringCharge(ctx context.Context, chargeID string, at time.Time) (*RecurringCharge, error) {
	charges := append([]RecurringCharge(nil), s.RecurringCharges.Data...)
	for i := range charges {
		if charges[i].ID != chargeID {
			continue
		}
		if charges[i].Status == types.ChargeStatusRemoved {
			return nil, ierr.NewError("recurring charge already removed").
				WithHintf("Recurring charge %s was already removed", chargeID).
				Mark(ierr.ErrInvalidOperation)
		}
		charges[i].Status = types.ChargeStatusRemoved
		charges[i].RemovedBy = types.GetUserID(ctx)
		charges[i].RemovedAt = &at
		s.RecurringCharges = types.NewJSONB(charges)
		removed := charges[i]
		return &removed, nil
	}
	return nil, ierr.NewError("recurring charge not found").
		WithHintf("Recurring charge %s does not exist on this subscription", chargeID).
		Mark(ierr.ErrNotFound)
}

// IsBillable reports whether the scheduler should invoice this subscription
func (s *Subscription) IsBillable() bool {
	return s.SubscriptionStatus == types.SubscriptionStatusActive
}

// Validate checks the fields the billing engine depends on. A subscription
// failing this is corrupt and cannot be billed.
func (s *Subscription) Validate() error {
	if s.ID == "" {
		return ierr.NewError("subscription id is required").
			Mark(ierr.ErrValidation)
	}
	if err := s.Tier.Validate(); err != nil {
		return err
	}
	if !s.Price.IsPositive() {
		return ierr.NewError("subscription price must be positive").
			WithReportableDetails(map[string]any{
				"subscription_id": s.ID,
				"price":           s.Price.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	if err := s.PaymentMethod.Validate(); err != nil {
		return err
	}
	return delivery.ValidateStoredSlots(s.Tier, s.Slots())
}

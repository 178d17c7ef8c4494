package types

import (
	ierr "github.com/petalpost/petalpost/internal/errors"
	"github.com/samber/lo"
)

// SubscriptionTier is the delivery frequency a customer signed up for
type SubscriptionTier string

const (
	SubscriptionTierWeekly   SubscriptionTier = "weekly"
	SubscriptionTierBiWeekly SubscriptionTier = "bi-weekly"
	SubscriptionTierMonthly  SubscriptionTier = "monthly"
)

func (t SubscriptionTier) String() string {
	return string(t)
}

func (t SubscriptionTier) Validate() error {
	allowed := []SubscriptionTier{
		SubscriptionTierWeekly,
		SubscriptionTierBiWeekly,
		SubscriptionTierMonthly,
	}
	if !lo.Contains(allowed, t) {
		return ierr.NewError("invalid subscription tier").
			WithHint("Please provide a valid subscription tier").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// SubscriptionStatus is the customer-facing lifecycle state
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPaused    SubscriptionStatus = "paused"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

func (s SubscriptionStatus) String() string {
	return string(s)
}

func (s SubscriptionStatus) Validate() error {
	allowed := []SubscriptionStatus{
		SubscriptionStatusActive,
		SubscriptionStatusPaused,
		SubscriptionStatusCancelled,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid subscription status").
			WithHint("Please provide a valid subscription status").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// PaymentMethod is how the customer settles invoices
type PaymentMethod string

const (
	// PaymentMethodGateway settles through the hosted card/EFT gateway
	PaymentMethodGateway PaymentMethod = "gateway"
	// PaymentMethodManualTransfer settles by bank transfer, matched by a human
	PaymentMethodManualTransfer PaymentMethod = "manual_transfer"
)

func (m PaymentMethod) String() string {
	return string(m)
}

func (m PaymentMethod) Validate() error {
	allowed := []PaymentMethod{
		PaymentMethodGateway,
		PaymentMethodManualTransfer,
	}
	if !lo.Contains(allowed, m) {
		return ierr.NewError("invalid payment method").
			WithHint("Please provide a valid payment method").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// OrdinalSlot names a position among a month's Mondays
type OrdinalSlot string

const (
	OrdinalSlotFirst  OrdinalSlot = "first"
	OrdinalSlotSecond OrdinalSlot = "second"
	OrdinalSlotThird  OrdinalSlot = "third"
	OrdinalSlotFourth OrdinalSlot = "fourth"
	// OrdinalSlotLast always aliases the final Monday of the month
	OrdinalSlotLast OrdinalSlot = "last"
)

// AllOrdinalSlots in calendar order
var AllOrdinalSlots = []OrdinalSlot{
	OrdinalSlotFirst,
	OrdinalSlotSecond,
	OrdinalSlotThird,
	OrdinalSlotFourth,
	OrdinalSlotLast,
}

func (s OrdinalSlot) String() string {
	return string(s)
}

func (s OrdinalSlot) Validate() error {
	if !lo.Contains(AllOrdinalSlots, s) {
		return ierr.NewError("invalid delivery slot").
			WithHint("Please provide a valid delivery slot").
			WithReportableDetails(map[string]any{
				"allowed": AllOrdinalSlots,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// CutoffRule decides which deliveries of a cycle are still orderable
type CutoffRule string

const (
	// CutoffRuleNextMondayOnly counts a delivery as owed only if it falls
	// strictly after the reference calendar day.
	CutoffRuleNextMondayOnly CutoffRule = "next_monday_only"
)

func (r CutoffRule) Validate() error {
	if r != CutoffRuleNextMondayOnly {
		return ierr.NewError("invalid cutoff rule").
			WithHint("Please provide a valid cutoff rule").
			WithReportableDetails(map[string]any{
				"allowed": []CutoffRule{CutoffRuleNextMondayOnly},
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ChargeBasis decides how a charge scales with the cycle
type ChargeBasis string

const (
	ChargeBasisFlat        ChargeBasis = "flat"
	ChargeBasisPerDelivery ChargeBasis = "per_delivery"
)

func (b ChargeBasis) Validate() error {
	allowed := []ChargeBasis{ChargeBasisFlat, ChargeBasisPerDelivery}
	if !lo.Contains(allowed, b) {
		return ierr.NewError("invalid charge basis").
			WithHint("Please provide a valid charge basis").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ChargeStatus tracks whether a charge still applies
type ChargeStatus string

const (
	ChargeStatusActive  ChargeStatus = "active"
	ChargeStatusRemoved ChargeStatus = "removed"
)

// SubscriptionFilter narrows subscription listings
type SubscriptionFilter struct {
	CustomerID string
	Statuses   []SubscriptionStatus
	Limit      int
	Offset     int
}

package proration

import (
	"time"

	"github.com/petalpost/petalpost/internal/domain/delivery"
	"github.com/petalpost/petalpost/internal/types"
	"github.com/shopspring/decimal"
)

// SignupParams holds the input for pricing the first invoice of a subscription.
type SignupParams struct {
	Tier        types.SubscriptionTier // Tier being signed up for
	Price       decimal.Decimal        // Full cycle price of the tier
	ChosenSlots []types.OrdinalSlot    // Customer slot selection (ignored for weekly)
	SignupAt    time.Time              // Instant the customer signed up
	CutoffRule  types.CutoffRule       // Rule deciding which deliveries are still orderable
	Location    *time.Location         // Business timezone
}

// CycleParams holds the input for pricing a recurring cycle invoice.
type CycleParams struct {
	Tier        types.SubscriptionTier
	Price       decimal.Decimal
	ChosenSlots []types.OrdinalSlot
	CycleMonth  types.CycleMonth
	CutoffRule  types.CutoffRule
	Location    *time.Location
}

// Quote is the priced outcome for one cycle.
type Quote struct {
	CycleMonth types.CycleMonth `json:"cycle_month"`
	// BaseAmount is what the cycle invoice bills before adjustments.
	BaseAmount decimal.Decimal `json:"base_amount"`
	// FullAmount is the unprorated amount for the same cycle.
	FullAmount decimal.Decimal `json:"full_amount"`
	IsProrated bool            `json:"is_prorated"`
	// Ratio is included / all deliveries of the cycle, 1 when not prorated.
	Ratio decimal.Decimal `json:"ratio"`
	// RolledForward is set when signup was too late to catch any delivery
	// and billing moved to the following month.
	RolledForward bool              `json:"rolled_forward"`
	Schedule      delivery.Snapshot `json:"schedule"`
}

// IncludedCount is the number of deliveries this quote bills for
func (q *Quote) IncludedCount() int {
	return q.Schedule.IncludedCount
}

package delivery

import (
	"sort"
	"time"

	ierr "github.com/petalpost/petalpost/internal/errors"
	"github.com/petalpost/petalpost/internal/types"
	"github.com/samber/lo"
)

// SlotModel is the name of the ordinal slot model recorded on snapshots
const SlotModel = "mondays_of_month"

var requiredCounts = map[types.SubscriptionTier]int{
	types.SubscriptionTierWeekly:   5,
	types.SubscriptionTierBiWeekly: 2,
	types.SubscriptionTierMonthly:  1,
}

// RequiredDeliveryCount is the nominal number of deliveries a tier owes per cycle.
// Weekly is further capped by the number of Mondays in the month.
func RequiredDeliveryCount(tier types.SubscriptionTier) (int, error) {
	count, ok := requiredCounts[tier]
	if !ok {
		return 0, ierr.NewError("unknown subscription tier").
			WithHintf("Tier %q has no delivery count", tier).
			Mark(ierr.ErrValidation)
	}
	return count, nil
}

// EligibleSlots returns the ordinal slots a customer may pick for tier.
// Weekly takes no choice.
func EligibleSlots(tier types.SubscriptionTier) []types.OrdinalSlot {
	switch tier {
	case types.SubscriptionTierBiWeekly, types.SubscriptionTierMonthly:
		return types.AllOrdinalSlots
	default:
		return nil
	}
}

// ValidateSlots checks a customer or admin slot selection. Non-weekly tiers
// must pick exactly as many slots as they have deliveries.
func ValidateSlots(tier types.SubscriptionTier, slots []types.OrdinalSlot) error {
	return validateSlots(tier, slots, true)
}

// ValidateStoredSlots checks a persisted selection. Short selections pass;
// ResolveCycleDeliveryDates backfills them.
func ValidateStoredSlots(tier types.SubscriptionTier, slots []types.OrdinalSlot) error {
	return validateSlots(tier, slots, false)
}

func validateSlots(tier types.SubscriptionTier, slots []types.OrdinalSlot, exact bool) error {
	required, err := RequiredDeliveryCount(tier)
	if err != nil {
		return err
	}
	if tier == types.SubscriptionTierWeekly {
		return nil
	}
	if len(slots) > required || (exact && len(slots) != required) {
		return ierr.NewError("wrong number of delivery slots").
			WithHintf("The %s tier needs exactly %d delivery slot(s)", tier, required).
			WithReportableDetails(map[string]any{
				"required": required,
				"chosen":   len(slots),
			}).
			Mark(ierr.ErrValidation)
	}
	if len(lo.Uniq(slots)) != len(slots) {
		return ierr.NewError("duplicate delivery slots").
			WithHint("Each delivery slot may only be chosen once").
			Mark(ierr.ErrValidation)
	}
	for _, s := range slots {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ResolveCycleDeliveryDates returns exactly the deliveries owed in month.
// Weekly ignores the selection and takes every Monday. Other tiers map chosen
// slots to dates, backfill from the earliest unused Mondays and keep the
// first `required` dates in order.
func ResolveCycleDeliveryDates(tier types.SubscriptionTier, chosen []types.OrdinalSlot, month types.CycleMonth, loc *time.Location) ([]time.Time, error) {
	required, err := RequiredDeliveryCount(tier)
	if err != nil {
		return nil, err
	}
	if err := month.Validate(); err != nil {
		return nil, err
	}

	cal := ResolveMonth(month, loc)
	if tier == types.SubscriptionTierWeekly {
		return lo.Slice(cal.Mondays, 0, required), nil
	}

	picked := make(map[int64]time.Time, required)
	for _, slot := range chosen {
		if d, ok := cal.Date(slot); ok {
			picked[d.Unix()] = d
		}
	}
	for _, d := range cal.Mondays {
		if len(picked) >= required {
			break
		}
		if _, ok := picked[d.Unix()]; !ok {
			picked[d.Unix()] = d
		}
	}

	dates := lo.Values(picked)
	sortDates(dates)
	return lo.Slice(dates, 0, required), nil
}

// FilterRemaining keeps the deliveries still owed relative to reference.
// Under next_monday_only a date counts only if its calendar day is strictly
// after reference's calendar day, both taken in loc.
func FilterRemaining(dates []time.Time, reference time.Time, rule types.CutoffRule, loc *time.Location) ([]time.Time, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}

	refDay := types.DateOnly(reference.In(loc))
	return lo.Filter(dates, func(d time.Time, _ int) bool {
		return types.DateOnly(d.In(loc)).After(refDay)
	}), nil
}

// Snapshot is the immutable delivery schedule attached to an invoice
type Snapshot struct {
	SlotModel     string              `json:"slot_model"`
	CutoffRule    types.CutoffRule    `json:"cutoff_rule"`
	CycleMonth    types.CycleMonth    `json:"cycle_month"`
	ChosenSlots   []types.OrdinalSlot `json:"chosen_slots,omitempty"`
	AllDates      []string            `json:"all_dates"`
	IncludedDates []string            `json:"included_dates"`
	AllCount      int                 `json:"all_count"`
	IncludedCount int                 `json:"included_count"`
}

const snapshotDateLayout = "2006-01-02"

// NewSnapshot freezes a schedule. Dates are stored as plain calendar days.
func NewSnapshot(month types.CycleMonth, rule types.CutoffRule, chosen []types.OrdinalSlot, all, included []time.Time) Snapshot {
	format := func(d time.Time, _ int) string { return d.Format(snapshotDateLayout) }
	return Snapshot{
		SlotModel:     SlotModel,
		CutoffRule:    rule,
		CycleMonth:    month,
		ChosenSlots:   append([]types.OrdinalSlot(nil), chosen...),
		AllDates:      lo.Map(all, format),
		IncludedDates: lo.Map(included, format),
		AllCount:      len(all),
		IncludedCount: len(included),
	}
}

func sortDates(dates []time.Time) {
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
}

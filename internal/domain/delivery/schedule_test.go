package delivery

import (
	"testing"
	"time"

	ierr "github.com/petalpost/petalpost/internal/errors"
	"github.com/petalpost/petalpost/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveCycleDeliveryDates_AllTiersAllMonths(t *testing.T) {
	tiers := []types.SubscriptionTier{
		types.SubscriptionTierWeekly,
		types.SubscriptionTierBiWeekly,
		types.SubscriptionTierMonthly,
	}
	selections := [][]types.OrdinalSlot{
		nil,
		{types.OrdinalSlotLast},
		{types.OrdinalSlotFourth, types.OrdinalSlotLast},
		{types.OrdinalSlotThird, types.OrdinalSlotFirst},
	}

	start := types.CycleMonth{Year: 2024, Month: time.January}
	for i := 0; i < 48; i++ {
		month := start.AddMonths(i)
		mondays := len(ResolveMonth(month, time.UTC).Mondays)

		for _, tier := range tiers {
			for _, chosen := range selections {
				dates, err := ResolveCycleDeliveryDates(tier, chosen, month, time.UTC)
				require.NoError(t, err)

				required, err := RequiredDeliveryCount(tier)
				require.NoError(t, err)
				if required > mondays {
					required = mondays
				}
				require.Len(t, dates, required, "%s %s %v", tier, month, chosen)

				for j, d := range dates {
					assert.Equal(t, time.Monday, d.Weekday())
					assert.True(t, month.Contains(d))
					if j > 0 {
						assert.True(t, dates[j-1].Before(d))
					}
				}
			}
		}
	}
}

func TestResolveCycleDeliveryDates_Selection(t *testing.T) {
	oct := types.CycleMonth{Year: 2024, Month: time.October} // 7 14 21 28

	tests := []struct {
		name     string
		tier     types.SubscriptionTier
		chosen   []types.OrdinalSlot
		expected []int
	}{
		{
			name:     "weekly_ignores_selection",
			tier:     types.SubscriptionTierWeekly,
			chosen:   []types.OrdinalSlot{types.OrdinalSlotFirst},
			expected: []int{7, 14, 21, 28},
		},
		{
			name:     "biweekly_exact_selection",
			tier:     types.SubscriptionTierBiWeekly,
			chosen:   []types.OrdinalSlot{types.OrdinalSlotThird, types.OrdinalSlotFirst},
			expected: []int{7, 21},
		},
		{
			name:     "biweekly_backfills_earliest_unused",
			tier:     types.SubscriptionTierBiWeekly,
			chosen:   []types.OrdinalSlot{types.OrdinalSlotLast},
			expected: []int{7, 28},
		},
		{
			name:     "biweekly_alias_collapses_then_backfills",
			tier:     types.SubscriptionTierBiWeekly,
			chosen:   []types.OrdinalSlot{types.OrdinalSlotFourth, types.OrdinalSlotLast},
			expected: []int{7, 28},
		},
		{
			name:     "monthly_no_selection_takes_first",
			tier:     types.SubscriptionTierMonthly,
			expected: []int{7},
		},
		{
			name:     "monthly_last",
			tier:     types.SubscriptionTierMonthly,
			chosen:   []types.OrdinalSlot{types.OrdinalSlotLast},
			expected: []int{28},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dates, err := ResolveCycleDeliveryDates(tt.tier, tt.chosen, oct, time.UTC)
			require.NoError(t, err)
			days := make([]int, len(dates))
			for i, d := range dates {
				days[i] = d.Day()
			}
			assert.Equal(t, tt.expected, days)
		})
	}
}

func TestResolveCycleDeliveryDates_Errors(t *testing.T) {
	_, err := ResolveCycleDeliveryDates("daily", nil, types.CycleMonth{Year: 2024, Month: time.May}, time.UTC)
	assert.Error(t, err)

	_, err = ResolveCycleDeliveryDates(types.SubscriptionTierMonthly, nil, types.CycleMonth{}, time.UTC)
	assert.Error(t, err)
}

func TestFilterRemaining(t *testing.T) {
	loc, err := time.LoadLocation("Africa/Johannesburg")
	require.NoError(t, err)

	month := types.CycleMonth{Year: 2024, Month: time.October}
	dates, err := ResolveCycleDeliveryDates(types.SubscriptionTierWeekly, nil, month, loc)
	require.NoError(t, err)

	tests := []struct {
		name      string
		reference time.Time
		expected  int
	}{
		{"before_month", time.Date(2024, 9, 30, 9, 0, 0, 0, loc), 4},
		{"on_a_monday_excludes_it", time.Date(2024, 10, 14, 0, 0, 0, 0, loc), 2},
		{"late_on_a_monday_excludes_it", time.Date(2024, 10, 14, 23, 59, 0, 0, loc), 2},
		{"day_before_a_monday_keeps_it", time.Date(2024, 10, 13, 23, 59, 0, 0, loc), 3},
		{"after_last_monday", time.Date(2024, 10, 29, 8, 0, 0, 0, loc), 0},
		// 22:30 UTC on the 13th is already the 14th in Johannesburg
		{"reference_converted_to_business_day", time.Date(2024, 10, 13, 22, 30, 0, 0, time.UTC), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remaining, err := FilterRemaining(dates, tt.reference, types.CutoffRuleNextMondayOnly, loc)
			require.NoError(t, err)
			assert.Len(t, remaining, tt.expected)
		})
	}

	_, err = FilterRemaining(dates, time.Now(), "same_day", loc)
	assert.Error(t, err)
}

func TestValidateSlots(t *testing.T) {
	tests := []struct {
		name    string
		tier    types.SubscriptionTier
		slots   []types.OrdinalSlot
		wantErr bool
	}{
		{"weekly takes no choice", types.SubscriptionTierWeekly, nil, false},
		{"bi-weekly with two slots", types.SubscriptionTierBiWeekly, []types.OrdinalSlot{types.OrdinalSlotFirst, types.OrdinalSlotThird}, false},
		{"monthly with one slot", types.SubscriptionTierMonthly, []types.OrdinalSlot{types.OrdinalSlotLast}, false},
		{"bi-weekly with one slot", types.SubscriptionTierBiWeekly, []types.OrdinalSlot{types.OrdinalSlotFirst}, true},
		{"monthly with no slot", types.SubscriptionTierMonthly, nil, true},
		{"monthly with two slots", types.SubscriptionTierMonthly, []types.OrdinalSlot{types.OrdinalSlotFirst, types.OrdinalSlotLast}, true},
		{"duplicate slots", types.SubscriptionTierBiWeekly, []types.OrdinalSlot{types.OrdinalSlotFirst, types.OrdinalSlotFirst}, true},
		{"unknown slot", types.SubscriptionTierBiWeekly, []types.OrdinalSlot{types.OrdinalSlotFirst, "fifth"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSlots(tt.tier, tt.slots)
			if tt.wantErr {
				assert.True(t, ierr.IsValidation(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateStoredSlots(t *testing.T) {
	// short selections are backfilled when dates are resolved
	assert.NoError(t, ValidateStoredSlots(types.SubscriptionTierBiWeekly, []types.OrdinalSlot{types.OrdinalSlotFirst}))
	assert.NoError(t, ValidateStoredSlots(types.SubscriptionTierMonthly, nil))
	assert.Error(t, ValidateStoredSlots(types.SubscriptionTierMonthly, []types.OrdinalSlot{types.OrdinalSlotFirst, types.OrdinalSlotLast}))
	assert.Error(t, ValidateStoredSlots(types.SubscriptionTierBiWeekly, []types.OrdinalSlot{types.OrdinalSlotFirst, types.OrdinalSlotFirst}))
}

func TestNewSnapshot(t *testing.T) {
	month := types.CycleMonth{Year: 2024, Month: time.October}
	all, err := ResolveCycleDeliveryDates(types.SubscriptionTierBiWeekly, []types.OrdinalSlot{types.OrdinalSlotFirst, types.OrdinalSlotLast}, month, time.UTC)
	require.NoError(t, err)
	included, err := FilterRemaining(all, time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC), types.CutoffRuleNextMondayOnly, time.UTC)
	require.NoError(t, err)

	snap := NewSnapshot(month, types.CutoffRuleNextMondayOnly, []types.OrdinalSlot{types.OrdinalSlotFirst, types.OrdinalSlotLast}, all, included)
	assert.Equal(t, SlotModel, snap.SlotModel)
	assert.Equal(t, []string{"2024-10-07", "2024-10-28"}, snap.AllDates)
	assert.Equal(t, []string{"2024-10-28"}, snap.IncludedDates)
	assert.Equal(t, 2, snap.AllCount)
	assert.Equal(t, 1, snap.IncludedCount)
}

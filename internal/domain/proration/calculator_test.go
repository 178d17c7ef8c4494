package proration

import (
	"context"
	"testing"
	"time"

	"github.com/petalpost/petalpost/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculator_Signup(t *testing.T) {
	loc, err := time.LoadLocation("Africa/Johannesburg")
	require.NoError(t, err)

	tests := []struct {
		name          string
		params        SignupParams
		expectedCycle types.CycleMonth
		expectedBase  string
		expectedRatio string
		prorated      bool
		rolled        bool
		included      int
	}{
		{
			// September 2024 Mondays: 2 9 16 23 30, slots first+last -> 2 and 30
			name: "biweekly_signup_on_28th_one_of_two_remaining",
			params: SignupParams{
				Tier:        types.SubscriptionTierBiWeekly,
				Price:       decimal.RequireFromString("699.00"),
				ChosenSlots: []types.OrdinalSlot{types.OrdinalSlotFirst, types.OrdinalSlotLast},
				SignupAt:    time.Date(2024, 9, 28, 10, 0, 0, 0, loc),
			},
			expectedCycle: types.CycleMonth{Year: 2024, Month: time.September},
			expectedBase:  "349.5",
			expectedRatio: "0.5",
			prorated:      true,
			included:      1,
		},
		{
			// October 2024 first Monday is the 7th
			name: "monthly_signup_on_1st_not_prorated",
			params: SignupParams{
				Tier:     types.SubscriptionTierMonthly,
				Price:    decimal.RequireFromString("399.00"),
				SignupAt: time.Date(2024, 10, 1, 8, 0, 0, 0, loc),
			},
			expectedCycle: types.CycleMonth{Year: 2024, Month: time.October},
			expectedBase:  "399",
			expectedRatio: "1",
			included:      1,
		},
		{
			name: "monthly_signup_after_last_delivery_rolls_to_next_month",
			params: SignupParams{
				Tier:        types.SubscriptionTierMonthly,
				Price:       decimal.RequireFromString("399.00"),
				ChosenSlots: []types.OrdinalSlot{types.OrdinalSlotFirst},
				SignupAt:    time.Date(2024, 10, 8, 8, 0, 0, 0, loc),
			},
			expectedCycle: types.CycleMonth{Year: 2024, Month: time.November},
			expectedBase:  "399",
			expectedRatio: "1",
			rolled:        true,
			included:      1,
		},
		{
			name: "signup_on_delivery_day_excludes_it",
			params: SignupParams{
				Tier:        types.SubscriptionTierMonthly,
				Price:       decimal.RequireFromString("399.00"),
				ChosenSlots: []types.OrdinalSlot{types.OrdinalSlotFirst},
				SignupAt:    time.Date(2024, 10, 7, 6, 0, 0, 0, loc),
			},
			expectedCycle: types.CycleMonth{Year: 2024, Month: time.November},
			expectedBase:  "399",
			expectedRatio: "1",
			rolled:        true,
			included:      1,
		},
		{
			// 4 Mondays in October, 3 remain after the 8th
			name: "weekly_signup_mid_month",
			params: SignupParams{
				Tier:     types.SubscriptionTierWeekly,
				Price:    decimal.RequireFromString("1000.00"),
				SignupAt: time.Date(2024, 10, 8, 8, 0, 0, 0, loc),
			},
			expectedCycle: types.CycleMonth{Year: 2024, Month: time.October},
			expectedBase:  "600",
			expectedRatio: "0.75",
			prorated:      true,
			included:      3,
		},
		{
			name: "repeating_fraction_rounds_to_cents",
			params: SignupParams{
				Tier:        types.SubscriptionTierBiWeekly,
				Price:       decimal.RequireFromString("333.33"),
				ChosenSlots: []types.OrdinalSlot{types.OrdinalSlotFirst, types.OrdinalSlotLast},
				SignupAt:    time.Date(2024, 9, 28, 10, 0, 0, 0, loc),
			},
			expectedCycle: types.CycleMonth{Year: 2024, Month: time.September},
			expectedBase:  "166.67",
			expectedRatio: "0.5",
			prorated:      true,
			included:      1,
		},
	}

	calc := NewCalculator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.params.CutoffRule = types.CutoffRuleNextMondayOnly
			tt.params.Location = loc

			q, err := calc.Signup(context.Background(), tt.params)
			require.NoError(t, err)

			assert.Equal(t, tt.expectedCycle, q.CycleMonth)
			assert.True(t, decimal.RequireFromString(tt.expectedBase).Equal(q.BaseAmount), "base %s", q.BaseAmount)
			assert.True(t, decimal.RequireFromString(tt.expectedRatio).Equal(q.Ratio), "ratio %s", q.Ratio)
			assert.Equal(t, tt.prorated, q.IsProrated)
			assert.Equal(t, tt.rolled, q.RolledForward)
			assert.Equal(t, tt.included, q.IncludedCount())
		})
	}
}

func TestCalculator_Cycle(t *testing.T) {
	calc := NewCalculator()
	ctx := context.Background()

	tests := []struct {
		name     string
		tier     types.SubscriptionTier
		price    string
		month    types.CycleMonth
		expected string
		count    int
	}{
		{"biweekly_full_price", types.SubscriptionTierBiWeekly, "699.00", types.CycleMonth{Year: 2024, Month: time.October}, "699", 2},
		{"monthly_full_price", types.SubscriptionTierMonthly, "399.00", types.CycleMonth{Year: 2024, Month: time.February}, "399", 1},
		{"weekly_five_mondays", types.SubscriptionTierWeekly, "1000.00", types.CycleMonth{Year: 2024, Month: time.September}, "1000", 5},
		{"weekly_four_mondays", types.SubscriptionTierWeekly, "1000.00", types.CycleMonth{Year: 2024, Month: time.October}, "800", 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := calc.Cycle(ctx, CycleParams{
				Tier:       tt.tier,
				Price:      decimal.RequireFromString(tt.price),
				CycleMonth: tt.month,
				CutoffRule: types.CutoffRuleNextMondayOnly,
				Location:   time.UTC,
			})
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.expected).Equal(q.BaseAmount), "base %s", q.BaseAmount)
			assert.False(t, q.IsProrated)
			assert.Equal(t, tt.count, q.Schedule.AllCount)
			assert.Equal(t, tt.count, q.Schedule.IncludedCount)
		})
	}
}

func TestCalculator_Validation(t *testing.T) {
	calc := NewCalculator()
	ctx := context.Background()

	_, err := calc.Cycle(ctx, CycleParams{
		Tier:       "daily",
		Price:      decimal.NewFromInt(10),
		CycleMonth: types.CycleMonth{Year: 2024, Month: time.October},
		CutoffRule: types.CutoffRuleNextMondayOnly,
	})
	assert.Error(t, err)

	_, err = calc.Cycle(ctx, CycleParams{
		Tier:       types.SubscriptionTierMonthly,
		Price:      decimal.Zero,
		CycleMonth: types.CycleMonth{Year: 2024, Month: time.October},
		CutoffRule: types.CutoffRuleNextMondayOnly,
	})
	assert.Error(t, err)

	_, err = calc.Signup(ctx, SignupParams{
		Tier:       types.SubscriptionTierMonthly,
		Price:      decimal.NewFromInt(10),
		CutoffRule: types.CutoffRuleNextMondayOnly,
	})
	assert.Error(t, err)
}

func TestChargeAmount(t *testing.T) {
	assert.True(t, decimal.RequireFromString("50").Equal(ChargeAmount(decimal.RequireFromString("50"), types.ChargeBasisFlat, 4)))
	assert.True(t, decimal.RequireFromString("101.00").Equal(ChargeAmount(decimal.RequireFromString("25.25"), types.ChargeBasisPerDelivery, 4)))
	assert.True(t, decimal.RequireFromString("0").Equal(ChargeAmount(decimal.RequireFromString("25.25"), types.ChargeBasisPerDelivery, 0)))
}

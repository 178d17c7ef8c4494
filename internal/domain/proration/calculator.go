package proration

import (
	"context"
	"time"

	"github.com/petalpost/petalpost/internal/domain/delivery"
	ierr "github.com/petalpost/petalpost/internal/errors"
	"github.com/petalpost/petalpost/internal/types"
	"github.com/shopspring/decimal"
)

// Calculator prices subscription cycles against the delivery calendar.
type Calculator interface {
	// Signup prices the first invoice. When no delivery of the signup month
	// is still orderable it quotes the next month at full price instead.
	Signup(ctx context.Context, params SignupParams) (*Quote, error)

	// Cycle prices a recurring cycle. Recurring cycles are never prorated.
	Cycle(ctx context.Context, params CycleParams) (*Quote, error)
}

// NewCalculator creates the delivery-count based calculator.
func NewCalculator() Calculator {
	return &deliveryCountCalculator{}
}

// deliveryCountCalculator charges price × deliveries / nominal deliveries.
type deliveryCountCalculator struct{}

func (c *deliveryCountCalculator) Signup(ctx context.Context, params SignupParams) (*Quote, error) {
	if err := validate(params.Tier, params.Price, params.CutoffRule); err != nil {
		return nil, err
	}
	if params.SignupAt.IsZero() {
		return nil, ierr.NewError("signup time is required").
			WithHint("Signup time must be provided to price the first invoice").
			Mark(ierr.ErrValidation)
	}

	loc := locationOrUTC(params.Location)
	signupAt := params.SignupAt.In(loc)
	month := types.NewCycleMonth(signupAt)

	all, err := delivery.ResolveCycleDeliveryDates(params.Tier, params.ChosenSlots, month, loc)
	if err != nil {
		return nil, err
	}
	remaining, err := delivery.FilterRemaining(all, signupAt, params.CutoffRule, loc)
	if err != nil {
		return nil, err
	}

	if len(remaining) == 0 {
		q, err := c.Cycle(ctx, CycleParams{
			Tier:        params.Tier,
			Price:       params.Price,
			ChosenSlots: params.ChosenSlots,
			CycleMonth:  month.Next(),
			CutoffRule:  params.CutoffRule,
			Location:    loc,
		})
		if err != nil {
			return nil, err
		}
		q.RolledForward = true
		return q, nil
	}

	return buildQuote(params.Tier, params.Price, params.ChosenSlots, month, params.CutoffRule, all, remaining)
}

func (c *deliveryCountCalculator) Cycle(ctx context.Context, params CycleParams) (*Quote, error) {
	if err := validate(params.Tier, params.Price, params.CutoffRule); err != nil {
		return nil, err
	}

	loc := locationOrUTC(params.Location)
	all, err := delivery.ResolveCycleDeliveryDates(params.Tier, params.ChosenSlots, params.CycleMonth, loc)
	if err != nil {
		return nil, err
	}

	return buildQuote(params.Tier, params.Price, params.ChosenSlots, params.CycleMonth, params.CutoffRule, all, all)
}

func buildQuote(
	tier types.SubscriptionTier,
	price decimal.Decimal,
	chosen []types.OrdinalSlot,
	month types.CycleMonth,
	rule types.CutoffRule,
	all, included []time.Time,
) (*Quote, error) {
	if len(all) == 0 {
		return nil, ierr.NewError("cycle has no deliveries").
			WithHintf("No deliveries could be resolved for %s", month).
			Mark(ierr.ErrValidation)
	}

	full, err := AmountForDeliveries(tier, price, len(all))
	if err != nil {
		return nil, err
	}
	base, err := AmountForDeliveries(tier, price, len(included))
	if err != nil {
		return nil, err
	}

	prorated := len(included) < len(all)
	ratio := decimal.NewFromInt(1)
	if prorated {
		ratio = decimal.NewFromInt(int64(len(included))).
			Div(decimal.NewFromInt(int64(len(all)))).
			Round(4)
	}

	return &Quote{
		CycleMonth: month,
		BaseAmount: base,
		FullAmount: full,
		IsProrated: prorated,
		Ratio:      ratio,
		Schedule:   delivery.NewSnapshot(month, rule, chosen, all, included),
	}, nil
}

// AmountForDeliveries prices count deliveries of tier, rounded to cents
func AmountForDeliveries(tier types.SubscriptionTier, price decimal.Decimal, count int) (decimal.Decimal, error) {
	nominal, err := delivery.RequiredDeliveryCount(tier)
	if err != nil {
		return decimal.Zero, err
	}
	return types.Round2(price.Mul(decimal.NewFromInt(int64(count))).Div(decimal.NewFromInt(int64(nominal)))), nil
}

// ChargeAmount resolves a recurring charge to the amount added to a cycle
func ChargeAmount(amount decimal.Decimal, basis types.ChargeBasis, includedDeliveries int) decimal.Decimal {
	if basis == types.ChargeBasisPerDelivery {
		return types.Round2(amount.Mul(decimal.NewFromInt(int64(includedDeliveries))))
	}
	return types.Round2(amount)
}

func validate(tier types.SubscriptionTier, price decimal.Decimal, rule types.CutoffRule) error {
	if err := tier.Validate(); err != nil {
		return err
	}
	if !price.IsPositive() {
		return ierr.NewError("price must be positive").
			WithHint("Subscription price must be greater than zero").
			WithReportableDetails(map[string]any{
				"price": price.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	return rule.Validate()
}

func locationOrUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}

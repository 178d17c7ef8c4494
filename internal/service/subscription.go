package service

import (
	"context"

	"github.com/petalpost/petalpost/internal/api/dto"
	"github.com/petalpost/petalpost/internal/domain/invoice"
	"github.com/petalpost/petalpost/internal/domain/proration"
	"github.com/petalpost/petalpost/internal/domain/subscription"
	ierr "github.com/petalpost/petalpost/internal/errors"
	"github.com/petalpost/petalpost/internal/types"
	"github.com/samber/lo"
)

type SubscriptionService interface {
	// Signup creates the subscription and its first invoice in one transaction
	Signup(ctx context.Context, req dto.CreateSubscriptionRequest) (*dto.SignupResponse, error)
	GetSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error)
	ListSubscriptions(ctx context.Context, filter *types.SubscriptionFilter) (*dto.ListSubscriptionsResponse, error)
	PauseSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error)
	ResumeSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error)
	CancelSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error)
	// UpdateDeliverySlots applies to cycles invoiced from now on
	UpdateDeliverySlots(ctx context.Context, id string, req dto.UpdateDeliverySlotsRequest) (*dto.SubscriptionResponse, error)
}

type subscriptionService struct {
	ServiceParams
	invoices InvoiceService
}

func NewSubscriptionService(params ServiceParams) SubscriptionService {
	return &subscriptionService{
		ServiceParams: params,
		invoices:      NewInvoiceService(params),
	}
}

func (s *subscriptionService) Signup(ctx context.Context, req dto.CreateSubscriptionRequest) (*dto.SignupResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	sub := req.ToSubscription(ctx)

	quote, err := s.Calculator.Signup(ctx, proration.SignupParams{
		Tier:        sub.Tier,
		Price:       sub.Price,
		ChosenSlots: sub.Slots(),
		SignupAt:    s.now(),
		CutoffRule:  s.cutoffRule(),
		Location:    s.Clock.Location(),
	})
	if err != nil {
		return nil, err
	}

	// a late signup is billed for next month, so that is the first cycle
	sub.CurrentCycleMonth = quote.CycleMonth
	sub.NextBillingMonth = quote.CycleMonth.Next()

	var inv *invoice.Invoice
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := s.SubRepo.Create(ctx, sub); err != nil {
			return err
		}
		var err error
		inv, _, err = s.invoices.GetOrCreateCycleInvoice(ctx, sub, quote)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("subscription signed up",
		"subscription_id", sub.ID,
		"customer_id", sub.CustomerID,
		"tier", sub.Tier,
		"first_cycle", quote.CycleMonth.String(),
		"rolled_forward", quote.RolledForward,
		"invoice_id", inv.ID,
		"amount", inv.Amount.String(),
	)

	s.publishSubscriptionEvent(ctx, types.WebhookEventSubscriptionCreated, sub)
	s.publishInvoiceEvent(ctx, types.WebhookEventInvoiceCreated, inv)
	s.invoices.DeliverInvoice(ctx, inv, sub.CustomerName)

	if fresh, err := s.InvoiceRepo.Get(ctx, inv.ID); err == nil {
		inv = fresh
	}

	return &dto.SignupResponse{
		Subscription: dto.NewSubscriptionResponse(sub),
		Invoice:      dto.NewInvoiceResponse(inv),
		Quote:        quote,
	}, nil
}

func (s *subscriptionService) GetSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error) {
	if id == "" {
		return nil, ierr.NewError("subscription_id is required").
			WithHint("Subscription ID is required").
			Mark(ierr.ErrValidation)
	}

	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewSubscriptionResponse(sub), nil
}

func (s *subscriptionService) ListSubscriptions(ctx context.Context, filter *types.SubscriptionFilter) (*dto.ListSubscriptionsResponse, error) {
	if filter == nil {
		filter = &types.SubscriptionFilter{}
	}
	filter.Limit = types.NormalizeLimit(filter.Limit)

	subs, err := s.SubRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.SubRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := lo.Map(subs, func(sub *subscription.Subscription, _ int) *dto.SubscriptionResponse {
		return dto.NewSubscriptionResponse(sub)
	})
	resp := types.NewListResponse(items, total, filter.Limit, filter.Offset)
	return &resp, nil
}

func (s *subscriptionService) PauseSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error) {
	return s.update(ctx, id, func(ctx context.Context, sub *subscription.Subscription) error {
		if sub.SubscriptionStatus != types.SubscriptionStatusActive {
			return invalidTransition(sub, types.SubscriptionStatusPaused)
		}
		now := s.Clock.Now().UTC()
		sub.SubscriptionStatus = types.SubscriptionStatusPaused
		sub.PausedAt = &now
		return nil
	})
}

func (s *subscriptionService) ResumeSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error) {
	return s.update(ctx, id, func(ctx context.Context, sub *subscription.Subscription) error {
		if sub.SubscriptionStatus != types.SubscriptionStatusPaused {
			return invalidTransition(sub, types.SubscriptionStatusActive)
		}
		sub.SubscriptionStatus = types.SubscriptionStatusActive
		sub.PausedAt = nil
		// months spent paused are never back-billed
		sub.NextBillingMonth = types.MaxCycleMonth(sub.NextBillingMonth, types.NewCycleMonth(s.now()))
		return nil
	})
}

func (s *subscriptionService) CancelSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error) {
	var cancelled []*invoice.Invoice
	resp, err := s.update(ctx, id, func(ctx context.Context, sub *subscription.Subscription) error {
		if sub.SubscriptionStatus == types.SubscriptionStatusCancelled {
			return invalidTransition(sub, types.SubscriptionStatusCancelled)
		}
		now := s.Clock.Now().UTC()
		sub.SubscriptionStatus = types.SubscriptionStatusCancelled
		sub.CancelledAt = &now

		var err error
		cancelled, err = s.invoices.CancelPendingInvoices(ctx, sub.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, inv := range cancelled {
		s.publishInvoiceEvent(ctx, types.WebhookEventInvoiceCancelled, inv)
	}
	return resp, nil
}

func (s *subscriptionService) UpdateDeliverySlots(ctx context.Context, id string, req dto.UpdateDeliverySlotsRequest) (*dto.SubscriptionResponse, error) {
	return s.update(ctx, id, func(ctx context.Context, sub *subscription.Subscription) error {
		if sub.SubscriptionStatus == types.SubscriptionStatusCancelled {
			return ierr.NewError("subscription is cancelled").
				WithHint("Delivery slots cannot be changed on a cancelled subscription").
				Mark(ierr.ErrInvalidOperation)
		}
		if err := req.Validate(sub.Tier); err != nil {
			return err
		}
		sub.SetSlots(req.DeliverySlots)
		return nil
	})
}

// update runs fn against a locked subscription and persists it in one
// transaction, then publishes subscription.updated
func (s *subscriptionService) update(ctx context.Context, id string, fn func(ctx context.Context, sub *subscription.Subscription) error) (*dto.SubscriptionResponse, error) {
	var sub *subscription.Subscription
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		sub, err = s.SubRepo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(ctx, sub); err != nil {
			return err
		}
		return s.SubRepo.Update(ctx, sub)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("subscription updated",
		"subscription_id", sub.ID,
		"status", sub.SubscriptionStatus,
		"next_billing_month", sub.NextBillingMonth.String(),
	)
	s.publishSubscriptionEvent(ctx, types.WebhookEventSubscriptionUpdated, sub)
	return dto.NewSubscriptionResponse(sub), nil
}

func invalidTransition(sub *subscription.Subscription, to types.SubscriptionStatus) error {
	return ierr.NewError("invalid subscription status transition").
		WithHintf("Subscription is %s and cannot become %s", sub.SubscriptionStatus, to).
		WithReportableDetails(map[string]any{
			"subscription_id": sub.ID,
			"from":            sub.SubscriptionStatus,
			"to":              to,
		}).
		Mark(ierr.ErrInvalidOperation)
}

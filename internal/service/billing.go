package service

import (
	"context"
	"sort"
	"time"

	"github.com/petalpost/petalpost/internal/api/dto"
	"github.com/petalpost/petalpost/internal/domain/invoice"
	"github.com/petalpost/petalpost/internal/domain/proration"
	"github.com/petalpost/petalpost/internal/domain/subscription"
	ierr "github.com/petalpost/petalpost/internal/errors"
	"github.com/petalpost/petalpost/internal/idempotency"
	"github.com/petalpost/petalpost/internal/types"
	"github.com/sourcegraph/conc/pool"
)

const defaultPrebillWindowDays = 5

// BillingService drives recurring cycle invoices
type BillingService interface {
	// Decide classifies the business day now falls on
	Decide(now time.Time) SchedulerDecision

	// RunScheduler is the daily entry point. It reads the wall clock only.
	RunScheduler(ctx context.Context) (*dto.BillingRunResponse, error)

	// ResendCycleInvoice gets or creates the invoice of cycle (defaulting to
	// the latest pending invoice, then the next billing month) and emails it.
	ResendCycleInvoice(ctx context.Context, subscriptionID string, cycle *types.CycleMonth) (*dto.ResendInvoiceResponse, error)
}

// SchedulerDecision is what a run on a given day does
type SchedulerDecision struct {
	Mode   types.SchedulerMode
	Target types.CycleMonth
}

type billingService struct {
	ServiceParams
	invoices InvoiceService
	idempGen *idempotency.Generator
}

func NewBillingService(params ServiceParams) BillingService {
	return &billingService{
		ServiceParams: params,
		invoices:      NewInvoiceService(params),
		idempGen:      idempotency.NewGenerator(),
	}
}

func (s *billingService) Decide(now time.Time) SchedulerDecision {
	now = now.In(s.Clock.Location())
	month := types.NewCycleMonth(now)

	window := s.Config.Billing.PrebillWindowDays
	if window <= 0 {
		window = defaultPrebillWindowDays
	}

	switch day := now.Day(); {
	case day == 1:
		return SchedulerDecision{Mode: types.SchedulerModeDay1Fallback, Target: month}
	case day > month.Days()-window:
		return SchedulerDecision{Mode: types.SchedulerModePrebill, Target: month.Next()}
	default:
		return SchedulerDecision{Mode: types.SchedulerModeSkip}
	}
}

func (s *billingService) RunScheduler(ctx context.Context) (*dto.BillingRunResponse, error) {
	runAt := s.now()
	decision := s.Decide(runAt)

	resp := &dto.BillingRunResponse{
		Mode:  decision.Mode,
		RunAt: runAt,
	}
	if decision.Mode == types.SchedulerModeSkip {
		s.Logger.Infow("billing run complete",
			"mode", decision.Mode,
			"run_at", runAt,
		)
		return resp, nil
	}
	resp.TargetCycle = &decision.Target

	subs, err := s.listBillable(ctx)
	if err != nil {
		return nil, err
	}

	workers := s.Config.Billing.SchedulerWorkers
	if workers <= 0 {
		workers = 1
	}

	p := pool.NewWithResults[*dto.SubscriptionRunResult]().WithMaxGoroutines(workers)
	for _, sub := range subs {
		p.Go(func() *dto.SubscriptionRunResult {
			return s.billSubscription(ctx, sub, decision)
		})
	}
	results := p.Wait()

	sort.Slice(results, func(i, j int) bool {
		return results[i].SubscriptionID < results[j].SubscriptionID
	})
	for _, r := range results {
		switch r.Outcome {
		case types.BillingOutcomeCreated:
			resp.Created++
		case types.BillingOutcomeResent:
			resp.Resent++
		case types.BillingOutcomeSkipped:
			resp.Skipped++
		case types.BillingOutcomeFailed:
			resp.Failed++
		}
		switch r.EmailStatus {
		case types.NotificationStatusSent:
			resp.EmailsSent++
		case types.NotificationStatusFailed:
			resp.EmailsFailed++
		}
	}
	resp.Results = results

	s.Logger.Infow("billing run complete",
		"mode", decision.Mode,
		"run_at", runAt,
		"target_cycle", decision.Target.String(),
		"subscriptions", len(subs),
		"created", resp.Created,
		"resent", resp.Resent,
		"skipped", resp.Skipped,
		"failed", resp.Failed,
		"emails_sent", resp.EmailsSent,
		"emails_failed", resp.EmailsFailed,
	)
	return resp, nil
}

func (s *billingService) listBillable(ctx context.Context) ([]*subscription.Subscription, error) {
	var all []*subscription.Subscription
	for offset := 0; ; offset += types.MaxLimit {
		page, err := s.SubRepo.List(ctx, &types.SubscriptionFilter{
			Statuses: []types.SubscriptionStatus{types.SubscriptionStatusActive},
			Limit:    types.MaxLimit,
			Offset:   offset,
		})
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < types.MaxLimit {
			return all, nil
		}
	}
}

func (s *billingService) billSubscription(ctx context.Context, sub *subscription.Subscription, decision SchedulerDecision) *dto.SubscriptionRunResult {
	result := &dto.SubscriptionRunResult{SubscriptionID: sub.ID}
	fail := func(err error) *dto.SubscriptionRunResult {
		s.Logger.Errorw("failed to bill subscription",
			"error", err,
			"subscription_id", sub.ID,
			"target_cycle", decision.Target.String(),
		)
		result.Outcome = types.BillingOutcomeFailed
		result.Detail = err.Error()
		return result
	}

	latest, err := s.InvoiceRepo.GetLatestPending(ctx, sub.ID)
	switch {
	case err == nil:
		cycle := latest.CycleMonth
		result.CycleMonth = &cycle
		result.InvoiceID = latest.ID
		// an earlier prebill already moved this subscription past the target
		if latest.CycleMonth.After(decision.Target) {
			result.Outcome = types.BillingOutcomeSkipped
			result.Detail = "later cycle already pending"
			return result
		}
		emailResult := s.invoices.DeliverInvoice(ctx, latest, sub.CustomerName)
		result.Outcome = types.BillingOutcomeResent
		result.EmailStatus = emailResult.Status
		return result
	case !ierr.IsNotFound(err):
		return fail(err)
	}

	if sub.NextBillingMonth.After(decision.Target) {
		result.Outcome = types.BillingOutcomeSkipped
		result.Detail = "not due"
		return result
	}

	issued, err := s.issueCycleInvoice(ctx, sub.ID, decision.Target)
	if err != nil {
		if ierr.IsInvalidOperation(err) {
			result.Outcome = types.BillingOutcomeSkipped
			result.Detail = err.Error()
			return result
		}
		return fail(err)
	}
	if issued.NotDue || !issued.Created {
		result.Outcome = types.BillingOutcomeSkipped
		result.Detail = "already issued"
		if issued.Invoice != nil {
			result.InvoiceID = issued.Invoice.ID
		}
		return result
	}

	cycle := issued.Invoice.CycleMonth
	result.CycleMonth = &cycle
	result.InvoiceID = issued.Invoice.ID
	result.Outcome = types.BillingOutcomeCreated

	s.publishInvoiceEvent(ctx, types.WebhookEventInvoiceCreated, issued.Invoice)
	emailResult := s.invoices.DeliverInvoice(ctx, issued.Invoice, issued.Subscription.CustomerName)
	result.EmailStatus = emailResult.Status
	return result
}

func (s *billingService) ResendCycleInvoice(ctx context.Context, subscriptionID string, cycle *types.CycleMonth) (*dto.ResendInvoiceResponse, error) {
	sub, err := s.SubRepo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	var (
		target  *invoice.Invoice
		created bool
	)
	if cycle == nil {
		latest, err := s.InvoiceRepo.GetLatestPending(ctx, sub.ID)
		switch {
		case err == nil:
			target = latest
		case ierr.IsNotFound(err):
			next := sub.NextBillingMonth
			if next.IsZero() {
				next = types.NewCycleMonth(s.now())
			}
			cycle = &next
		default:
			return nil, err
		}
	}

	if target == nil {
		issued, err := s.issueCycleInvoice(ctx, sub.ID, *cycle)
		if err != nil {
			return nil, err
		}
		if issued.NotDue {
			return nil, ierr.NewError("no invoice for cycle").
				WithHintf("There is no invoice for %s", cycle.String()).
				WithReportableDetails(map[string]any{
					"subscription_id": sub.ID,
					"cycle_month":     cycle.String(),
				}).
				Mark(ierr.ErrNotFound)
		}
		target = issued.Invoice
		created = issued.Created
		if issued.Subscription != nil {
			sub = issued.Subscription
		}
	}

	if created {
		s.publishInvoiceEvent(ctx, types.WebhookEventInvoiceCreated, target)
	}

	status := types.NotificationStatusSkipped
	if target.IsPending() {
		status = s.invoices.DeliverInvoice(ctx, target, sub.CustomerName).Status
	}

	// reload so the response carries the recorded email status
	if fresh, err := s.InvoiceRepo.Get(ctx, target.ID); err == nil {
		target = fresh
	}

	return &dto.ResendInvoiceResponse{
		Invoice:     dto.NewInvoiceResponse(target),
		Created:     created,
		EmailStatus: status,
	}, nil
}

type issuedInvoice struct {
	Invoice      *invoice.Invoice
	Subscription *subscription.Subscription
	Created      bool
	// NotDue is set when the cycle precedes the next billing month and no
	// invoice exists for it
	NotDue bool
}

// issueCycleInvoice is the one issue path shared by the scheduler and
// customer resends. Both may race on the same cycle; the loser of a
// duplicate insert retries once and finds the winner's invoice.
func (s *billingService) issueCycleInvoice(ctx context.Context, subscriptionID string, cycle types.CycleMonth) (*issuedInvoice, error) {
	issued, err := s.issueOnce(ctx, subscriptionID, cycle)
	if ierr.IsAlreadyExists(err) {
		issued, err = s.issueOnce(ctx, subscriptionID, cycle)
	}
	return issued, err
}

func (s *billingService) issueOnce(ctx context.Context, subscriptionID string, cycle types.CycleMonth) (*issuedInvoice, error) {
	if err := cycle.Validate(); err != nil {
		return nil, err
	}

	var issued *issuedInvoice
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		issued = &issuedInvoice{}

		sub, err := s.SubRepo.GetForUpdate(ctx, subscriptionID)
		if err != nil {
			return err
		}
		issued.Subscription = sub

		if sub.NextBillingMonth.After(cycle) {
			existing, err := s.InvoiceRepo.Get(ctx, s.idempGen.CycleInvoiceID(sub.ID, cycle))
			if ierr.IsNotFound(err) {
				issued.NotDue = true
				return nil
			}
			if err != nil {
				return err
			}
			issued.Invoice = existing
			return nil
		}

		if !sub.IsBillable() {
			return ierr.NewError("subscription is not active").
				WithHintf("Subscription is %s and cannot be invoiced", sub.SubscriptionStatus).
				WithReportableDetails(map[string]any{
					"subscription_id": sub.ID,
				}).
				Mark(ierr.ErrInvalidOperation)
		}
		if err := sub.Validate(); err != nil {
			return err
		}

		quote, err := s.Calculator.Cycle(ctx, proration.CycleParams{
			Tier:        sub.Tier,
			Price:       sub.Price,
			ChosenSlots: sub.Slots(),
			CycleMonth:  cycle,
			CutoffRule:  s.cutoffRule(),
			Location:    s.Clock.Location(),
		})
		if err != nil {
			return err
		}

		inv, created, err := s.invoices.GetOrCreateCycleInvoice(ctx, sub, quote)
		if err != nil {
			return err
		}
		issued.Invoice = inv
		issued.Created = created

		sub.CurrentCycleMonth = types.MaxCycleMonth(sub.CurrentCycleMonth, cycle)
		sub.NextBillingMonth = types.MaxCycleMonth(sub.NextBillingMonth, cycle.Next())
		return s.SubRepo.Update(ctx, sub)
	})
	if err != nil {
		return nil, err
	}
	return issued, nil
}

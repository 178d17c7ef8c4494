package service

import (
	"context"
	"strings"

	"github.com/petalpost/petalpost/internal/api/dto"
	"github.com/petalpost/petalpost/internal/domain/audit"
	"github.com/petalpost/petalpost/internal/domain/delivery"
	"github.com/petalpost/petalpost/internal/domain/invoice"
	"github.com/petalpost/petalpost/internal/domain/proration"
	"github.com/petalpost/petalpost/internal/domain/subscription"
	ierr "github.com/petalpost/petalpost/internal/errors"
	"github.com/petalpost/petalpost/internal/idempotency"
	"github.com/petalpost/petalpost/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// AdminService carries every privileged mutation. Each one requires a reason
// and writes its audit record in the same transaction as the change.
type AdminService interface {
	OverrideSubscriptionStatus(ctx context.Context, subscriptionID string, req dto.OverrideSubscriptionStatusRequest) (*dto.AdminResponse[*dto.SubscriptionResponse], error)
	OverrideInvoiceStatus(ctx context.Context, invoiceID string, req dto.OverrideInvoiceStatusRequest) (*dto.AdminResponse[*dto.InvoiceResponse], error)
	AddInvoiceCharge(ctx context.Context, invoiceID string, req dto.AddInvoiceChargeRequest) (*dto.AdminResponse[*dto.InvoiceResponse], error)
	RemoveInvoiceCharge(ctx context.Context, invoiceID, adjustmentID string, req dto.RemoveChargeRequest) (*dto.AdminResponse[*dto.InvoiceResponse], error)
	AddRecurringCharge(ctx context.Context, subscriptionID string, req dto.AddRecurringChargeRequest) (*dto.AdminResponse[*dto.SubscriptionResponse], error)
	RemoveRecurringCharge(ctx context.Context, subscriptionID, chargeID string, req dto.RemoveChargeRequest) (*dto.AdminResponse[*dto.SubscriptionResponse], error)
	// ReassignPlan reprices a pending current-cycle invoice in place, or
	// issues a top-up for the increase when that invoice is already paid
	ReassignPlan(ctx context.Context, subscriptionID string, req dto.ReassignPlanRequest) (*dto.AdminResponse[*dto.ReassignPlanResult], error)
	ApproveManualPayment(ctx context.Context, subscriptionID string, req dto.ApproveManualPaymentRequest) (*dto.AdminResponse[*dto.SubscriptionResponse], error)
	ListAuditRecords(ctx context.Context, entityType types.AuditEntityType, entityID string) (*dto.ListAuditRecordsResponse, error)
}

type adminService struct {
	ServiceParams
	invoices InvoiceService
	idempGen *idempotency.Generator
}

func NewAdminService(params ServiceParams) AdminService {
	return &adminService{
		ServiceParams: params,
		invoices:      NewInvoiceService(params),
		idempGen:      idempotency.NewGenerator(),
	}
}

func (s *adminService) OverrideSubscriptionStatus(ctx context.Context, subscriptionID string, req dto.OverrideSubscriptionStatusRequest) (*dto.AdminResponse[*dto.SubscriptionResponse], error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var (
		sub       *subscription.Subscription
		cancelled []*invoice.Invoice
	)
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		sub, err = s.SubRepo.GetForUpdate(ctx, subscriptionID)
		if err != nil {
			return err
		}
		before := *sub

		if sub.SubscriptionStatus == req.Status {
			return ierr.NewError("subscription already has this status").
				WithHintf("Subscription is already %s", req.Status).
				Mark(ierr.ErrInvalidOperation)
		}

		now := s.Clock.Now().UTC()
		switch req.Status {
		case types.SubscriptionStatusActive:
			sub.PausedAt = nil
			sub.CancelledAt = nil
			sub.NextBillingMonth = types.MaxCycleMonth(sub.NextBillingMonth, types.NewCycleMonth(s.now()))
		case types.SubscriptionStatusPaused:
			sub.PausedAt = &now
		case types.SubscriptionStatusCancelled:
			sub.CancelledAt = &now
			cancelled, err = s.invoices.CancelPendingInvoices(ctx, sub.ID)
			if err != nil {
				return err
			}
		}
		sub.SubscriptionStatus = req.Status

		if err := s.SubRepo.Update(ctx, sub); err != nil {
			return err
		}
		return s.writeAudit(ctx, types.AuditActionSubscriptionStatusOverride, types.AuditEntitySubscription,
			sub.ID, req.Reason, before, *sub, map[string]any{
				"from":               before.SubscriptionStatus,
				"to":                 req.Status,
				"cancelled_invoices": lo.Map(cancelled, func(inv *invoice.Invoice, _ int) string { return inv.ID }),
			})
	})
	if err != nil {
		return nil, err
	}

	s.publishSubscriptionEvent(ctx, types.WebhookEventSubscriptionUpdated, sub)
	for _, inv := range cancelled {
		s.publishInvoiceEvent(ctx, types.WebhookEventInvoiceCancelled, inv)
	}
	return dto.NewAdminResponse(dto.NewSubscriptionResponse(sub), true), nil
}

func (s *adminService) OverrideInvoiceStatus(ctx context.Context, invoiceID string, req dto.OverrideInvoiceStatusRequest) (*dto.AdminResponse[*dto.InvoiceResponse], error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var mutation *InvoiceMutation
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		switch req.Status {
		case types.InvoiceStatusPaid:
			reference := strings.TrimSpace(req.PaymentReference)
			if reference == "" {
				reference = "manual:" + types.GetUserID(ctx)
			}
			mutation, err = s.invoices.MarkPaid(ctx, invoiceID, reference)
		case types.InvoiceStatusCancelled:
			mutation, err = s.invoices.Cancel(ctx, invoiceID)
		}
		if err != nil {
			return err
		}
		return s.writeAudit(ctx, types.AuditActionInvoiceStatusOverride, types.AuditEntityInvoice,
			invoiceID, req.Reason, mutation.Before, *mutation.Invoice, map[string]any{
				"from":                mutation.Before.InvoiceStatus,
				"to":                  req.Status,
				"payment_reference":   req.PaymentReference,
				"superseded_sessions": mutation.Superseded,
			})
	})
	if err != nil {
		return nil, err
	}

	event := types.WebhookEventInvoicePaid
	if req.Status == types.InvoiceStatusCancelled {
		event = types.WebhookEventInvoiceCancelled
	}
	s.publishInvoiceEvent(ctx, event, mutation.Invoice)
	return dto.NewAdminResponse(dto.NewInvoiceResponse(mutation.Invoice), true), nil
}

func (s *adminService) AddInvoiceCharge(ctx context.Context, invoiceID string, req dto.AddInvoiceChargeRequest) (*dto.AdminResponse[*dto.InvoiceResponse], error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	adj := invoice.Adjustment{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ADJUSTMENT),
		Description: req.Description,
		Amount:      types.Round2(req.Amount),
		UnitAmount:  types.Round2(req.Amount),
		Quantity:    lo.Ternary(req.Basis == types.ChargeBasisFlat, 1, 0),
		Basis:       req.Basis,
		Mode:        types.AdjustmentModeOneTime,
		Source:      types.AdjustmentSourceAdmin,
		Status:      types.ChargeStatusActive,
		Reason:      strings.TrimSpace(req.Reason),
	}
	return s.mutateInvoice(ctx, invoiceID, types.AuditActionInvoiceChargeAdded, req.Reason,
		map[string]any{"adjustment_id": adj.ID},
		func(ctx context.Context) (*InvoiceMutation, error) {
			return s.invoices.AddAdjustment(ctx, invoiceID, adj)
		})
}

func (s *adminService) RemoveInvoiceCharge(ctx context.Context, invoiceID, adjustmentID string, req dto.RemoveChargeRequest) (*dto.AdminResponse[*dto.InvoiceResponse], error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.mutateInvoice(ctx, invoiceID, types.AuditActionInvoiceChargeRemoved, req.Reason,
		map[string]any{"adjustment_id": adjustmentID},
		func(ctx context.Context) (*InvoiceMutation, error) {
			return s.invoices.RemoveAdjustment(ctx, invoiceID, adjustmentID, strings.TrimSpace(req.Reason))
		})
}

func (s *adminService) mutateInvoice(
	ctx context.Context,
	invoiceID string,
	action types.AuditAction,
	reason string,
	metadata map[string]any,
	fn func(ctx context.Context) (*InvoiceMutation, error),
) (*dto.AdminResponse[*dto.InvoiceResponse], error) {
	var mutation *InvoiceMutation
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		mutation, err = fn(ctx)
		if err != nil {
			return err
		}
		meta := lo.Assign(metadata, map[string]any{
			"amount_before":       mutation.Before.Amount.StringFixed(2),
			"amount_after":        mutation.Invoice.Amount.StringFixed(2),
			"superseded_sessions": mutation.Superseded,
		})
		return s.writeAudit(ctx, action, types.AuditEntityInvoice, invoiceID, reason, mutation.Before, *mutation.Invoice, meta)
	})
	if err != nil {
		return nil, err
	}

	s.publishInvoiceEvent(ctx, types.WebhookEventInvoiceUpdated, mutation.Invoice)
	return dto.NewAdminResponse(dto.NewInvoiceResponse(mutation.Invoice), true), nil
}

func (s *adminService) AddRecurringCharge(ctx context.Context, subscriptionID string, req dto.AddRecurringChargeRequest) (*dto.AdminResponse[*dto.SubscriptionResponse], error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var (
		sub     *subscription.Subscription
		updated *invoice.Invoice
	)
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		sub, err = s.SubRepo.GetForUpdate(ctx, subscriptionID)
		if err != nil {
			return err
		}
		before := *sub
		before.RecurringCharges = types.NewJSONB(append([]subscription.RecurringCharge(nil), sub.RecurringCharges.Data...))

		if sub.SubscriptionStatus == types.SubscriptionStatusCancelled {
			return ierr.NewError("subscription is cancelled").
				WithHint("Recurring charges cannot be added to a cancelled subscription").
				Mark(ierr.ErrInvalidOperation)
		}

		charge := subscription.RecurringCharge{
			ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_RECURRING_CHARGE),
			Description: req.Description,
			Amount:      types.Round2(req.Amount),
			Basis:       req.Basis,
			Status:      types.ChargeStatusActive,
			Reason:      strings.TrimSpace(req.Reason),
			CreatedBy:   types.GetUserID(ctx),
			CreatedAt:   s.Clock.Now().UTC(),
		}
		sub.AddRecurringCharge(charge)
		if err := s.SubRepo.Update(ctx, sub); err != nil {
			return err
		}

		metadata := map[string]any{"recurring_charge_id": charge.ID}
		if req.ApplyToPending {
			pending, err := s.InvoiceRepo.GetLatestPending(ctx, sub.ID)
			switch {
			case err == nil:
				mutation, err := s.invoices.AddAdjustment(ctx, pending.ID, invoice.Adjustment{
					Description:       charge.Description,
					Amount:            charge.Amount,
					UnitAmount:        charge.Amount,
					Quantity:          lo.Ternary(charge.Basis == types.ChargeBasisFlat, 1, 0),
					Basis:             charge.Basis,
					Mode:              types.AdjustmentModeRecurring,
					Source:            types.AdjustmentSourceRecurringCharge,
					Status:            types.ChargeStatusActive,
					Reason:            charge.Reason,
					RecurringChargeID: charge.ID,
				})
				if err != nil {
					return err
				}
				updated = mutation.Invoice
				metadata["invoice_id"] = pending.ID
			case !ierr.IsNotFound(err):
				return err
			}
		}

		return s.writeAudit(ctx, types.AuditActionRecurringChargeAdded, types.AuditEntitySubscription,
			sub.ID, req.Reason, before, *sub, metadata)
	})
	if err != nil {
		return nil, err
	}

	s.publishSubscriptionEvent(ctx, types.WebhookEventSubscriptionUpdated, sub)
	if updated != nil {
		s.publishInvoiceEvent(ctx, types.WebhookEventInvoiceUpdated, updated)
	}
	return dto.NewAdminResponse(dto.NewSubscriptionResponse(sub), true), nil
}

// RemoveRecurringCharge stops the charge for future cycles and drops it from
// any unpaid cycle invoice that carries it. Paid invoices keep it.
func (s *adminService) RemoveRecurringCharge(ctx context.Context, subscriptionID, chargeID string, req dto.RemoveChargeRequest) (*dto.AdminResponse[*dto.SubscriptionResponse], error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(req.Reason)

	var (
		sub     *subscription.Subscription
		updated []*invoice.Invoice
	)
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		updated = nil

		var err error
		sub, err = s.SubRepo.GetForUpdate(ctx, subscriptionID)
		if err != nil {
			return err
		}
		before := *sub
		before.RecurringCharges = types.NewJSONB(append([]subscription.RecurringCharge(nil), sub.RecurringCharges.Data...))

		if _, err := sub.RemoveRecurringCharge(ctx, chargeID, s.Clock.Now()); err != nil {
			return err
		}
		if err := s.SubRepo.Update(ctx, sub); err != nil {
			return err
		}

		pending, err := s.InvoiceRepo.List(ctx, &types.InvoiceFilter{
			SubscriptionID: sub.ID,
			InvoiceTypes:   []types.InvoiceType{types.InvoiceTypeCycle},
			Statuses:       []types.InvoiceStatus{types.InvoiceStatusPendingPayment},
		})
		if err != nil {
			return err
		}
		for _, inv := range pending {
			if !carriesCharge(inv, chargeID) {
				continue
			}
			mutation, err := s.invoices.RemoveRecurringCharge(ctx, inv.ID, chargeID, reason)
			if err != nil {
				return err
			}
			updated = append(updated, mutation.Invoice)
		}

		return s.writeAudit(ctx, types.AuditActionRecurringChargeRemoved, types.AuditEntitySubscription,
			sub.ID, reason, before, *sub, map[string]any{
				"recurring_charge_id": chargeID,
				"invoices_updated":    lo.Map(updated, func(inv *invoice.Invoice, _ int) string { return inv.ID }),
			})
	})
	if err != nil {
		return nil, err
	}

	s.publishSubscriptionEvent(ctx, types.WebhookEventSubscriptionUpdated, sub)
	for _, inv := range updated {
		s.publishInvoiceEvent(ctx, types.WebhookEventInvoiceUpdated, inv)
	}
	return dto.NewAdminResponse(dto.NewSubscriptionResponse(sub), true), nil
}

func carriesCharge(inv *invoice.Invoice, chargeID string) bool {
	return lo.SomeBy(inv.ActiveAdjustments(), func(a invoice.Adjustment) bool {
		return a.RecurringChargeID == chargeID
	})
}

func (s *adminService) ReassignPlan(ctx context.Context, subscriptionID string, req dto.ReassignPlanRequest) (*dto.AdminResponse[*dto.ReassignPlanResult], error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var (
		sub      *subscription.Subscription
		repriced *invoice.Invoice
		topup    *invoice.Invoice
	)
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		repriced, topup = nil, nil

		var err error
		sub, err = s.SubRepo.GetForUpdate(ctx, subscriptionID)
		if err != nil {
			return err
		}
		before := *sub

		if sub.SubscriptionStatus == types.SubscriptionStatusCancelled {
			return ierr.NewError("subscription is cancelled").
				WithHint("A cancelled subscription cannot change plan").
				Mark(ierr.ErrInvalidOperation)
		}

		sub.Tier = req.Tier
		sub.Price = types.Round2(req.Price)
		sub.SetSlots(req.DeliverySlots)

		metadata := map[string]any{
			"from_tier":  before.Tier,
			"to_tier":    sub.Tier,
			"from_price": before.Price.StringFixed(2),
			"to_price":   sub.Price.StringFixed(2),
		}

		base, err := s.currentBaseInvoice(ctx, sub)
		if err != nil {
			return err
		}
		if base != nil {
			quote, err := s.Calculator.Cycle(ctx, proration.CycleParams{
				Tier:        sub.Tier,
				Price:       sub.Price,
				ChosenSlots: sub.Slots(),
				CycleMonth:  base.CycleMonth,
				CutoffRule:  s.cutoffRule(),
				Location:    s.Clock.Location(),
			})
			if err != nil {
				return err
			}
			// a prorated signup cycle stays prorated by the same share
			if base.IsProrated {
				quote.BaseAmount = types.Round2(quote.FullAmount.Mul(base.ProrationRatio))
				quote.IsProrated = true
				quote.Ratio = base.ProrationRatio
				quote.Schedule = includedFrom(quote.Schedule, base.Schedule.Data)
			}
			metadata["base_invoice_id"] = base.ID

			switch base.InvoiceStatus {
			case types.InvoiceStatusPendingPayment:
				mutation, err := s.invoices.Reprice(ctx, base.ID, sub.Tier, quote)
				if err != nil {
					return err
				}
				repriced = mutation.Invoice
				metadata["base_amount_before"] = mutation.Before.BaseAmount.StringFixed(2)
				metadata["base_amount_after"] = repriced.BaseAmount.StringFixed(2)
			case types.InvoiceStatusPaid:
				collected, err := s.collectedForCycle(ctx, base)
				if err != nil {
					return err
				}
				delta := types.Round2(quote.BaseAmount.Sub(collected))
				metadata["delta"] = delta.StringFixed(2)
				// paid invoices are never reduced; a decrease simply applies from next cycle
				if delta.IsPositive() {
					topup, err = s.invoices.CreateTopupInvoice(ctx, base, delta, req.Reason)
					if err != nil {
						return err
					}
					metadata["topup_invoice_id"] = topup.ID
				}
			}
		}

		if err := s.SubRepo.Update(ctx, sub); err != nil {
			return err
		}
		return s.writeAudit(ctx, types.AuditActionPlanReassigned, types.AuditEntitySubscription,
			sub.ID, req.Reason, before, *sub, metadata)
	})
	if err != nil {
		return nil, err
	}

	s.publishSubscriptionEvent(ctx, types.WebhookEventSubscriptionUpdated, sub)
	result := &dto.ReassignPlanResult{Subscription: dto.NewSubscriptionResponse(sub)}
	if repriced != nil {
		s.publishInvoiceEvent(ctx, types.WebhookEventInvoiceUpdated, repriced)
		result.Invoice = dto.NewInvoiceResponse(repriced)
	}
	if topup != nil {
		s.publishInvoiceEvent(ctx, types.WebhookEventInvoiceCreated, topup)
		s.invoices.DeliverInvoice(ctx, topup, sub.CustomerName)
		result.Topup = dto.NewInvoiceResponse(topup)
	}
	return dto.NewAdminResponse(result, true), nil
}

// includedFrom limits a full-cycle schedule to the deliveries a prorated
// invoice still covers, i.e. those on or after its first included date
func includedFrom(full, prorated delivery.Snapshot) delivery.Snapshot {
	if len(prorated.IncludedDates) == 0 {
		return full
	}
	from := prorated.IncludedDates[0]
	full.IncludedDates = lo.Filter(full.AllDates, func(d string, _ int) bool { return d >= from })
	full.IncludedCount = len(full.IncludedDates)
	return full
}

// currentBaseInvoice returns the cycle invoice of the subscription's current
// cycle, or nil when none was issued
func (s *adminService) currentBaseInvoice(ctx context.Context, sub *subscription.Subscription) (*invoice.Invoice, error) {
	if sub.CurrentCycleMonth.IsZero() {
		return nil, nil
	}
	inv, err := s.InvoiceRepo.GetForUpdate(ctx, s.idempGen.CycleInvoiceID(sub.ID, sub.CurrentCycleMonth))
	if ierr.IsNotFound(err) {
		return nil, nil
	}
	return inv, err
}

// collectedForCycle is the base already billed for the cycle: the paid base
// plus every top-up that was not cancelled
func (s *adminService) collectedForCycle(ctx context.Context, base *invoice.Invoice) (decimal.Decimal, error) {
	cycle := base.CycleMonth
	topups, err := s.InvoiceRepo.List(ctx, &types.InvoiceFilter{
		SubscriptionID: base.SubscriptionID,
		CycleMonth:     &cycle,
		InvoiceTypes:   []types.InvoiceType{types.InvoiceTypeTopup},
		Statuses:       []types.InvoiceStatus{types.InvoiceStatusPendingPayment, types.InvoiceStatusPaid},
	})
	if err != nil {
		return decimal.Zero, err
	}
	amounts := lo.Map(topups, func(inv *invoice.Invoice, _ int) decimal.Decimal { return inv.BaseAmount })
	return types.SumRound2(base.BaseAmount, amounts...), nil
}

func (s *adminService) ApproveManualPayment(ctx context.Context, subscriptionID string, req dto.ApproveManualPaymentRequest) (*dto.AdminResponse[*dto.SubscriptionResponse], error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var sub *subscription.Subscription
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		sub, err = s.SubRepo.GetForUpdate(ctx, subscriptionID)
		if err != nil {
			return err
		}
		before := *sub

		if sub.PaymentMethod != types.PaymentMethodManualTransfer {
			return ierr.NewError("subscription does not pay by manual transfer").
				WithHint("Only manual transfer subscriptions need payment approval").
				Mark(ierr.ErrInvalidOperation)
		}
		if sub.PaymentApproved {
			return ierr.NewError("manual payment already approved").
				WithHint("This subscription's manual payment was already approved").
				Mark(ierr.ErrInvalidOperation)
		}

		sub.PaymentApproved = true
		if err := s.SubRepo.Update(ctx, sub); err != nil {
			return err
		}
		return s.writeAudit(ctx, types.AuditActionManualPaymentApproved, types.AuditEntitySubscription,
			sub.ID, req.Reason, before, *sub, nil)
	})
	if err != nil {
		return nil, err
	}

	s.publishSubscriptionEvent(ctx, types.WebhookEventSubscriptionUpdated, sub)
	return dto.NewAdminResponse(dto.NewSubscriptionResponse(sub), true), nil
}

func (s *adminService) ListAuditRecords(ctx context.Context, entityType types.AuditEntityType, entityID string) (*dto.ListAuditRecordsResponse, error) {
	if entityID == "" {
		return nil, ierr.NewError("entity_id is required").
			WithHint("Entity ID is required").
			Mark(ierr.ErrValidation)
	}

	records, err := s.AuditRepo.ListByEntity(ctx, entityType, entityID)
	if err != nil {
		return nil, err
	}
	return &dto.ListAuditRecordsResponse{
		Items: lo.Map(records, func(r *audit.Record, _ int) *dto.AuditRecordResponse {
			return &dto.AuditRecordResponse{Record: r}
		}),
	}, nil
}

func (s *adminService) writeAudit(
	ctx context.Context,
	action types.AuditAction,
	entityType types.AuditEntityType,
	entityID, reason string,
	before, after any,
	metadata map[string]any,
) error {
	if metadata == nil {
		metadata = map[string]any{}
	}
	record := audit.NewRecord(ctx, action, entityType, entityID, strings.TrimSpace(reason), before, after, metadata)
	record.CreatedAt = s.Clock.Now().UTC()
	return s.AuditRepo.Create(ctx, record)
}

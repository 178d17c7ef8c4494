package service

import (
	"context"
	"time"

	"github.com/petalpost/petalpost/internal/api/dto"
	"github.com/petalpost/petalpost/internal/domain/invoice"
	"github.com/petalpost/petalpost/internal/domain/proration"
	"github.com/petalpost/petalpost/internal/domain/subscription"
	"github.com/petalpost/petalpost/internal/email"
	ierr "github.com/petalpost/petalpost/internal/errors"
	"github.com/petalpost/petalpost/internal/idempotency"
	"github.com/petalpost/petalpost/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// InvoiceService owns subscription invoice documents. Every mutating method
// runs in a transaction and joins the caller's transaction when one is open.
type InvoiceService interface {
	GetInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error)
	ListSubscriptionInvoices(ctx context.Context, subscriptionID string, filter *types.InvoiceFilter) (*dto.ListInvoicesResponse, error)

	// GetOrCreateCycleInvoice returns the single invoice of (subscription,
	// quote cycle), creating it when absent. created reports whether this
	// call wrote it.
	GetOrCreateCycleInvoice(ctx context.Context, sub *subscription.Subscription, quote *proration.Quote) (inv *invoice.Invoice, created bool, err error)

	// CreateTopupInvoice supplements a paid cycle invoice with amount
	CreateTopupInvoice(ctx context.Context, base *invoice.Invoice, amount decimal.Decimal, reason string) (*invoice.Invoice, error)

	AddAdjustment(ctx context.Context, invoiceID string, adj invoice.Adjustment) (*InvoiceMutation, error)
	RemoveAdjustment(ctx context.Context, invoiceID, adjustmentID, reason string) (*InvoiceMutation, error)
	RemoveRecurringCharge(ctx context.Context, invoiceID, chargeID, reason string) (*InvoiceMutation, error)
	// Reprice replaces the base terms of a pending invoice with a new quote
	Reprice(ctx context.Context, invoiceID string, tier types.SubscriptionTier, quote *proration.Quote) (*InvoiceMutation, error)

	MarkPaid(ctx context.Context, invoiceID, reference string) (*InvoiceMutation, error)
	Cancel(ctx context.Context, invoiceID string) (*InvoiceMutation, error)
	CancelPendingInvoices(ctx context.Context, subscriptionID string) ([]*invoice.Invoice, error)

	// RecordEmailResult persists the delivery outcome in its own short transaction
	RecordEmailResult(ctx context.Context, invoiceID string, result *email.InvoiceEmailResult) error

	// DeliverInvoice emails the invoice and records the outcome. It must be
	// called after the invoice is committed, never inside a transaction.
	DeliverInvoice(ctx context.Context, inv *invoice.Invoice, customerName string) *email.InvoiceEmailResult
}

// InvoiceMutation is an invoice after a change plus its prior state
type InvoiceMutation struct {
	Before     invoice.Invoice
	Invoice    *invoice.Invoice
	Superseded int
}

type invoiceService struct {
	ServiceParams
	idempGen *idempotency.Generator
}

func NewInvoiceService(params ServiceParams) InvoiceService {
	return &invoiceService{
		ServiceParams: params,
		idempGen:      idempotency.NewGenerator(),
	}
}

func (s *invoiceService) GetInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error) {
	if id == "" {
		return nil, ierr.NewError("invoice_id is required").
			WithHint("Invoice ID is required").
			Mark(ierr.ErrValidation)
	}

	inv, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewInvoiceResponse(inv), nil
}

func (s *invoiceService) ListSubscriptionInvoices(ctx context.Context, subscriptionID string, filter *types.InvoiceFilter) (*dto.ListInvoicesResponse, error) {
	if filter == nil {
		filter = &types.InvoiceFilter{}
	}
	filter.SubscriptionID = subscriptionID
	filter.Limit = types.NormalizeLimit(filter.Limit)

	if _, err := s.SubRepo.Get(ctx, subscriptionID); err != nil {
		return nil, err
	}

	invoices, err := s.InvoiceRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := lo.Map(invoices, func(inv *invoice.Invoice, _ int) *dto.InvoiceResponse {
		return dto.NewInvoiceResponse(inv)
	})
	resp := types.NewListResponse(items, len(items), filter.Limit, filter.Offset)
	return &resp, nil
}

func (s *invoiceService) GetOrCreateCycleInvoice(ctx context.Context, sub *subscription.Subscription, quote *proration.Quote) (*invoice.Invoice, bool, error) {
	if err := sub.Validate(); err != nil {
		return nil, false, err
	}
	if quote == nil {
		return nil, false, ierr.NewError("quote is required").
			Mark(ierr.ErrValidation)
	}
	if err := quote.CycleMonth.Validate(); err != nil {
		return nil, false, err
	}

	id := s.idempGen.CycleInvoiceID(sub.ID, quote.CycleMonth)

	var (
		result  *invoice.Invoice
		created bool
	)
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		existing, err := s.InvoiceRepo.Get(ctx, id)
		if err == nil {
			result = existing
			return nil
		}
		if !ierr.IsNotFound(err) {
			return err
		}

		number, err := s.SequenceRepo.Next(ctx, invoice.SequenceInvoiceNumber)
		if err != nil {
			return err
		}

		inv := s.newCycleInvoice(ctx, id, number, sub, quote)
		if err := s.InvoiceRepo.Create(ctx, inv); err != nil {
			return err
		}

		result = inv
		created = true
		return nil
	})

	// a concurrent creator won the race; its committed document is the answer
	if ierr.IsAlreadyExists(err) {
		existing, getErr := s.InvoiceRepo.Get(ctx, id)
		if getErr != nil {
			return nil, false, getErr
		}
		s.Logger.Infow("cycle invoice created concurrently, returning existing",
			"invoice_id", id,
			"subscription_id", sub.ID,
			"cycle_month", quote.CycleMonth.String(),
		)
		return existing, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if created {
		s.Logger.Infow("created cycle invoice",
			"invoice_id", result.ID,
			"invoice_number", result.InvoiceNumber,
			"subscription_id", sub.ID,
			"cycle_month", quote.CycleMonth.String(),
			"amount", result.Amount.String(),
			"is_prorated", result.IsProrated,
		)
	}
	return result, created, nil
}

func (s *invoiceService) newCycleInvoice(ctx context.Context, id string, number int64, sub *subscription.Subscription, quote *proration.Quote) *invoice.Invoice {
	now := s.Clock.Now().UTC()

	adjustments := make([]invoice.Adjustment, 0)
	for _, charge := range sub.ActiveRecurringCharges() {
		adjustments = append(adjustments, invoice.Adjustment{
			ID:                types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ADJUSTMENT),
			Description:       charge.Description,
			Amount:            proration.ChargeAmount(charge.Amount, charge.Basis, quote.IncludedCount()),
			UnitAmount:        charge.Amount,
			Quantity:          chargeQuantity(charge.Basis, quote.IncludedCount()),
			Basis:             charge.Basis,
			Mode:              types.AdjustmentModeRecurring,
			Source:            types.AdjustmentSourceRecurringCharge,
			Status:            types.ChargeStatusActive,
			Reason:            charge.Reason,
			RecurringChargeID: charge.ID,
			CreatedBy:         types.GetUserID(ctx),
			CreatedAt:         now,
		})
	}

	inv := &invoice.Invoice{
		ID:              id,
		SubscriptionID:  sub.ID,
		CustomerID:      sub.CustomerID,
		CustomerEmail:   sub.CustomerEmail,
		InvoiceType:     types.InvoiceTypeCycle,
		InvoiceNumber:   number,
		CycleMonth:      quote.CycleMonth,
		Tier:            sub.Tier,
		Currency:        sub.Currency,
		BaseAmount:      quote.BaseAmount,
		Adjustments:     types.NewJSONB(adjustments),
		IsProrated:      quote.IsProrated,
		ProrationRatio:  quote.Ratio,
		Schedule:        types.NewJSONB(quote.Schedule),
		PaymentMethod:   sub.PaymentMethod,
		PaymentApproved: sub.PaymentApproved,
		InvoiceStatus:   types.InvoiceStatusPendingPayment,
		Metadata:        types.Metadata{},
		Version:         1,
		BaseModel:       types.GetDefaultBaseModel(ctx),
	}
	inv.Recompute()
	return inv
}

func (s *invoiceService) CreateTopupInvoice(ctx context.Context, base *invoice.Invoice, amount decimal.Decimal, reason string) (*invoice.Invoice, error) {
	if base.InvoiceType != types.InvoiceTypeCycle {
		return nil, ierr.NewError("top-ups must reference a cycle invoice").
			WithHint("A top-up can only supplement a cycle invoice").
			Mark(ierr.ErrInvalidOperation)
	}
	if base.InvoiceStatus != types.InvoiceStatusPaid {
		return nil, ierr.NewError("base invoice is not paid").
			WithHintf("Unpaid invoices are repriced in place, invoice is %s", base.InvoiceStatus).
			Mark(ierr.ErrInvalidOperation)
	}
	amount = types.Round2(amount)
	if !amount.IsPositive() {
		return nil, ierr.NewError("top-up amount must be positive").
			WithHint("Paid invoices are never reduced").
			Mark(ierr.ErrInvalidOperation)
	}

	var topup *invoice.Invoice
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		number, err := s.SequenceRepo.Next(ctx, invoice.SequenceInvoiceNumber)
		if err != nil {
			return err
		}

		baseID := base.ID
		topup = &invoice.Invoice{
			ID:              s.idempGen.TopupInvoiceID(base.SubscriptionID, base.CycleMonth),
			SubscriptionID:  base.SubscriptionID,
			CustomerID:      base.CustomerID,
			CustomerEmail:   base.CustomerEmail,
			InvoiceType:     types.InvoiceTypeTopup,
			InvoiceNumber:   number,
			CycleMonth:      base.CycleMonth,
			BaseInvoiceID:   &baseID,
			Tier:            base.Tier,
			Currency:        base.Currency,
			BaseAmount:      amount,
			Adjustments:     types.NewJSONB([]invoice.Adjustment{}),
			ProrationRatio:  decimal.NewFromInt(1),
			Schedule:        base.Schedule,
			PaymentMethod:   base.PaymentMethod,
			PaymentApproved: base.PaymentApproved,
			InvoiceStatus:   types.InvoiceStatusPendingPayment,
			Metadata:        types.Metadata{"reason": reason},
			Version:         1,
			BaseModel:       types.GetDefaultBaseModel(ctx),
		}
		topup.Recompute()
		return s.InvoiceRepo.Create(ctx, topup)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("created top-up invoice",
		"invoice_id", topup.ID,
		"base_invoice_id", base.ID,
		"amount", topup.Amount.String(),
	)
	return topup, nil
}

func (s *invoiceService) AddAdjustment(ctx context.Context, invoiceID string, adj invoice.Adjustment) (*InvoiceMutation, error) {
	if adj.ID == "" {
		adj.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ADJUSTMENT)
	}
	if adj.CreatedAt.IsZero() {
		adj.CreatedAt = s.Clock.Now().UTC()
	}
	if adj.CreatedBy == "" {
		adj.CreatedBy = types.GetUserID(ctx)
	}
	return s.mutateTerms(ctx, invoiceID, func(inv *invoice.Invoice) error {
		if adj.Basis == types.ChargeBasisPerDelivery && adj.Quantity == 0 {
			adj.UnitAmount = adj.Amount
			adj.Quantity = inv.Schedule.Data.IncludedCount
			adj.Amount = proration.ChargeAmount(adj.Amount, adj.Basis, adj.Quantity)
		}
		return inv.AddAdjustment(adj)
	})
}

func (s *invoiceService) RemoveAdjustment(ctx context.Context, invoiceID, adjustmentID, reason string) (*InvoiceMutation, error) {
	return s.mutateTerms(ctx, invoiceID, func(inv *invoice.Invoice) error {
		_, err := inv.RemoveAdjustment(ctx, adjustmentID, reason, s.Clock.Now())
		return err
	})
}

func (s *invoiceService) RemoveRecurringCharge(ctx context.Context, invoiceID, chargeID, reason string) (*InvoiceMutation, error) {
	return s.mutateTerms(ctx, invoiceID, func(inv *invoice.Invoice) error {
		_, err := inv.RemoveRecurringCharge(ctx, chargeID, reason, s.Clock.Now())
		return err
	})
}

func (s *invoiceService) Reprice(ctx context.Context, invoiceID string, tier types.SubscriptionTier, quote *proration.Quote) (*InvoiceMutation, error) {
	return s.mutateTerms(ctx, invoiceID, func(inv *invoice.Invoice) error {
		if !inv.IsPending() {
			return ierr.NewError("invoice is not pending").
				WithHintf("Only unpaid invoices can be repriced, invoice is %s", inv.InvoiceStatus).
				Mark(ierr.ErrInvalidOperation)
		}
		inv.Tier = tier
		inv.IsProrated = quote.IsProrated
		inv.ProrationRatio = quote.Ratio
		inv.Schedule = types.NewJSONB(quote.Schedule)
		inv.RescaleAdjustments(func(a invoice.Adjustment) decimal.Decimal {
			return proration.ChargeAmount(a.UnitAmount, a.Basis, quote.IncludedCount())
		}, quote.IncludedCount())
		inv.SetBaseAmount(quote.BaseAmount)
		return nil
	})
}

// mutateTerms changes what the customer owes. Any outstanding gateway
// session was created for the old amount, so it is superseded in the same
// transaction.
func (s *invoiceService) mutateTerms(ctx context.Context, invoiceID string, fn func(inv *invoice.Invoice) error) (*InvoiceMutation, error) {
	var mutation *InvoiceMutation
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		inv, err := s.InvoiceRepo.GetForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		before := *inv

		if err := fn(inv); err != nil {
			return err
		}

		superseded, err := s.SessionRepo.SupersedePending(ctx, inv.ID)
		if err != nil {
			return err
		}
		inv.ClearPaymentReference()

		if err := s.InvoiceRepo.Update(ctx, inv); err != nil {
			return err
		}
		mutation = &InvoiceMutation{Before: before, Invoice: inv, Superseded: superseded}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("invoice terms changed",
		"invoice_id", invoiceID,
		"amount_before", mutation.Before.Amount.String(),
		"amount_after", mutation.Invoice.Amount.String(),
		"superseded_sessions", mutation.Superseded,
	)
	return mutation, nil
}

func (s *invoiceService) MarkPaid(ctx context.Context, invoiceID, reference string) (*InvoiceMutation, error) {
	return s.transition(ctx, invoiceID, func(inv *invoice.Invoice, now time.Time) error {
		if err := inv.MarkPaid(reference, now); err != nil {
			return err
		}
		inv.PaymentApproved = true
		return nil
	})
}

func (s *invoiceService) Cancel(ctx context.Context, invoiceID string) (*InvoiceMutation, error) {
	return s.transition(ctx, invoiceID, func(inv *invoice.Invoice, now time.Time) error {
		return inv.Cancel(now)
	})
}

func (s *invoiceService) transition(ctx context.Context, invoiceID string, fn func(inv *invoice.Invoice, now time.Time) error) (*InvoiceMutation, error) {
	var mutation *InvoiceMutation
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		inv, err := s.InvoiceRepo.GetForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		before := *inv

		if err := fn(inv, s.Clock.Now().UTC()); err != nil {
			return err
		}

		superseded, err := s.SessionRepo.SupersedePending(ctx, inv.ID)
		if err != nil {
			return err
		}
		if err := s.InvoiceRepo.Update(ctx, inv); err != nil {
			return err
		}
		mutation = &InvoiceMutation{Before: before, Invoice: inv, Superseded: superseded}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return mutation, nil
}

func (s *invoiceService) CancelPendingInvoices(ctx context.Context, subscriptionID string) ([]*invoice.Invoice, error) {
	var cancelled []*invoice.Invoice
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		cancelled = nil
		pending, err := s.InvoiceRepo.List(ctx, &types.InvoiceFilter{
			SubscriptionID: subscriptionID,
			Statuses:       []types.InvoiceStatus{types.InvoiceStatusPendingPayment},
		})
		if err != nil {
			return err
		}

		for _, inv := range pending {
			mutation, err := s.Cancel(ctx, inv.ID)
			if err != nil {
				return err
			}
			cancelled = append(cancelled, mutation.Invoice)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

func (s *invoiceService) RecordEmailResult(ctx context.Context, invoiceID string, result *email.InvoiceEmailResult) error {
	if result == nil {
		return nil
	}

	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		inv, err := s.InvoiceRepo.GetForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}

		now := s.Clock.Now().UTC()
		inv.EmailStatus = lo.ToPtr(result.Status)
		inv.EmailAttempts += result.Attempts
		if result.Attempts > 0 {
			inv.EmailLastAttemptAt = &now
		}
		if result.PDFPath != "" {
			inv.PDFPath = lo.ToPtr(result.PDFPath)
		}
		return s.InvoiceRepo.Update(ctx, inv)
	})
	if err != nil {
		s.Logger.Errorw("failed to record invoice email status",
			"error", err,
			"invoice_id", invoiceID,
			"status", result.Status,
		)
		return err
	}
	return nil
}

func (s *invoiceService) DeliverInvoice(ctx context.Context, inv *invoice.Invoice, customerName string) *email.InvoiceEmailResult {
	result := s.Notifier.SendInvoice(ctx, inv, customerName)
	_ = s.RecordEmailResult(ctx, inv.ID, result)
	return result
}

func chargeQuantity(basis types.ChargeBasis, included int) int {
	if basis == types.ChargeBasisPerDelivery {
		return included
	}
	return 1
}

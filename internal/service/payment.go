package service

import (
	"context"

	"github.com/petalpost/petalpost/internal/api/dto"
	"github.com/petalpost/petalpost/internal/domain/payment"
	ierr "github.com/petalpost/petalpost/internal/errors"
	"github.com/petalpost/petalpost/internal/types"
	"github.com/samber/lo"
)

type PaymentService interface {
	// CreateCheckout opens a new gateway session for an unpaid invoice or
	// order. Any earlier pending session of the payable is superseded, so
	// only the newest reference can ever settle it.
	CreateCheckout(ctx context.Context, req dto.CreateCheckoutRequest) (*dto.CheckoutResponse, error)
	GetSession(ctx context.Context, reference string) (*dto.PaymentSessionResponse, error)
	ListInvoiceSessions(ctx context.Context, invoiceID string) ([]*dto.PaymentSessionResponse, error)
}

type paymentService struct {
	ServiceParams
}

func NewPaymentService(params ServiceParams) PaymentService {
	return &paymentService{ServiceParams: params}
}

func (s *paymentService) CreateCheckout(ctx context.Context, req dto.CreateCheckoutRequest) (*dto.CheckoutResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var (
		session *payment.Session
		target  payable
	)
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		target, err = s.lockPayable(ctx, req.PayableType, req.PayableID)
		if err != nil {
			return err
		}

		if !target.IsPending() {
			return ierr.NewError("payable is not awaiting payment").
				WithHintf("This %s has already been settled or cancelled", req.PayableType).
				WithReportableDetails(map[string]any{
					"payable_type": req.PayableType,
					"payable_id":   req.PayableID,
				}).
				Mark(ierr.ErrInvalidOperation)
		}
		if target.PaymentMethod() != types.PaymentMethodGateway {
			return ierr.NewError("payable is settled by manual transfer").
				WithHint("Manual transfers are approved by staff and cannot be paid online").
				Mark(ierr.ErrInvalidOperation)
		}
		if !target.Amount().IsPositive() {
			return ierr.NewError("nothing to pay").
				WithHint("The amount due is zero").
				Mark(ierr.ErrInvalidOperation)
		}

		if _, err := s.SessionRepo.SupersedePending(ctx, target.ID()); err != nil {
			return err
		}

		reference := types.GeneratePaymentReference()
		session = &payment.Session{
			Reference:      reference,
			PayableType:    target.Type(),
			SubscriptionID: target.SubscriptionID(),
			Amount:         types.Round2(target.Amount()),
			Currency:       target.Currency(),
			InvoiceNumber:  target.InvoiceNumber(),
			GatewayMode:    s.Gateway.Mode(),
			Status:         types.PaymentSessionStatusPending,
			FailedChecks:   types.NewJSONB([]types.PaymentCheck{}),
			BaseModel:      types.GetDefaultBaseModel(ctx),
		}
		if target.Type() == types.PayableTypeOrder {
			session.OrderID = lo.ToPtr(target.ID())
		} else {
			session.InvoiceID = lo.ToPtr(target.ID())
		}

		target.SetActiveReference(reference)
		if err := s.savePayable(ctx, target); err != nil {
			return err
		}
		return s.SessionRepo.Create(ctx, session)
	})
	if err != nil {
		return nil, err
	}

	checkout, err := s.Gateway.BuildCheckout(target.CheckoutRequest(session.Reference))
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("created payment session",
		"reference", session.Reference,
		"payable_type", session.PayableType,
		"payable_id", session.PayableID(),
		"amount", session.Amount.String(),
		"gateway_mode", session.GatewayMode,
	)
	return dto.NewCheckoutResponse(session, checkout), nil
}

func (s *paymentService) GetSession(ctx context.Context, reference string) (*dto.PaymentSessionResponse, error) {
	if reference == "" {
		return nil, ierr.NewError("reference is required").
			WithHint("Payment reference is required").
			Mark(ierr.ErrValidation)
	}

	session, err := s.SessionRepo.Get(ctx, reference)
	if err != nil {
		return nil, err
	}
	return &dto.PaymentSessionResponse{Session: session}, nil
}

func (s *paymentService) ListInvoiceSessions(ctx context.Context, invoiceID string) ([]*dto.PaymentSessionResponse, error) {
	sessions, err := s.SessionRepo.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return lo.Map(sessions, func(session *payment.Session, _ int) *dto.PaymentSessionResponse {
		return &dto.PaymentSessionResponse{Session: session}
	}), nil
}

package service

import (
	"context"

	"github.com/petalpost/petalpost/internal/api/dto"
	"github.com/petalpost/petalpost/internal/domain/invoice"
	ierr "github.com/petalpost/petalpost/internal/errors"
)

type OrderService interface {
	CreateOrder(ctx context.Context, req dto.CreateOrderRequest) (*dto.OrderResponse, error)
	GetOrder(ctx context.Context, id string) (*dto.OrderResponse, error)
}

type orderService struct {
	ServiceParams
}

func NewOrderService(params ServiceParams) OrderService {
	return &orderService{ServiceParams: params}
}

// CreateOrder numbers the order from the sequence shared with subscription
// invoices, inside the creating transaction.
func (s *orderService) CreateOrder(ctx context.Context, req dto.CreateOrderRequest) (*dto.OrderResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	o := req.ToOrder(ctx)
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		number, err := s.SequenceRepo.Next(ctx, invoice.SequenceInvoiceNumber)
		if err != nil {
			return err
		}
		o.InvoiceNumber = number
		return s.OrderRepo.Create(ctx, o)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("created retail order",
		"order_id", o.ID,
		"invoice_number", o.InvoiceNumber,
		"amount", o.Amount.String(),
	)
	return dto.NewOrderResponse(o), nil
}

func (s *orderService) GetOrder(ctx context.Context, id string) (*dto.OrderResponse, error) {
	if id == "" {
		return nil, ierr.NewError("order_id is required").
			WithHint("Order ID is required").
			Mark(ierr.ErrValidation)
	}

	o, err := s.OrderRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewOrderResponse(o), nil
}

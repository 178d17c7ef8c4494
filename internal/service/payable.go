package service

import (
	"context"
	"fmt"
	"time"

	"github.com/petalpost/petalpost/internal/domain/invoice"
	"github.com/petalpost/petalpost/internal/domain/order"
	ierr "github.com/petalpost/petalpost/internal/errors"
	"github.com/petalpost/petalpost/internal/integration/payfast"
	"github.com/petalpost/petalpost/internal/types"
	"github.com/shopspring/decimal"
)

// payable is a document a gateway session can settle: a subscription
// invoice or a retail order
type payable interface {
	Type() types.PayableType
	ID() string
	SubscriptionID() *string
	Amount() decimal.Decimal
	Currency() string
	InvoiceNumber() int64
	PaymentMethod() types.PaymentMethod
	IsPending() bool
	ActiveReference() *string
	SetActiveReference(reference string)
	MarkPaid(reference string, at time.Time) error
	CheckoutRequest(reference string) payfast.CheckoutRequest
}

type invoicePayable struct {
	inv          *invoice.Invoice
	customerName string
}

func (p *invoicePayable) Type() types.PayableType            { return types.PayableTypeInvoice }
func (p *invoicePayable) ID() string                         { return p.inv.ID }
func (p *invoicePayable) SubscriptionID() *string            { return &p.inv.SubscriptionID }
func (p *invoicePayable) Amount() decimal.Decimal            { return p.inv.Amount }
func (p *invoicePayable) Currency() string                   { return p.inv.Currency }
func (p *invoicePayable) InvoiceNumber() int64               { return p.inv.InvoiceNumber }
func (p *invoicePayable) PaymentMethod() types.PaymentMethod { return p.inv.PaymentMethod }
func (p *invoicePayable) IsPending() bool                    { return p.inv.IsPending() }
func (p *invoicePayable) ActiveReference() *string           { return p.inv.ActivePaymentReference }

func (p *invoicePayable) SetActiveReference(reference string) {
	p.inv.ActivePaymentReference = &reference
}

func (p *invoicePayable) MarkPaid(reference string, at time.Time) error {
	if err := p.inv.MarkPaid(reference, at); err != nil {
		return err
	}
	p.inv.PaymentApproved = true
	return nil
}

func (p *invoicePayable) CheckoutRequest(reference string) payfast.CheckoutRequest {
	item := fmt.Sprintf("Flower subscription %s (%s)", invoice.FormatNumber(p.inv.InvoiceNumber), p.inv.CycleMonth.String())
	if p.inv.InvoiceType == types.InvoiceTypeTopup {
		item = fmt.Sprintf("Subscription top-up %s (%s)", invoice.FormatNumber(p.inv.InvoiceNumber), p.inv.CycleMonth.String())
	}
	return payfast.CheckoutRequest{
		Reference: reference,
		PayableID: p.inv.ID,
		Amount:    p.inv.Amount,
		ItemName:  item,
		Email:     p.inv.CustomerEmail,
		FirstName: p.customerName,
	}
}

type orderPayable struct {
	o *order.Order
}

func (p *orderPayable) Type() types.PayableType            { return types.PayableTypeOrder }
func (p *orderPayable) ID() string                         { return p.o.ID }
func (p *orderPayable) SubscriptionID() *string            { return nil }
func (p *orderPayable) Amount() decimal.Decimal            { return p.o.Amount }
func (p *orderPayable) Currency() string                   { return p.o.Currency }
func (p *orderPayable) InvoiceNumber() int64               { return p.o.InvoiceNumber }
func (p *orderPayable) PaymentMethod() types.PaymentMethod { return p.o.PaymentMethod }
func (p *orderPayable) IsPending() bool                    { return p.o.IsPending() }
func (p *orderPayable) ActiveReference() *string           { return p.o.ActivePaymentReference }

func (p *orderPayable) SetActiveReference(reference string) {
	p.o.ActivePaymentReference = &reference
}

func (p *orderPayable) MarkPaid(reference string, at time.Time) error {
	return p.o.MarkPaid(reference, at)
}

func (p *orderPayable) CheckoutRequest(reference string) payfast.CheckoutRequest {
	return payfast.CheckoutRequest{
		Reference: reference,
		PayableID: p.o.ID,
		Amount:    p.o.Amount,
		ItemName:  fmt.Sprintf("Order %s", invoice.FormatNumber(p.o.InvoiceNumber)),
		Email:     p.o.CustomerEmail,
	}
}

// lockPayable reads the payable with a row lock inside the caller's transaction
func (p ServiceParams) lockPayable(ctx context.Context, payableType types.PayableType, id string) (payable, error) {
	return p.getPayable(ctx, payableType, id, true)
}

func (p ServiceParams) getPayable(ctx context.Context, payableType types.PayableType, id string, lock bool) (payable, error) {
	switch payableType {
	case types.PayableTypeInvoice:
		get := p.InvoiceRepo.Get
		if lock {
			get = p.InvoiceRepo.GetForUpdate
		}
		inv, err := get(ctx, id)
		if err != nil {
			return nil, err
		}
		name := ""
		if sub, err := p.SubRepo.Get(ctx, inv.SubscriptionID); err == nil {
			name = sub.CustomerName
		}
		return &invoicePayable{inv: inv, customerName: name}, nil
	case types.PayableTypeOrder:
		get := p.OrderRepo.Get
		if lock {
			get = p.OrderRepo.GetForUpdate
		}
		o, err := get(ctx, id)
		if err != nil {
			return nil, err
		}
		return &orderPayable{o: o}, nil
	default:
		return nil, ierr.NewError("unknown payable type").
			WithHintf("Unknown payable type %s", payableType).
			Mark(ierr.ErrValidation)
	}
}

func (p ServiceParams) savePayable(ctx context.Context, pb payable) error {
	switch v := pb.(type) {
	case *invoicePayable:
		return p.InvoiceRepo.Update(ctx, v.inv)
	case *orderPayable:
		return p.OrderRepo.Update(ctx, v.o)
	default:
		return ierr.NewError("unknown payable").
			Mark(ierr.ErrSystem)
	}
}

func (p ServiceParams) publishPaidEvent(ctx context.Context, pb payable) {
	switch v := pb.(type) {
	case *invoicePayable:
		p.publishInvoiceEvent(ctx, types.WebhookEventInvoicePaid, v.inv)
	case *orderPayable:
		p.publishOrderEvent(ctx, types.WebhookEventOrderPaid, v.o)
	}
}

package service

import (
	"testing"

	"github.com/petalpost/petalpost/internal/api/dto"
	"github.com/petalpost/petalpost/internal/domain/invoice"
	ierr "github.com/petalpost/petalpost/internal/errors"
	"github.com/petalpost/petalpost/internal/testutil"
	"github.com/petalpost/petalpost/internal/types"
	"github.com/stretchr/testify/suite"
)

type OrderServiceSuite struct {
	testutil.BaseServiceTestSuite
	service       OrderService
	subscriptions SubscriptionService
}

func TestOrderService(t *testing.T) {
	suite.Run(t, new(OrderServiceSuite))
}

func (s *OrderServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := newTestServiceParams(&s.BaseServiceTestSuite)
	s.service = NewOrderService(params)
	s.subscriptions = NewSubscriptionService(params)
}

func (s *OrderServiceSuite) orderRequest(amount string) dto.CreateOrderRequest {
	return dto.CreateOrderRequest{
		CustomerID:    "cust_walkin",
		CustomerEmail: "Walkin@Example.com",
		Description:   "Protea bouquet",
		Amount:        dec(amount),
		PaymentMethod: types.PaymentMethodGateway,
	}
}

func (s *OrderServiceSuite) TestCreateOrder() {
	o, err := s.service.CreateOrder(s.GetContext(), s.orderRequest("249.999"))
	s.Require().NoError(err)
	s.Equal(types.OrderStatusPendingPayment, o.OrderStatus)
	s.Equal("250.00", o.Amount.StringFixed(2))
	s.Equal("walkin@example.com", o.CustomerEmail)
	s.Equal(types.DefaultCurrency, o.Currency)

	got, err := s.service.GetOrder(s.GetContext(), o.ID)
	s.Require().NoError(err)
	s.Equal(o.InvoiceNumber, got.InvoiceNumber)
}

func (s *OrderServiceSuite) TestSharesInvoiceSequence() {
	first, err := s.service.CreateOrder(s.GetContext(), s.orderRequest("100"))
	s.Require().NoError(err)

	signup, err := s.subscriptions.Signup(s.GetContext(),
		signupRequest(types.SubscriptionTierMonthly, "399", types.OrdinalSlotLast))
	s.Require().NoError(err)

	second, err := s.service.CreateOrder(s.GetContext(), s.orderRequest("100"))
	s.Require().NoError(err)

	s.Equal(int64(testutil.TestInvoiceNumberStart), first.InvoiceNumber)
	s.Equal(int64(testutil.TestInvoiceNumberStart+1), signup.Invoice.InvoiceNumber)
	s.Equal(int64(testutil.TestInvoiceNumberStart+2), second.InvoiceNumber)
}

func (s *OrderServiceSuite) TestValidation() {
	tests := []struct {
		name   string
		mutate func(r *dto.CreateOrderRequest)
	}{
		{"zero amount", func(r *dto.CreateOrderRequest) { r.Amount = dec("0") }},
		{"missing description", func(r *dto.CreateOrderRequest) { r.Description = "" }},
		{"unknown payment method", func(r *dto.CreateOrderRequest) { r.PaymentMethod = "cash" }},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			req := s.orderRequest("100")
			tt.mutate(&req)
			_, err := s.service.CreateOrder(s.GetContext(), req)
			s.True(ierr.IsValidation(err))
		})
	}

	_, ok := s.GetStores().SequenceRepo.(*testutil.InMemorySequenceStore).Current(invoice.SequenceInvoiceNumber)
	s.False(ok, "rejected orders must not consume numbers")
}

func (s *OrderServiceSuite) TestGetOrder_NotFound() {
	_, err := s.service.GetOrder(s.GetContext(), "ord_missing")
	s.True(ierr.IsNotFound(err))
}

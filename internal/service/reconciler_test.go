package service

import (
	"errors"
	"testing"

	"github.com/petalpost/petalpost/internal/api/dto"
	"github.com/petalpost/petalpost/internal/domain/payment"
	ierr "github.com/petalpost/petalpost/internal/errors"
	"github.com/petalpost/petalpost/internal/integration/payfast"
	"github.com/petalpost/petalpost/internal/testutil"
	"github.com/petalpost/petalpost/internal/types"
	"github.com/stretchr/testify/suite"
)

type ReconcilerServiceSuite struct {
	testutil.BaseServiceTestSuite
	service       ReconcilerService
	payments      PaymentService
	subscriptions SubscriptionService
	orders        OrderService
	admin         AdminService
	testData      struct {
		signup *dto.SignupResponse
	}
}

func TestReconcilerService(t *testing.T) {
	suite.Run(t, new(ReconcilerServiceSuite))
}

func (s *ReconcilerServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := newTestServiceParams(&s.BaseServiceTestSuite)
	s.service = NewReconcilerService(params)
	s.payments = NewPaymentService(params)
	s.subscriptions = NewSubscriptionService(params)
	s.orders = NewOrderService(params)
	s.admin = NewAdminService(params)
	s.setupTestData()
}

func (s *ReconcilerServiceSuite) setupTestData() {
	// monthly on the last Monday: 28 October is still ahead, so 400.00 is due
	signup, err := s.subscriptions.Signup(s.GetContext(),
		signupRequest(types.SubscriptionTierMonthly, "400", types.OrdinalSlotLast))
	s.Require().NoError(err)
	s.Require().Equal("400.00", signup.Invoice.Amount.StringFixed(2))
	s.testData.signup = signup
	s.GetWebhookPublisher().Clear()
}

func (s *ReconcilerServiceSuite) invoiceID() string {
	return s.testData.signup.Invoice.ID
}

func (s *ReconcilerServiceSuite) checkout(payableType types.PayableType, id string) *dto.CheckoutResponse {
	resp, err := s.payments.CreateCheckout(s.GetContext(), dto.CreateCheckoutRequest{
		PayableType: payableType,
		PayableID:   id,
	})
	s.Require().NoError(err)
	return resp
}

func (s *ReconcilerServiceSuite) notify(params payfast.Params) (*dto.ITNResult, error) {
	return s.service.HandleNotification(s.GetContext(), signedBody(params), testutil.GatewayIP)
}

func (s *ReconcilerServiceSuite) session(reference string) *payment.Session {
	session, err := s.GetStores().SessionRepo.Get(s.GetContext(), reference)
	s.Require().NoError(err)
	return session
}

func (s *ReconcilerServiceSuite) TestCreateCheckout() {
	first := s.checkout(types.PayableTypeInvoice, s.invoiceID())

	fields := map[string]string{}
	for _, f := range first.Fields {
		fields[f.Name] = f.Value
	}
	s.Equal("10000100", fields[payfast.FieldMerchantID])
	s.Equal(s.invoiceID(), fields[payfast.FieldMPaymentID])
	s.Equal("400.00", fields[payfast.FieldAmount])
	s.Equal(first.Reference, fields[payfast.FieldCustomStr1])
	s.NotEmpty(fields[payfast.FieldSignature])
	s.Equal(first.Fields[len(first.Fields)-1].Name, payfast.FieldSignature)
	s.Contains(first.Action, "sandbox.payfast.co.za")

	s.Equal(types.PaymentSessionStatusPending, s.session(first.Reference).Status)

	// a second checkout leaves only the newest reference able to settle
	second := s.checkout(types.PayableTypeInvoice, s.invoiceID())
	s.NotEqual(first.Reference, second.Reference)
	s.Equal(types.PaymentSessionStatusSuperseded, s.session(first.Reference).Status)
	s.Equal(types.PaymentSessionStatusPending, s.session(second.Reference).Status)

	inv, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), s.invoiceID())
	s.Require().NoError(err)
	s.Require().NotNil(inv.ActivePaymentReference)
	s.Equal(second.Reference, *inv.ActivePaymentReference)

	sessions, err := s.payments.ListInvoiceSessions(s.GetContext(), s.invoiceID())
	s.Require().NoError(err)
	s.Len(sessions, 2)
}

func (s *ReconcilerServiceSuite) TestCreateCheckout_Rejects() {
	s.Run("manual transfer", func() {
		req := signupRequest(types.SubscriptionTierMonthly, "400", types.OrdinalSlotLast)
		req.PaymentMethod = types.PaymentMethodManualTransfer
		manual, err := s.subscriptions.Signup(s.GetContext(), req)
		s.Require().NoError(err)

		_, err = s.payments.CreateCheckout(s.GetContext(), dto.CreateCheckoutRequest{
			PayableType: types.PayableTypeInvoice,
			PayableID:   manual.Invoice.ID,
		})
		s.True(ierr.IsInvalidOperation(err))
	})

	s.Run("unknown payable type", func() {
		_, err := s.payments.CreateCheckout(s.GetContext(), dto.CreateCheckoutRequest{
			PayableType: "voucher",
			PayableID:   s.invoiceID(),
		})
		s.True(ierr.IsValidation(err))
	})

	s.Run("missing invoice", func() {
		_, err := s.payments.CreateCheckout(s.GetContext(), dto.CreateCheckoutRequest{
			PayableType: types.PayableTypeInvoice,
			PayableID:   "inv_missing",
		})
		s.True(ierr.IsNotFound(err))
	})

	s.Run("already paid", func() {
		ref := s.checkout(types.PayableTypeInvoice, s.invoiceID()).Reference
		_, err := s.notify(itnParams(ref, s.invoiceID(), "400.00", "pf-1"))
		s.Require().NoError(err)

		_, err = s.payments.CreateCheckout(s.GetContext(), dto.CreateCheckoutRequest{
			PayableType: types.PayableTypeInvoice,
			PayableID:   s.invoiceID(),
		})
		s.True(ierr.IsInvalidOperation(err))
	})
}

func (s *ReconcilerServiceSuite) TestAccepted() {
	ref := s.checkout(types.PayableTypeInvoice, s.invoiceID()).Reference

	result, err := s.notify(itnParams(ref, s.invoiceID(), "400.00", "pf-1001"))
	s.Require().NoError(err)
	s.Equal(types.NotificationDecisionAccepted, result.Decision)
	s.Empty(result.FailedChecks)
	s.Equal(types.PayableTypeInvoice, result.PayableType)
	s.Equal(s.invoiceID(), result.PayableID)

	inv, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), s.invoiceID())
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusPaid, inv.InvoiceStatus)
	s.True(inv.PaymentApproved)
	s.Require().NotNil(inv.PaidReference)
	s.Equal(ref, *inv.PaidReference)

	session := s.session(ref)
	s.Equal(types.PaymentSessionStatusCompleted, session.Status)
	s.Require().NotNil(session.GatewayPaymentID)
	s.Equal("pf-1001", *session.GatewayPaymentID)

	logged, err := s.GetStores().NotificationRepo.ListByReference(s.GetContext(), ref)
	s.Require().NoError(err)
	s.Require().Len(logged, 1)
	s.Equal(types.NotificationDecisionAccepted, logged[0].Decision)
	s.Equal(testutil.GatewayIP, logged[0].SourceIP)

	s.Equal([]string{types.WebhookEventInvoicePaid}, s.GetWebhookPublisher().EventNames())

	// the gateway was asked to confirm exactly once
	s.Len(s.GetHTTPClient().Requests(), 1)
}

func (s *ReconcilerServiceSuite) TestDuplicate() {
	ref := s.checkout(types.PayableTypeInvoice, s.invoiceID()).Reference
	params := itnParams(ref, s.invoiceID(), "400.00", "pf-1001")

	_, err := s.notify(params)
	s.Require().NoError(err)

	result, err := s.notify(params)
	s.Require().NoError(err)
	s.Equal(types.NotificationDecisionDuplicate, result.Decision)

	logged, err := s.GetStores().NotificationRepo.ListByReference(s.GetContext(), ref)
	s.Require().NoError(err)
	s.Len(logged, 2)
	s.Equal([]string{types.WebhookEventInvoicePaid}, s.GetWebhookPublisher().EventNames())
}

func (s *ReconcilerServiceSuite) TestAmountMismatch() {
	ref := s.checkout(types.PayableTypeInvoice, s.invoiceID()).Reference

	result, err := s.notify(itnParams(ref, s.invoiceID(), "300.00", "pf-1001"))
	s.Require().NoError(err)
	s.Equal(types.NotificationDecisionRejected, result.Decision)
	s.Equal([]types.PaymentCheck{types.PaymentCheckInvoiceAmount}, result.FailedChecks)

	session := s.session(ref)
	s.Equal(types.PaymentSessionStatusValidationFailed, session.Status)
	s.Equal([]types.PaymentCheck{types.PaymentCheckInvoiceAmount}, session.FailedChecks.Data)

	inv, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), s.invoiceID())
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusPendingPayment, inv.InvoiceStatus)
	s.Equal([]string{types.WebhookEventPaymentRejected}, s.GetWebhookPublisher().EventNames())
}

func (s *ReconcilerServiceSuite) TestChargeAddedAfterCheckout() {
	ref := s.checkout(types.PayableTypeInvoice, s.invoiceID()).Reference

	_, err := s.admin.AddInvoiceCharge(testutil.AdminContext("usr_ops"), s.invoiceID(), dto.AddInvoiceChargeRequest{
		Description: "Vase",
		Amount:      dec("50"),
		Reason:      "customer asked for a vase",
	})
	s.Require().NoError(err)

	// the customer completes the stale 400.00 checkout against a 450.00 invoice
	result, err := s.notify(itnParams(ref, s.invoiceID(), "400.00", "pf-1001"))
	s.Require().NoError(err)
	s.Equal(types.NotificationDecisionRejected, result.Decision)
	s.ElementsMatch([]types.PaymentCheck{types.PaymentCheckReference, types.PaymentCheckInvoiceAmount}, result.FailedChecks)

	inv, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), s.invoiceID())
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusPendingPayment, inv.InvoiceStatus)
	s.Equal("450.00", inv.Amount.StringFixed(2))
}

func (s *ReconcilerServiceSuite) TestForgedNotificationsLeaveSessionUntouched() {
	ref := s.checkout(types.PayableTypeInvoice, s.invoiceID()).Reference

	s.Run("bad signature", func() {
		params := itnParams(ref, s.invoiceID(), "400.00", "pf-1001")
		params.Add(payfast.FieldSignature, payfast.Sign(params, "not-the-passphrase", false))

		result, err := s.service.HandleNotification(s.GetContext(), []byte(params.Encode(false)), testutil.GatewayIP)
		s.Require().NoError(err)
		s.Equal(types.NotificationDecisionRejected, result.Decision)
		s.Contains(result.FailedChecks, types.PaymentCheckSignature)
		s.Equal(types.PaymentSessionStatusPending, s.session(ref).Status)
	})

	s.Run("wrong merchant", func() {
		params := itnParams(ref, s.invoiceID(), "400.00", "pf-1001").Without(payfast.FieldMerchantID)
		params.Add(payfast.FieldMerchantID, "99999")

		result, err := s.notify(params)
		s.Require().NoError(err)
		s.Equal([]types.PaymentCheck{types.PaymentCheckMerchant}, result.FailedChecks)
		s.Equal(types.PaymentSessionStatusPending, s.session(ref).Status)
	})

	s.Run("unknown reference", func() {
		result, err := s.notify(itnParams("PP-unknown", s.invoiceID(), "400.00", "pf-1001"))
		s.Require().NoError(err)
		s.Equal(types.NotificationDecisionRejected, result.Decision)
		s.Equal([]types.PaymentCheck{types.PaymentCheckReference}, result.FailedChecks)
	})

	s.Run("genuine notification still settles", func() {
		result, err := s.notify(itnParams(ref, s.invoiceID(), "400.00", "pf-1001"))
		s.Require().NoError(err)
		s.Equal(types.NotificationDecisionAccepted, result.Decision)
	})
}

func (s *ReconcilerServiceSuite) TestIncompletePaymentStatus() {
	ref := s.checkout(types.PayableTypeInvoice, s.invoiceID()).Reference
	params := itnParams(ref, s.invoiceID(), "400.00", "pf-1001").Without(payfast.FieldPaymentStatus)
	params.Add(payfast.FieldPaymentStatus, "CANCELLED")

	result, err := s.notify(params)
	s.Require().NoError(err)
	s.Equal([]types.PaymentCheck{types.PaymentCheckStatus}, result.FailedChecks)
	s.Equal(types.PaymentSessionStatusValidationFailed, s.session(ref).Status)
}

func (s *ReconcilerServiceSuite) TestSourceIPNotAllowed() {
	ref := s.checkout(types.PayableTypeInvoice, s.invoiceID()).Reference

	result, err := s.service.HandleNotification(s.GetContext(),
		signedBody(itnParams(ref, s.invoiceID(), "400.00", "pf-1001")), "10.0.0.7")
	s.Require().NoError(err)
	s.Equal([]types.PaymentCheck{types.PaymentCheckSourceIP}, result.FailedChecks)
	s.Equal(types.PaymentSessionStatusValidationFailed, s.session(ref).Status)
}

func (s *ReconcilerServiceSuite) TestSkipSourceIPCheck() {
	cfg := s.GetConfig()
	cfg.PayFast.SkipSourceIPCheck = true
	defer func() { cfg.PayFast.SkipSourceIPCheck = false }()
	s.GetResolver().Fail(errors.New("no such host"))

	ref := s.checkout(types.PayableTypeInvoice, s.invoiceID()).Reference
	result, err := s.service.HandleNotification(s.GetContext(),
		signedBody(itnParams(ref, s.invoiceID(), "400.00", "pf-1001")), "10.0.0.7")
	s.Require().NoError(err)
	s.Equal(types.NotificationDecisionAccepted, result.Decision)
}

func (s *ReconcilerServiceSuite) TestTransientFailuresAskForRetry() {
	ref := s.checkout(types.PayableTypeInvoice, s.invoiceID()).Reference
	params := itnParams(ref, s.invoiceID(), "400.00", "pf-1001")

	s.Run("resolver down with nothing cached", func() {
		s.GetResolver().Fail(errors.New("dns timeout"))
		defer s.GetResolver().Fail(nil)

		result, err := s.notify(params)
		s.Require().Error(err)
		s.True(ierr.IsTransient(err))
		s.Equal(types.NotificationDecisionRetry, result.Decision)
		s.Equal(types.PaymentSessionStatusPending, s.session(ref).Status)
	})

	s.Run("gateway unavailable", func() {
		s.GetHTTPClient().RegisterResponse("/eng/query/validate", testutil.MockResponse{StatusCode: 503})
		defer s.GetHTTPClient().RegisterResponse("/eng/query/validate", testutil.MockResponse{StatusCode: 200, Body: []byte("VALID")})

		_, err := s.notify(params)
		s.True(ierr.IsTransient(err))
		s.Equal(types.PaymentSessionStatusPending, s.session(ref).Status)
	})

	s.Run("redelivery after recovery settles", func() {
		result, err := s.notify(params)
		s.Require().NoError(err)
		s.Equal(types.NotificationDecisionAccepted, result.Decision)

		logged, err := s.GetStores().NotificationRepo.ListByReference(s.GetContext(), ref)
		s.Require().NoError(err)
		s.Len(logged, 3)
	})
}

func (s *ReconcilerServiceSuite) TestGatewayRefusesConfirmation() {
	s.GetHTTPClient().RegisterResponse("/eng/query/validate", testutil.MockResponse{
		StatusCode: 200,
		Body:       []byte("INVALID"),
	})
	ref := s.checkout(types.PayableTypeInvoice, s.invoiceID()).Reference

	result, err := s.notify(itnParams(ref, s.invoiceID(), "400.00", "pf-1001"))
	s.Require().NoError(err)
	s.Equal([]types.PaymentCheck{types.PaymentCheckGateway}, result.FailedChecks)
	s.Equal(types.PaymentSessionStatusValidationFailed, s.session(ref).Status)
}

func (s *ReconcilerServiceSuite) TestSettlesRetailOrder() {
	o, err := s.orders.CreateOrder(s.GetContext(), dto.CreateOrderRequest{
		CustomerID:    "cust_walkin",
		CustomerEmail: "walkin@example.com",
		Description:   "Protea bouquet",
		Amount:        dec("250"),
		PaymentMethod: types.PaymentMethodGateway,
	})
	s.Require().NoError(err)

	ref := s.checkout(types.PayableTypeOrder, o.ID).Reference
	result, err := s.notify(itnParams(ref, o.ID, "250.00", "pf-2001"))
	s.Require().NoError(err)
	s.Equal(types.NotificationDecisionAccepted, result.Decision)
	s.Equal(types.PayableTypeOrder, result.PayableType)

	got, err := s.orders.GetOrder(s.GetContext(), o.ID)
	s.Require().NoError(err)
	s.Equal(types.OrderStatusPaid, got.OrderStatus)
	s.Equal([]string{types.WebhookEventOrderPaid}, s.GetWebhookPublisher().EventNames())
}

package service

import (
	"time"

	"github.com/petalpost/petalpost/internal/api/dto"
	"github.com/petalpost/petalpost/internal/integration/payfast"
	"github.com/petalpost/petalpost/internal/testutil"
	"github.com/petalpost/petalpost/internal/types"
	"github.com/shopspring/decimal"
)

func newTestServiceParams(s *testutil.BaseServiceTestSuite) ServiceParams {
	stores := s.GetStores()
	return NewServiceParams(
		s.GetLogger(),
		s.GetConfig(),
		s.GetDB(),
		s.GetClock(),
		stores.SubscriptionRepo,
		stores.InvoiceRepo,
		stores.SequenceRepo,
		stores.SessionRepo,
		stores.NotificationRepo,
		stores.OrderRepo,
		stores.AuditRepo,
		s.GetCalculator(),
		s.GetGateway(),
		s.GetSourceVerifier(),
		s.GetNotifier(),
		s.GetWebhookPublisher(),
	)
}

// sast builds a business-local instant
func sast(year int, month time.Month, day, hour int) time.Time {
	return time.Date(year, month, day, hour, 0, 0, 0, testutil.BusinessLocation)
}

func cycleOf(year int, month time.Month) types.CycleMonth {
	return types.NewCycleMonth(time.Date(year, month, 1, 0, 0, 0, 0, time.UTC))
}

func signupRequest(tier types.SubscriptionTier, price string, slots ...types.OrdinalSlot) dto.CreateSubscriptionRequest {
	return dto.CreateSubscriptionRequest{
		CustomerID:    types.GenerateUUIDWithPrefix("cust"),
		CustomerEmail: "thandi@example.com",
		CustomerName:  "Thandi",
		Tier:          tier,
		Price:         decimal.RequireFromString(price),
		DeliverySlots: slots,
		Address: dto.AddressRequest{
			Line1:      "12 Protea Road",
			City:       "Cape Town",
			PostalCode: "7700",
		},
		PaymentMethod: types.PaymentMethodGateway,
	}
}

// itnParams is a complete gateway notification for a checkout
func itnParams(reference, payableID, amount, gatewayPaymentID string) payfast.Params {
	var p payfast.Params
	p.Add(payfast.FieldMPaymentID, payableID)
	p.Add(payfast.FieldPfPaymentID, gatewayPaymentID)
	p.Add(payfast.FieldPaymentStatus, payfast.PaymentStatusComplete)
	p.Add(payfast.FieldAmountGross, amount)
	p.Add(payfast.FieldCustomStr1, reference)
	p.Add(payfast.FieldMerchantID, "10000100")
	return p
}

// signedBody signs params with the test passphrase and form-encodes them
func signedBody(p payfast.Params) []byte {
	p = p.Without(payfast.FieldSignature)
	p.Add(payfast.FieldSignature, payfast.Sign(p, testutil.TestPassphrase, false))
	return []byte(p.Encode(false))
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

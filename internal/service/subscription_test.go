package service

import (
	"testing"
	"time"

	"github.com/petalpost/petalpost/internal/api/dto"
	ierr "github.com/petalpost/petalpost/internal/errors"
	"github.com/petalpost/petalpost/internal/testutil"
	"github.com/petalpost/petalpost/internal/types"
	"github.com/stretchr/testify/suite"
)

type SubscriptionServiceSuite struct {
	testutil.BaseServiceTestSuite
	service SubscriptionService
}

func TestSubscriptionService(t *testing.T) {
	suite.Run(t, new(SubscriptionServiceSuite))
}

func (s *SubscriptionServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewSubscriptionService(newTestServiceParams(&s.BaseServiceTestSuite))
}

func (s *SubscriptionServiceSuite) TestSignup() {
	tests := []struct {
		name          string
		now           time.Time
		req           dto.CreateSubscriptionRequest
		wantCycle     types.CycleMonth
		wantNext      types.CycleMonth
		wantAmount    string
		wantProrated  bool
		wantRolled    bool
		wantDelivered int
	}{
		{
			name:          "bi-weekly mid month is prorated",
			now:           sast(2024, time.October, 15, 9),
			req:           signupRequest(types.SubscriptionTierBiWeekly, "699", types.OrdinalSlotFirst, types.OrdinalSlotThird),
			wantCycle:     cycleOf(2024, time.October),
			wantNext:      cycleOf(2024, time.November),
			wantAmount:    "349.50",
			wantProrated:  true,
			wantDelivered: 1,
		},
		{
			name:          "monthly before its delivery pays full price",
			now:           sast(2024, time.October, 1, 9),
			req:           signupRequest(types.SubscriptionTierMonthly, "399", types.OrdinalSlotFirst),
			wantCycle:     cycleOf(2024, time.October),
			wantNext:      cycleOf(2024, time.November),
			wantAmount:    "399.00",
			wantDelivered: 1,
		},
		{
			name:          "monthly after its delivery rolls forward",
			now:           sast(2024, time.October, 15, 9),
			req:           signupRequest(types.SubscriptionTierMonthly, "399", types.OrdinalSlotFirst),
			wantCycle:     cycleOf(2024, time.November),
			wantNext:      cycleOf(2024, time.December),
			wantAmount:    "399.00",
			wantRolled:    true,
			wantDelivered: 1,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.SetNow(tt.now)

			resp, err := s.service.Signup(s.GetContext(), tt.req)
			s.Require().NoError(err)

			s.Equal(tt.wantCycle, resp.Quote.CycleMonth)
			s.Equal(tt.wantRolled, resp.Quote.RolledForward)
			s.Equal(tt.wantDelivered, resp.Quote.IncludedCount())

			sub := resp.Subscription
			s.Equal(types.SubscriptionStatusActive, sub.SubscriptionStatus)
			s.Equal(tt.wantCycle, sub.CurrentCycleMonth)
			s.Equal(tt.wantNext, sub.NextBillingMonth)

			inv := resp.Invoice
			s.Equal(tt.wantAmount, inv.Amount.StringFixed(2))
			s.Equal(tt.wantProrated, inv.IsProrated)
			s.Equal(tt.wantCycle, inv.CycleMonth)
			s.Equal(types.InvoiceStatusPendingPayment, inv.InvoiceStatus)
			s.Require().NotNil(inv.EmailStatus)
			s.Equal(types.NotificationStatusSent, *inv.EmailStatus)
		})
	}
}

func (s *SubscriptionServiceSuite) TestSignup_PublishesAndEmails() {
	resp, err := s.service.Signup(s.GetContext(),
		signupRequest(types.SubscriptionTierBiWeekly, "699", types.OrdinalSlotFirst, types.OrdinalSlotThird))
	s.Require().NoError(err)

	s.Equal(dec("0.5").String(), resp.Invoice.ProrationRatio.String())
	s.Equal([]string{types.WebhookEventSubscriptionCreated, types.WebhookEventInvoiceCreated},
		s.GetWebhookPublisher().EventNames())
	s.Len(s.GetEmailSender().SentTo("thandi@example.com"), 1)
	s.Equal(int64(testutil.TestInvoiceNumberStart), resp.Invoice.InvoiceNumber)
}

func (s *SubscriptionServiceSuite) TestSignup_Validation() {
	tests := []struct {
		name string
		req  func() dto.CreateSubscriptionRequest
	}{
		{
			name: "bad email",
			req: func() dto.CreateSubscriptionRequest {
				r := signupRequest(types.SubscriptionTierMonthly, "399", types.OrdinalSlotFirst)
				r.CustomerEmail = "not-an-email"
				return r
			},
		},
		{
			name: "zero price",
			req: func() dto.CreateSubscriptionRequest {
				return signupRequest(types.SubscriptionTierMonthly, "0", types.OrdinalSlotFirst)
			},
		},
		{
			name: "bi-weekly needs two slots",
			req: func() dto.CreateSubscriptionRequest {
				return signupRequest(types.SubscriptionTierBiWeekly, "699", types.OrdinalSlotFirst)
			},
		},
		{
			name: "price with fractions of a cent",
			req: func() dto.CreateSubscriptionRequest {
				return signupRequest(types.SubscriptionTierMonthly, "399.999", types.OrdinalSlotFirst)
			},
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.service.Signup(s.GetContext(), tt.req())
			s.Require().Error(err)
			s.True(ierr.IsValidation(err))
		})
	}

	list, err := s.service.ListSubscriptions(s.GetContext(), nil)
	s.Require().NoError(err)
	s.Equal(0, list.Pagination.Total)
}

func (s *SubscriptionServiceSuite) TestPauseResume() {
	resp, err := s.service.Signup(s.GetContext(),
		signupRequest(types.SubscriptionTierMonthly, "399", types.OrdinalSlotLast))
	s.Require().NoError(err)
	id := resp.Subscription.ID

	paused, err := s.service.PauseSubscription(s.GetContext(), id)
	s.Require().NoError(err)
	s.Equal(types.SubscriptionStatusPaused, paused.SubscriptionStatus)
	s.NotNil(paused.PausedAt)

	_, err = s.service.PauseSubscription(s.GetContext(), id)
	s.True(ierr.IsInvalidOperation(err))

	// three months away; the missed cycles are not billed
	s.SetNow(sast(2025, time.February, 10, 9))
	resumed, err := s.service.ResumeSubscription(s.GetContext(), id)
	s.Require().NoError(err)
	s.Equal(types.SubscriptionStatusActive, resumed.SubscriptionStatus)
	s.Nil(resumed.PausedAt)
	s.Equal(cycleOf(2025, time.February), resumed.NextBillingMonth)
}

func (s *SubscriptionServiceSuite) TestCancel_CancelsPendingInvoices() {
	resp, err := s.service.Signup(s.GetContext(),
		signupRequest(types.SubscriptionTierMonthly, "399", types.OrdinalSlotLast))
	s.Require().NoError(err)
	s.GetWebhookPublisher().Clear()

	cancelled, err := s.service.CancelSubscription(s.GetContext(), resp.Subscription.ID)
	s.Require().NoError(err)
	s.Equal(types.SubscriptionStatusCancelled, cancelled.SubscriptionStatus)

	inv, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), resp.Invoice.ID)
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusCancelled, inv.InvoiceStatus)
	s.Equal([]string{types.WebhookEventSubscriptionUpdated, types.WebhookEventInvoiceCancelled},
		s.GetWebhookPublisher().EventNames())

	_, err = s.service.CancelSubscription(s.GetContext(), resp.Subscription.ID)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *SubscriptionServiceSuite) TestUpdateDeliverySlots() {
	resp, err := s.service.Signup(s.GetContext(),
		signupRequest(types.SubscriptionTierBiWeekly, "699", types.OrdinalSlotFirst, types.OrdinalSlotThird))
	s.Require().NoError(err)
	id := resp.Subscription.ID

	updated, err := s.service.UpdateDeliverySlots(s.GetContext(), id, dto.UpdateDeliverySlotsRequest{
		DeliverySlots: []types.OrdinalSlot{types.OrdinalSlotSecond, types.OrdinalSlotLast},
	})
	s.Require().NoError(err)
	s.Equal([]types.OrdinalSlot{types.OrdinalSlotSecond, types.OrdinalSlotLast}, updated.Slots())

	_, err = s.service.UpdateDeliverySlots(s.GetContext(), id, dto.UpdateDeliverySlotsRequest{
		DeliverySlots: []types.OrdinalSlot{types.OrdinalSlotSecond},
	})
	s.True(ierr.IsValidation(err))

	got, err := s.service.GetSubscription(s.GetContext(), id)
	s.Require().NoError(err)
	s.Equal([]types.OrdinalSlot{types.OrdinalSlotSecond, types.OrdinalSlotLast}, got.Slots())
}

func (s *SubscriptionServiceSuite) TestListSubscriptions() {
	for i := 0; i < 3; i++ {
		_, err := s.service.Signup(s.GetContext(),
			signupRequest(types.SubscriptionTierMonthly, "399", types.OrdinalSlotLast))
		s.Require().NoError(err)
	}

	list, err := s.service.ListSubscriptions(s.GetContext(), &types.SubscriptionFilter{Limit: 2})
	s.Require().NoError(err)
	s.Len(list.Items, 2)
	s.Equal(3, list.Pagination.Total)

	_, err = s.service.GetSubscription(s.GetContext(), "subs_missing")
	s.True(ierr.IsNotFound(err))
}

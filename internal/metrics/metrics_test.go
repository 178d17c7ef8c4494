package metrics

import (
	"net/http"
	"testing"
	"time"

	"github.com/petalpost/petalpost/internal/api/dto"
	"github.com/petalpost/petalpost/internal/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	c.ObserveRequest(http.MethodGet, "/health", http.StatusOK, time.Millisecond)
	c.ObserveBillingRun(&dto.BillingRunResponse{Mode: types.SchedulerModePrebill})
	c.ObserveNotification(&dto.ITNResult{Decision: types.NotificationDecisionAccepted})
}

func TestObserveBillingRun(t *testing.T) {
	c := NewCollector()
	c.ObserveBillingRun(&dto.BillingRunResponse{
		Mode: types.SchedulerModePrebill,
		Results: []*dto.SubscriptionRunResult{
			{Outcome: types.BillingOutcomeCreated, EmailStatus: types.NotificationStatusSent},
			{Outcome: types.BillingOutcomeResent, EmailStatus: types.NotificationStatusFailed},
			{Outcome: types.BillingOutcomeSkipped},
		},
	})
	c.ObserveBillingRun(nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.BillingRuns.WithLabelValues(string(types.SchedulerModePrebill))))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.BillingOutcomes.WithLabelValues(string(types.BillingOutcomeCreated))))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.BillingOutcomes.WithLabelValues(string(types.BillingOutcomeSkipped))))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.InvoiceEmails.WithLabelValues(string(types.NotificationStatusFailed))))
	assert.Equal(t, 2, testutil.CollectAndCount(c.InvoiceEmails))
}

func TestObserveNotification(t *testing.T) {
	c := NewCollector()
	c.ObserveNotification(&dto.ITNResult{
		Decision:     types.NotificationDecisionRejected,
		FailedChecks: []types.PaymentCheck{"signature", "amount"},
	})
	c.ObserveNotification(&dto.ITNResult{Decision: types.NotificationDecisionAccepted})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Notifications.WithLabelValues(string(types.NotificationDecisionRejected))))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.FailedChecks.WithLabelValues("amount")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.FailedChecks))
}

func TestObserveRequestUnmatchedRoute(t *testing.T) {
	c := NewCollector()
	c.ObserveRequest(http.MethodGet, "", http.StatusNotFound, time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues(http.MethodGet, "unmatched", "404")))
}

package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
	"github.com/petalpost/petalpost/internal/api/cron"
	v1 "github.com/petalpost/petalpost/internal/api/v1"
	"github.com/petalpost/petalpost/internal/auth"
	"github.com/petalpost/petalpost/internal/integration/payfast"
	ierr "github.com/petalpost/petalpost/internal/errors"
	"github.com/petalpost/petalpost/internal/metrics"
	"github.com/petalpost/petalpost/internal/sentry"
	"github.com/petalpost/petalpost/internal/service"
	"github.com/petalpost/petalpost/internal/testutil"
	"github.com/petalpost/petalpost/internal/types"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
)

const (
	testAuthSecret = "router-test-secret"
	testCronKey    = "router-test-cron"
)

type RouterSuite struct {
	testutil.BaseServiceTestSuite
	router  *gin.Engine
	metrics *metrics.Collector
}

func TestRouter(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupSuite() {
	s.BaseServiceTestSuite.SetupSuite()
	gin.SetMode(gin.TestMode)
	cfg := s.GetConfig()
	cfg.Auth.Secret = testAuthSecret
	cfg.Auth.CronKey = testCronKey
}

func (s *RouterSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.metrics = metrics.NewCollector()
	s.router = s.newRouter()
}

func (s *RouterSuite) newRouter() *gin.Engine {
	stores := s.GetStores()
	params := service.NewServiceParams(
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

	log := s.GetLogger()
	subscriptions := service.NewSubscriptionService(params)
	invoices := service.NewInvoiceService(params)
	billing := service.NewBillingService(params)
	payments := service.NewPaymentService(params)

	handlers := Handlers{
		Health:       v1.NewHealthHandler(nil, log),
		Subscription: v1.NewSubscriptionHandler(subscriptions, billing, invoices, log),
		Invoice:      v1.NewInvoiceHandler(invoices, payments, log),
		Order:        v1.NewOrderHandler(service.NewOrderService(params), log),
		Payment:      v1.NewPaymentHandler(payments, log),
		Webhook:      v1.NewWebhookHandler(service.NewReconcilerService(params), s.metrics, log),
		Admin:        v1.NewAdminHandler(service.NewAdminService(params), log),
		CronBilling:  cron.NewBillingHandler(billing, s.metrics, log),
		Metrics:      s.metrics,
	}
	return NewRouter(handlers, s.GetConfig(), log, sentry.NewSentryService(s.GetConfig(), log))
}

func (s *RouterSuite) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := jsoniter.Marshal(b)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *RouterSuite) adminToken(roles ...string) map[string]string {
	token, err := auth.NewProvider(s.GetConfig()).IssueToken(auth.Claims{UserID: "usr_ops", Roles: roles}, time.Hour)
	s.Require().NoError(err)
	return map[string]string{types.HeaderAuthorization: "Bearer " + token}
}

func (s *RouterSuite) signupBody() map[string]any {
	return map[string]any{
		"customer_id":    "cust_router",
		"customer_email": "lerato@example.com",
		"customer_name":  "Lerato",
		"tier":           types.SubscriptionTierMonthly,
		"price":          "399",
		"delivery_slots": []types.OrdinalSlot{types.OrdinalSlotLast},
		"address": map[string]string{
			"line1":       "3 Fynbos Lane",
			"city":        "Stellenbosch",
			"postal_code": "7600",
		},
		"payment_method": types.PaymentMethodGateway,
	}
}

type signupIDs struct {
	Subscription struct {
		ID string `json:"id"`
	} `json:"subscription"`
	Invoice struct {
		ID string `json:"id"`
	} `json:"invoice"`
}

func (s *RouterSuite) decodeSignup(w *httptest.ResponseRecorder) signupIDs {
	var ids signupIDs
	s.Require().NoError(jsoniter.Unmarshal(w.Body.Bytes(), &ids))
	s.Require().NotEmpty(ids.Subscription.ID)
	s.Require().NotEmpty(ids.Invoice.ID)
	return ids
}

func (s *RouterSuite) TestHealthEchoesRequestID() {
	w := s.do(http.MethodGet, "/health", nil, map[string]string{types.HeaderRequestID: "req-123"})
	s.Equal(http.StatusOK, w.Code)
	s.Equal("req-123", w.Header().Get(types.HeaderRequestID))

	w = s.do(http.MethodGet, "/health", nil, nil)
	s.NotEmpty(w.Header().Get(types.HeaderRequestID))
}

func (s *RouterSuite) TestSignupAndFetch() {
	w := s.do(http.MethodPost, "/v1/subscriptions", s.signupBody(), nil)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	resp := s.decodeSignup(w)

	w = s.do(http.MethodGet, "/v1/subscriptions/"+resp.Subscription.ID, nil, nil)
	s.Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/v1/subscriptions/"+resp.Subscription.ID+"/invoices", nil, nil)
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), resp.Invoice.ID)

	w = s.do(http.MethodGet, "/v1/invoices/"+resp.Invoice.ID, nil, nil)
	s.Equal(http.StatusOK, w.Code)
}

func (s *RouterSuite) TestErrorRendering() {
	w := s.do(http.MethodPost, "/v1/subscriptions", "{not json", map[string]string{types.HeaderRequestID: "req-bad"})
	s.Equal(http.StatusBadRequest, w.Code)

	var body ierr.ErrorResponse
	s.Require().NoError(jsoniter.Unmarshal(w.Body.Bytes(), &body))
	s.False(body.Success)
	s.Equal("Invalid request format", body.Error.Display)
	s.Equal("req-bad", body.Error.RequestID)
	s.Equal(ierr.ErrCodeValidation, body.Error.Code)

	w = s.do(http.MethodGet, "/v1/subscriptions/subs_missing", nil, nil)
	s.Equal(http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/v1/subscriptions?limit=-1", nil, nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *RouterSuite) TestAdminRequiresRole() {
	path := "/v1/admin/audit?entity_type=subscription&entity_id=subs_x"

	w := s.do(http.MethodGet, path, nil, nil)
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodGet, path, nil, map[string]string{types.HeaderAuthorization: "Token abc"})
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodGet, path, nil, s.adminToken("florist"))
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(http.MethodGet, path, nil, s.adminToken("admin"))
	s.Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/v1/admin/audit?entity_type=order&entity_id=x", nil, s.adminToken("admin"))
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *RouterSuite) TestAdminOverrideWritesAudit() {
	w := s.do(http.MethodPost, "/v1/subscriptions", s.signupBody(), nil)
	s.Require().Equal(http.StatusCreated, w.Code)
	signup := s.decodeSignup(w)

	path := "/v1/admin/invoices/" + signup.Invoice.ID + "/status"
	w = s.do(http.MethodPut, path, map[string]any{"status": "paid"}, s.adminToken("admin"))
	s.Equal(http.StatusBadRequest, w.Code, "reason is mandatory")

	w = s.do(http.MethodPut, path, map[string]any{
		"status":            "paid",
		"reason":            "EFT received",
		"payment_reference": "FNB-1001",
	}, s.adminToken("admin"))
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Result struct {
			InvoiceStatus types.InvoiceStatus `json:"invoice_status"`
		} `json:"result"`
		AuditWritten bool `json:"audit_written"`
	}
	s.Require().NoError(jsoniter.Unmarshal(w.Body.Bytes(), &resp))
	s.True(resp.AuditWritten)
	s.Equal(types.InvoiceStatusPaid, resp.Result.InvoiceStatus)

	w = s.do(http.MethodGet, "/v1/admin/audit?entity_type=invoice&entity_id="+signup.Invoice.ID, nil, s.adminToken("admin"))
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "usr_ops")
	s.Contains(w.Body.String(), "EFT received")
}

func (s *RouterSuite) TestCronRequiresKey() {
	w := s.do(http.MethodPost, "/v1/cron/billing/run", nil, nil)
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/v1/cron/billing/run", nil, map[string]string{types.HeaderCronKey: "wrong"})
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/v1/cron/billing/run", nil, map[string]string{types.HeaderCronKey: testCronKey})
	s.Require().Equal(http.StatusOK, w.Code)

	var run struct {
		Mode types.SchedulerMode `json:"mode"`
	}
	s.Require().NoError(jsoniter.Unmarshal(w.Body.Bytes(), &run))
	s.Equal(types.SchedulerModeSkip, run.Mode)
}

func (s *RouterSuite) TestITNAlwaysAcknowledgesPermanentOutcomes() {
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/payfast/itn",
		strings.NewReader("m_payment_id=inv_x&custom_str1=PP-unknown&signature=forged"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = testutil.GatewayIP + ":443"

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Equal(http.StatusOK, w.Code)
	s.Equal("OK", w.Body.String())
}

// payForInvoice signs up, opens a checkout and posts the matching signed
// notification with the given peer address and forwarded header
func (s *RouterSuite) payForInvoice(remoteAddr, forwardedFor string) {
	w := s.do(http.MethodPost, "/v1/subscriptions", s.signupBody(), nil)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	ids := s.decodeSignup(w)

	w = s.do(http.MethodPost, "/v1/payments/checkout", map[string]any{
		"payable_type": types.PayableTypeInvoice,
		"payable_id":   ids.Invoice.ID,
	}, nil)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var checkout struct {
		Reference string `json:"reference"`
		Amount    string `json:"amount"`
	}
	s.Require().NoError(jsoniter.Unmarshal(w.Body.Bytes(), &checkout))

	var p payfast.Params
	p.Add(payfast.FieldMPaymentID, ids.Invoice.ID)
	p.Add(payfast.FieldPfPaymentID, "pf-router")
	p.Add(payfast.FieldPaymentStatus, payfast.PaymentStatusComplete)
	p.Add(payfast.FieldAmountGross, "399.00")
	p.Add(payfast.FieldCustomStr1, checkout.Reference)
	p.Add(payfast.FieldMerchantID, "10000100")
	p.Add(payfast.FieldSignature, payfast.Sign(p, testutil.TestPassphrase, false))

	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/payfast/itn", strings.NewReader(p.Encode(false)))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = remoteAddr
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	s.Require().Equal(http.StatusOK, w.Code)
}

func (s *RouterSuite) TestITNIgnoresForwardedForFromUntrustedPeer() {
	s.payForInvoice("6.6.6.6:1234", testutil.GatewayIP)

	s.Equal(1.0, promtest.ToFloat64(s.metrics.FailedChecks.WithLabelValues(string(types.PaymentCheckSourceIP))))
	s.Equal(1.0, promtest.ToFloat64(s.metrics.Notifications.WithLabelValues(string(types.NotificationDecisionRejected))))
	s.Equal(0.0, promtest.ToFloat64(s.metrics.Notifications.WithLabelValues(string(types.NotificationDecisionAccepted))))
}

func (s *RouterSuite) TestITNHonoursForwardedForFromTrustedProxy() {
	cfg := s.GetConfig()
	proxies := cfg.Server.TrustedProxies
	defer func() {
		cfg.Server.TrustedProxies = proxies
	}()
	cfg.Server.TrustedProxies = []string{"10.0.0.0/8"}
	s.router = s.newRouter()

	s.payForInvoice("10.1.2.3:1234", testutil.GatewayIP)

	s.Equal(0.0, promtest.ToFloat64(s.metrics.FailedChecks.WithLabelValues(string(types.PaymentCheckSourceIP))))
	s.Equal(1.0, promtest.ToFloat64(s.metrics.Notifications.WithLabelValues(string(types.NotificationDecisionAccepted))))
}

func (s *RouterSuite) TestITNRateLimit() {
	cfg := s.GetConfig()
	rps, burst := cfg.Server.ITNRateLimit, cfg.Server.ITNBurst
	defer func() {
		cfg.Server.ITNRateLimit, cfg.Server.ITNBurst = rps, burst
	}()
	cfg.Server.ITNRateLimit, cfg.Server.ITNBurst = 0.001, 1
	s.router = s.newRouter()

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/payfast/itn", strings.NewReader("custom_str1=PP-x"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	s.Equal([]int{http.StatusOK, http.StatusServiceUnavailable}, codes)
}

func (s *RouterSuite) TestMetricsRecordRoutesAndRuns() {
	s.do(http.MethodGet, "/health", nil, nil)
	s.do(http.MethodGet, "/v1/subscriptions/subs_missing", nil, nil)
	w := s.do(http.MethodPost, "/v1/cron/billing/run", nil, map[string]string{types.HeaderCronKey: testCronKey})
	s.Require().Equal(http.StatusOK, w.Code)

	s.Equal(1.0, promtest.ToFloat64(s.metrics.HTTPRequests.WithLabelValues(http.MethodGet, "/health", "200")))
	s.Equal(1.0, promtest.ToFloat64(s.metrics.HTTPRequests.WithLabelValues(http.MethodGet, "/v1/subscriptions/:id", "404")))
	s.Equal(1.0, promtest.ToFloat64(s.metrics.BillingRuns.WithLabelValues(string(types.SchedulerModeSkip))))

	w = s.do(http.MethodGet, "/metrics", nil, nil)
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "petalpost_billing_runs_total")
}

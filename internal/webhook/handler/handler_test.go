package handler

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/petalpost/petalpost/internal/config"
	"github.com/petalpost/petalpost/internal/httpclient"
	"github.com/petalpost/petalpost/internal/logger"
	"github.com/petalpost/petalpost/internal/security"
	"github.com/petalpost/petalpost/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessMessage(t *testing.T) {
	var (
		mu       sync.Mutex
		received []string
		headers  []http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		received = append(received, string(b))
		headers = append(headers, r.Header.Clone())
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cfg := config.GetDefaultConfig()
	cfg.HTTPClient.Timeout = time.Second
	cfg.Webhook.Endpoints = []config.WebhookEndpoint{
		{URL: srv.URL, Enabled: true, Headers: map[string]string{"Authorization": "Bearer t"}},
		{URL: srv.URL + "/disabled", Enabled: false},
		{URL: srv.URL + "/excluded", Enabled: true, ExcludedEvents: []string{types.WebhookEventInvoicePaid}},
	}

	log := logger.NewNoopLogger()
	h, err := NewHandler(nil, cfg, httpclient.NewDefaultClient(cfg, log), log)
	require.NoError(t, err)

	event := types.WebhookEvent{
		ID:        "webhook_1",
		EventName: types.WebhookEventInvoicePaid,
		UserID:    "system",
		Payload:   []byte(`{"invoice_id":"cycinv_1"}`),
	}
	payload, err := types.JSON.Marshal(event)
	require.NoError(t, err)

	require.NoError(t, h.(*handler).processMessage(message.NewMessage("m1", payload)))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Contains(t, received[0], `"event_name":"invoice.paid"`)
	assert.Equal(t, "Bearer t", headers[0].Get("Authorization"))
	assert.Equal(t, "invoice.paid", headers[0].Get("X-Petalpost-Event"))
	assert.Equal(t, "webhook_1", headers[0].Get("X-Petalpost-Event-Id"))
}

func TestProcessMessage_FailedEndpointFailsMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	cfg := config.GetDefaultConfig()
	cfg.Webhook.Endpoints = []config.WebhookEndpoint{{URL: srv.URL, Enabled: true}}

	log := logger.NewNoopLogger()
	h, err := NewHandler(nil, cfg, httpclient.NewDefaultClient(cfg, log), log)
	require.NoError(t, err)

	payload, _ := types.JSON.Marshal(types.WebhookEvent{ID: "webhook_2", EventName: types.WebhookEventInvoiceCreated})
	assert.Error(t, h.(*handler).processMessage(message.NewMessage("m2", payload)))

	// garbage is acknowledged rather than retried
	assert.NoError(t, h.(*handler).processMessage(message.NewMessage("m3", []byte("not json"))))
}

func TestProcessMessage_SignsWhenSecretConfigured(t *testing.T) {
	var (
		mu     sync.Mutex
		body   []byte
		header string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		body, header = b, r.Header.Get(security.SignatureHeader)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := config.GetDefaultConfig()
	cfg.Webhook.Endpoints = []config.WebhookEndpoint{{URL: srv.URL, Enabled: true, Secret: "whsec_test"}}

	log := logger.NewNoopLogger()
	h, err := NewHandler(nil, cfg, httpclient.NewDefaultClient(cfg, log), log)
	require.NoError(t, err)

	payload, err := types.JSON.Marshal(types.WebhookEvent{ID: "webhook_3", EventName: types.WebhookEventOrderPaid})
	require.NoError(t, err)
	require.NoError(t, h.(*handler).processMessage(message.NewMessage("m4", payload)))

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, header)
	assert.NoError(t, security.VerifyPayload("whsec_test", body, header, time.Now(), security.DefaultTolerance))
}

package sentry

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/petalpost/petalpost/internal/config"
	"github.com/petalpost/petalpost/internal/logger"
	"github.com/stretchr/testify/assert"
)

func TestScrubRequest(t *testing.T) {
	req := &sentry.Request{Data: "m_payment_id=inv_1&signature=abc123&amount_gross=100.00"}
	scrubRequest(req)

	values, err := url.ParseQuery(req.Data)
	assert.NoError(t, err)
	assert.Equal(t, "[Filtered]", values.Get("signature"))
	assert.Equal(t, "inv_1", values.Get("m_payment_id"))

	body := `{"reason":"customer called"}`
	req = &sentry.Request{Data: body}
	scrubRequest(req)
	assert.Equal(t, body, req.Data)

	scrubRequest(nil)
}

func TestDisabledServiceIsNoop(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Sentry.Enabled = false
	svc := NewSentryService(cfg, logger.NewNoopLogger())

	ctx := context.Background()
	svc.CaptureException(ctx, errors.New("boom"))

	span, spanCtx := svc.StartDBSpan(ctx, "postgres.transaction", nil)
	assert.Nil(t, span)
	assert.Equal(t, ctx, spanCtx)
}

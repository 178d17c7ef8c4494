package postgres

import (
	"context"

	"github.com/getsentry/sentry-go"
	"github.com/petalpost/petalpost/internal/logger"
	sentryService "github.com/petalpost/petalpost/internal/sentry"
)

// SentryClient records each top-level transaction as a span. Savepoints
// joined by nested WithTx calls are folded into the outer span.
type SentryClient struct {
	client IClient
	sentry *sentryService.Service
	logger *logger.Logger
}

func NewSentryClient(client IClient, sentry *sentryService.Service, logger *logger.Logger) IClient {
	return &SentryClient{
		client: client,
		sentry: sentry,
		logger: logger,
	}
}

func (c *SentryClient) WithTx(ctx context.Context, fn func(context.Context) error) error {
	if _, nested := GetTx(ctx); nested {
		return c.client.WithTx(ctx, fn)
	}

	span, spanCtx := c.sentry.StartDBSpan(ctx, "postgres.transaction", map[string]interface{}{
		"isolation": "serializable",
	})
	if span == nil {
		return c.client.WithTx(ctx, fn)
	}
	defer span.Finish()

	err := c.client.WithTx(spanCtx, fn)
	switch {
	case err == nil:
		span.Status = sentry.SpanStatusOK
	case IsSerializationFailure(err):
		span.Status = sentry.SpanStatusAborted
	default:
		span.Status = sentry.SpanStatusInternalError
	}
	return err
}

// Querier is passed through untraced; statements are logged by TracedQuerier
func (c *SentryClient) Querier(ctx context.Context) Querier {
	return c.client.Querier(ctx)
}

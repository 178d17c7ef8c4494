package email

import (
	"context"

	"github.com/petalpost/petalpost/internal/config"
	ierr "github.com/petalpost/petalpost/internal/errors"
	"github.com/petalpost/petalpost/internal/logger"
	"github.com/resend/resend-go/v2"
)

// Sender delivers a message. Callers never assume delivery succeeded.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// ResendSender implements Sender on the Resend API
type ResendSender struct {
	client      *resend.Client
	fromAddress string
	replyTo     string
	logger      *logger.Logger
}

// NewSender returns nil when outbound email is disabled or unconfigured
func NewSender(cfg *config.Configuration, logger *logger.Logger) Sender {
	if !cfg.Email.Enabled || cfg.Email.APIKey == "" {
		logger.Infow("outbound email disabled", "enabled", cfg.Email.Enabled)
		return nil
	}

	return &ResendSender{
		client:      resend.NewClient(cfg.Email.APIKey),
		fromAddress: cfg.Email.FromAddress,
		replyTo:     cfg.Email.ReplyTo,
		logger:      logger,
	}
}

func (c *ResendSender) Send(ctx context.Context, msg *Message) error {
	params := &resend.SendEmailRequest{
		From:    c.fromAddress,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	}

	if c.replyTo != "" {
		params.ReplyTo = c.replyTo
	}

	for _, a := range msg.Attachments {
		params.Attachments = append(params.Attachments, &resend.Attachment{
			Filename: a.Filename,
			Content:  a.Content,
		})
	}

	sent, err := c.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return ierr.WithError(err).
			WithHintf("Email to %s could not be sent", msg.To).
			Mark(ierr.ErrTransient)
	}

	c.logger.Debugw("email sent",
		"message_id", sent.Id,
		"to", msg.To,
		"subject", msg.Subject,
	)
	return nil
}

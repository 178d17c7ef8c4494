package email

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/petalpost/petalpost/internal/config"
	"github.com/petalpost/petalpost/internal/domain/invoice"
	"github.com/petalpost/petalpost/internal/logger"
	"github.com/petalpost/petalpost/internal/pdf"
	"github.com/petalpost/petalpost/internal/s3"
	"github.com/petalpost/petalpost/internal/types"
	"github.com/samber/lo"
)

// Notifier emails invoices to customers. It is always called after billing
// state is committed and never returns an error: the outcome is reported
// as sent, failed or skipped.
type Notifier interface {
	SendInvoice(ctx context.Context, inv *invoice.Invoice, customerName string) *InvoiceEmailResult
}

type notifier struct {
	sender     Sender
	renderer   Renderer
	generator  pdf.Generator
	storage    s3.Service
	retryDelay time.Duration
	attachPDF  bool
	linkBase   string
	logger     *logger.Logger
}

// NotifierParams groups the notifier's collaborators. Sender, Generator and
// Storage may be nil.
type NotifierParams struct {
	Config    *config.Configuration
	Sender    Sender
	Renderer  Renderer
	Generator pdf.Generator
	Storage   s3.Service
	Logger    *logger.Logger
}

func NewNotifier(p NotifierParams) Notifier {
	renderer := p.Renderer
	if renderer == nil {
		renderer = NewTemplateRenderer()
	}
	return &notifier{
		sender:     p.Sender,
		renderer:   renderer,
		generator:  p.Generator,
		storage:    p.Storage,
		retryDelay: p.Config.Billing.EmailRetryDelay,
		attachPDF:  p.Config.Billing.InvoiceEmailPDF,
		linkBase:   p.Config.Email.PaymentLinkBase,
		logger:     p.Logger,
	}
}

func (n *notifier) SendInvoice(ctx context.Context, inv *invoice.Invoice, customerName string) *InvoiceEmailResult {
	if n.sender == nil || inv.CustomerEmail == "" {
		return &InvoiceEmailResult{Status: types.NotificationStatusSkipped}
	}

	view := n.view(inv, customerName)
	subject, html, text, err := n.renderer.RenderInvoice(view)
	if err != nil {
		n.logger.Errorw("failed to render invoice email", "invoice_id", inv.ID, "error", err)
		return &InvoiceEmailResult{Status: types.NotificationStatusFailed, Error: err.Error()}
	}

	msg := &Message{
		To:      inv.CustomerEmail,
		Subject: subject,
		HTML:    html,
		Text:    text,
	}

	result := &InvoiceEmailResult{}
	if attachment, path := n.renderPDF(ctx, inv); attachment != nil {
		msg.Attachments = append(msg.Attachments, *attachment)
		result.PDFPath = path
	}

	// one retry after a fixed delay
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(n.retryDelay), 1),
		ctx,
	)
	err = backoff.Retry(func() error {
		result.Attempts++
		return n.sender.Send(ctx, msg)
	}, policy)

	if err != nil {
		n.logger.Warnw("invoice email failed",
			"invoice_id", inv.ID,
			"to", inv.CustomerEmail,
			"attempts", result.Attempts,
			"error", err,
		)
		result.Status = types.NotificationStatusFailed
		result.Error = err.Error()
		return result
	}

	n.logger.Infow("invoice email sent",
		"invoice_id", inv.ID,
		"attempts", result.Attempts,
	)
	result.Status = types.NotificationStatusSent
	return result
}

// renderPDF renders and stores the invoice document. Failures only drop
// the attachment.
func (n *notifier) renderPDF(ctx context.Context, inv *invoice.Invoice) (*Attachment, string) {
	if !n.attachPDF || n.generator == nil {
		return nil, ""
	}

	data, err := n.generator.RenderInvoicePdf(ctx, pdf.NewInvoiceData(inv))
	if err != nil {
		n.logger.Warnw("invoice pdf rendering failed, sending without attachment",
			"invoice_id", inv.ID, "error", err)
		return nil, ""
	}

	path := ""
	if n.storage != nil {
		doc := &s3.Document{Path: s3.InvoicePDFPath(inv.ID), Data: data}
		if _, err := n.storage.Save(ctx, doc); err != nil {
			n.logger.Warnw("invoice pdf could not be stored",
				"invoice_id", inv.ID, "error", err)
		} else {
			path = doc.Path
		}
	}

	return &Attachment{
		Filename:    fmt.Sprintf("invoice-%d.pdf", inv.InvoiceNumber),
		Content:     data,
		ContentType: s3.DetectContentType(data),
	}, path
}

func (n *notifier) view(inv *invoice.Invoice, customerName string) *InvoiceView {
	data := pdf.NewInvoiceData(inv)

	link := ""
	if n.linkBase != "" && inv.IsPending() {
		link = n.linkBase + "?invoice=" + url.QueryEscape(inv.ID)
	}

	return &InvoiceView{
		InvoiceNumber: data.InvoiceNumber,
		CustomerName:  lo.Ternary(customerName != "", customerName, "there"),
		CycleMonth:    data.CycleMonth,
		AmountDue:     data.AmountDue,
		Currency:      data.Currency,
		IsTopup:       inv.InvoiceType == types.InvoiceTypeTopup,
		IsProrated:    inv.IsProrated,
		DeliveryDates: data.DeliveryDates,
		LineItems: lo.Map(data.LineItems, func(l pdf.LineItemData, _ int) InvoiceLine {
			return InvoiceLine{Description: l.Description, Amount: l.Amount}
		}),
		PaymentLink: link,
	}
}

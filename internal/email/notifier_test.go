package email

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/petalpost/petalpost/internal/config"
	"github.com/petalpost/petalpost/internal/domain/delivery"
	"github.com/petalpost/petalpost/internal/domain/invoice"
	"github.com/petalpost/petalpost/internal/logger"
	"github.com/petalpost/petalpost/internal/pdf"
	"github.com/petalpost/petalpost/internal/s3"
	"github.com/petalpost/petalpost/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakySender struct {
	mu       sync.Mutex
	failures int
	sent     []*Message
	calls    int
}

func (s *flakySender) Send(_ context.Context, msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return errors.New("smtp down")
	}
	s.sent = append(s.sent, msg)
	return nil
}

type stubGenerator struct{ err error }

func (g *stubGenerator) RenderInvoicePdf(context.Context, *pdf.InvoiceData) ([]byte, error) {
	if g.err != nil {
		return nil, g.err
	}
	return []byte("%PDF-1.7\n"), nil
}

type stubStorage struct{ saved []string }

func (s *stubStorage) Save(_ context.Context, doc *s3.Document) (string, error) {
	s.saved = append(s.saved, doc.Path)
	return "https://blob.example/" + doc.Path, nil
}

func testInvoice(t *testing.T) *invoice.Invoice {
	month, err := types.ParseCycleMonth("2024-11")
	require.NoError(t, err)
	return &invoice.Invoice{
		ID:            "cycinv_abc",
		InvoiceNumber: 1001,
		InvoiceType:   types.InvoiceTypeCycle,
		InvoiceStatus: types.InvoiceStatusPendingPayment,
		CycleMonth:    month,
		Tier:          types.SubscriptionTierMonthly,
		Currency:      types.DefaultCurrency,
		CustomerEmail: "ada@example.com",
		BaseAmount:    decimal.RequireFromString("399"),
		Amount:        decimal.RequireFromString("399"),
		Schedule:      types.NewJSONB(delivery.Snapshot{IncludedDates: []string{"2024-11-04"}, IncludedCount: 1}),
	}
}

func newTestNotifier(sender Sender, gen pdf.Generator, storage s3.Service) Notifier {
	cfg := config.GetDefaultConfig()
	cfg.Billing.EmailRetryDelay = 0
	cfg.Billing.InvoiceEmailPDF = true
	cfg.Email.PaymentLinkBase = "https://shop.example/pay"
	return NewNotifier(NotifierParams{
		Config:    cfg,
		Sender:    sender,
		Generator: gen,
		Storage:   storage,
		Logger:    logger.NewNoopLogger(),
	})
}

func TestSendInvoice_Sent(t *testing.T) {
	sender := &flakySender{}
	storage := &stubStorage{}
	n := newTestNotifier(sender, &stubGenerator{}, storage)

	res := n.SendInvoice(context.Background(), testInvoice(t), "Ada")
	assert.Equal(t, types.NotificationStatusSent, res.Status)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, "invoices/cycinv_abc.pdf", res.PDFPath)
	assert.Equal(t, []string{"invoices/cycinv_abc.pdf"}, storage.saved)

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "ada@example.com", msg.To)
	assert.Equal(t, "Your flower invoice INV-001001 for 2024-11", msg.Subject)
	assert.Contains(t, msg.HTML, "Hi Ada")
	assert.Contains(t, msg.HTML, "ZAR 399.00")
	assert.Contains(t, msg.HTML, "https://shop.example/pay?invoice=cycinv_abc")
	assert.Contains(t, msg.Text, "Amount due: ZAR 399.00")
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "invoice-1001.pdf", msg.Attachments[0].Filename)
	assert.Equal(t, "application/pdf", msg.Attachments[0].ContentType)
}

func TestSendInvoice_RetriesOnce(t *testing.T) {
	sender := &flakySender{failures: 1}
	n := newTestNotifier(sender, nil, nil)

	res := n.SendInvoice(context.Background(), testInvoice(t), "")
	assert.Equal(t, types.NotificationStatusSent, res.Status)
	assert.Equal(t, 2, res.Attempts)
	assert.Empty(t, res.PDFPath)
	assert.Contains(t, sender.sent[0].HTML, "Hi there")
}

func TestSendInvoice_FailsAfterRetry(t *testing.T) {
	sender := &flakySender{failures: 5}
	n := newTestNotifier(sender, &stubGenerator{err: errors.New("renderer down")}, nil)

	res := n.SendInvoice(context.Background(), testInvoice(t), "Ada")
	assert.Equal(t, types.NotificationStatusFailed, res.Status)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, 2, sender.calls)
	assert.NotEmpty(t, res.Error)
}

func TestSendInvoice_Skipped(t *testing.T) {
	n := newTestNotifier(nil, nil, nil)
	res := n.SendInvoice(context.Background(), testInvoice(t), "Ada")
	assert.Equal(t, types.NotificationStatusSkipped, res.Status)
	assert.Zero(t, res.Attempts)

	inv := testInvoice(t)
	inv.CustomerEmail = ""
	res = newTestNotifier(&flakySender{}, nil, nil).SendInvoice(context.Background(), inv, "Ada")
	assert.Equal(t, types.NotificationStatusSkipped, res.Status)
}

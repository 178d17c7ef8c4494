package pdf

import (
	"context"
	"fmt"

	"github.com/petalpost/petalpost/internal/domain/invoice"
	"github.com/petalpost/petalpost/internal/types"
)

// Generator renders invoice documents. Rendering lives outside the billing
// core; a nil Generator means invoices are emailed without an attachment.
type Generator interface {
	RenderInvoicePdf(ctx context.Context, data *InvoiceData) ([]byte, error)
}

// InvoiceData is the render model of an invoice
type InvoiceData struct {
	ID            string         `json:"id"`
	InvoiceNumber string         `json:"invoice_number"`
	InvoiceType   string         `json:"invoice_type"`
	InvoiceStatus string         `json:"invoice_status"`
	CycleMonth    string         `json:"cycle_month"`
	Currency      string         `json:"currency"`
	Recipient     string         `json:"recipient"`
	AmountDue     string         `json:"amount_due"`
	IsProrated    bool           `json:"is_prorated"`
	DeliveryDates []string       `json:"delivery_dates"`
	LineItems     []LineItemData `json:"line_items"`
}

// LineItemData is a single priced row
type LineItemData struct {
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	Amount      string `json:"amount"`
}

// NewInvoiceData flattens an invoice into its render model. Removed
// adjustments are not shown.
func NewInvoiceData(inv *invoice.Invoice) *InvoiceData {
	schedule := inv.Schedule.Data

	base := fmt.Sprintf("%s flowers, %s", inv.Tier, inv.CycleMonth)
	if inv.InvoiceType == types.InvoiceTypeTopup {
		base = fmt.Sprintf("Plan change top-up, %s", inv.CycleMonth)
	}

	items := []LineItemData{{
		Description: base,
		Quantity:    schedule.IncludedCount,
		Amount:      types.FormatAmount(inv.BaseAmount),
	}}
	for _, a := range inv.ActiveAdjustments() {
		items = append(items, LineItemData{
			Description: a.Description,
			Quantity:    a.Quantity,
			Amount:      types.FormatAmount(a.Amount),
		})
	}

	return &InvoiceData{
		ID:            inv.ID,
		InvoiceNumber: invoice.FormatNumber(inv.InvoiceNumber),
		InvoiceType:   string(inv.InvoiceType),
		InvoiceStatus: string(inv.InvoiceStatus),
		CycleMonth:    inv.CycleMonth.String(),
		Currency:      inv.Currency,
		Recipient:     inv.CustomerEmail,
		AmountDue:     types.FormatAmount(inv.Amount),
		IsProrated:    inv.IsProrated,
		DeliveryDates: schedule.IncludedDates,
		LineItems:     items,
	}
}

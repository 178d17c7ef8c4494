package dto

import (
	"github.com/petalpost/petalpost/internal/domain/invoice"
	"github.com/petalpost/petalpost/internal/types"
)

type InvoiceResponse struct {
	*invoice.Invoice
	InvoiceNumberDisplay string `json:"invoice_number_display"`
}

func NewInvoiceResponse(inv *invoice.Invoice) *InvoiceResponse {
	if inv == nil {
		return nil
	}
	return &InvoiceResponse{
		Invoice:              inv,
		InvoiceNumberDisplay: invoice.FormatNumber(inv.InvoiceNumber),
	}
}

type ListInvoicesResponse = types.ListResponse[*InvoiceResponse]

package email

import "github.com/petalpost/petalpost/internal/types"

// Message is a single outbound email
type Message struct {
	To          string
	Subject     string
	HTML        string
	Text        string
	Attachments []Attachment
}

// Attachment is a file sent along with a message
type Attachment struct {
	Filename    string
	Content     []byte
	ContentType string
}

// InvoiceEmailResult is the delivery outcome persisted on the invoice
type InvoiceEmailResult struct {
	Status   types.NotificationStatus `json:"status"`
	Attempts int                      `json:"attempts"`
	PDFPath  string                   `json:"pdf_path,omitempty"`
	Error    string                   `json:"error,omitempty"`
}

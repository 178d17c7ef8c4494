package s3

import (
	"fmt"
	"path"
	"strings"

	"github.com/h2non/filetype"
)

const contentTypeOctetStream = "application/octet-stream"

// Document is a blob to persist. ContentType is sniffed from Data when empty.
type Document struct {
	Path        string `json:"path"`
	Data        []byte `json:"-"`
	ContentType string `json:"content_type"`
}

// DocumentTypeInvoice prefixes invoice PDFs
const DocumentTypeInvoice = "invoices"

// InvoicePDFPath is the storage path of an invoice's PDF
func InvoicePDFPath(invoiceID string) string {
	return path.Join(DocumentTypeInvoice, fmt.Sprintf("%s.pdf", invoiceID))
}

// DetectContentType sniffs the MIME type from the leading bytes
func DetectContentType(data []byte) string {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown || kind.MIME.Value == "" {
		return contentTypeOctetStream
	}
	return kind.MIME.Value
}

func (d *Document) resolvedContentType() string {
	if ct := strings.TrimSpace(d.ContentType); ct != "" {
		return ct
	}
	return DetectContentType(d.Data)
}

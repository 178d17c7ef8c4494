package s3

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectContentType(t *testing.T) {
	pdf := []byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n1 0 obj\n")
	assert.Equal(t, "application/pdf", DetectContentType(pdf))
	assert.Equal(t, contentTypeOctetStream, DetectContentType([]byte("plain words")))
	assert.Equal(t, contentTypeOctetStream, DetectContentType(nil))

	doc := &Document{Path: "x", Data: pdf, ContentType: "application/x-custom"}
	assert.Equal(t, "application/x-custom", doc.resolvedContentType())
	doc.ContentType = ""
	assert.Equal(t, "application/pdf", doc.resolvedContentType())
}

func TestInvoicePDFPath(t *testing.T) {
	assert.Equal(t, "invoices/cycinv_abc.pdf", InvoicePDFPath("cycinv_abc"))
}

package invoice

import "context"

// SequenceInvoiceNumber is the counter shared by subscription invoices and retail orders
const SequenceInvoiceNumber = "invoice_number"

// SequenceRepository allocates monotonically increasing numbers. Next must be
// called inside the transaction that persists the numbered document so a
// rolled back creation never burns a number.
type SequenceRepository interface {
	Next(ctx context.Context, name string) (int64, error)
}

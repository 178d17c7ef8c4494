package order

import (
	"time"

	ierr "github.com/petalpost/petalpost/internal/errors"
	"github.com/petalpost/petalpost/internal/types"
	"github.com/shopspring/decimal"
)

// Order is a one-off retail purchase. It is numbered from the same
// sequence as subscription invoices.
type Order struct {
	ID            string              `db:"id" json:"id"`
	InvoiceNumber int64               `db:"invoice_number" json:"invoice_number"`
	CustomerID    string              `db:"customer_id" json:"customer_id"`
	CustomerEmail string              `db:"customer_email" json:"customer_email"`
	Description   string              `db:"description" json:"description"`
	Amount        decimal.Decimal     `db:"amount" json:"amount"`
	Currency      string              `db:"currency" json:"currency"`
	PaymentMethod types.PaymentMethod `db:"payment_method" json:"payment_method"`
	OrderStatus   types.OrderStatus   `db:"order_status" json:"order_status"`

	ActivePaymentReference *string    `db:"active_payment_reference" json:"active_payment_reference,omitempty"`
	PaidAt                 *time.Time `db:"paid_at" json:"paid_at,omitempty"`
	PaidReference          *string    `db:"paid_reference" json:"paid_reference,omitempty"`

	Metadata types.Metadata `db:"metadata" json:"metadata,omitempty"`
	Version  int            `db:"version" json:"version"`

	types.BaseModel
}

func (o *Order) IsPending() bool {
	return o.OrderStatus == types.OrderStatusPendingPayment
}

// MarkPaid settles the order against reference
func (o *Order) MarkPaid(reference string, at time.Time) error {
	if !o.IsPending() {
		return ierr.NewError("order cannot be paid").
			WithHintf("Order is %s", o.OrderStatus).
			Mark(ierr.ErrInvalidOperation)
	}
	o.OrderStatus = types.OrderStatusPaid
	o.PaidAt = &at
	o.PaidReference = &reference
	o.ActivePaymentReference = nil
	return nil
}

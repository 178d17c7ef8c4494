package payment

import (
	"time"

	ierr "github.com/petalpost/petalpost/internal/errors"
	"github.com/petalpost/petalpost/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Session is a pending gateway checkout keyed by its payment reference.
// Amount is frozen at creation time.
type Session struct {
	Reference      string            `db:"reference" json:"reference"`
	PayableType    types.PayableType `db:"payable_type" json:"payable_type"`
	InvoiceID      *string           `db:"invoice_id" json:"invoice_id,omitempty"`
	OrderID        *string           `db:"order_id" json:"order_id,omitempty"`
	SubscriptionID *string           `db:"subscription_id" json:"subscription_id,omitempty"`
	Amount         decimal.Decimal   `db:"amount" json:"amount"`
	Currency       string            `db:"currency" json:"currency"`

	// InvoiceNumber is the payable's customer-facing number
	InvoiceNumber int64                      `db:"invoice_number" json:"invoice_number"`
	GatewayMode   types.GatewayMode          `db:"gateway_mode" json:"gateway_mode"`
	Status        types.PaymentSessionStatus `db:"status" json:"status"`

	FailedChecks types.JSONB[[]types.PaymentCheck] `db:"failed_checks" json:"failed_checks"`

	GatewayPaymentID *string    `db:"gateway_payment_id" json:"gateway_payment_id,omitempty"`
	CompletedAt      *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	SupersededAt     *time.Time `db:"superseded_at" json:"superseded_at,omitempty"`

	types.BaseModel
}

// PayableID returns the invoice or order id the session settles
func (s *Session) PayableID() string {
	if s.PayableType == types.PayableTypeOrder {
		return lo.FromPtr(s.OrderID)
	}
	return lo.FromPtr(s.InvoiceID)
}

// IsPending reports whether the session may still complete
func (s *Session) IsPending() bool {
	return s.Status == types.PaymentSessionStatusPending
}

// Complete is the only transition that settles money
func (s *Session) Complete(gatewayPaymentID string, at time.Time) error {
	if err := s.ensurePending(); err != nil {
		return err
	}
	s.Status = types.PaymentSessionStatusCompleted
	s.CompletedAt = &at
	if gatewayPaymentID != "" {
		s.GatewayPaymentID = &gatewayPaymentID
	}
	return nil
}

// Fail records the checks that rejected the notification
func (s *Session) Fail(checks []types.PaymentCheck) error {
	if err := s.ensurePending(); err != nil {
		return err
	}
	s.Status = types.PaymentSessionStatusValidationFailed
	s.FailedChecks = types.NewJSONB(checks)
	return nil
}

func (s *Session) ensurePending() error {
	if !s.IsPending() {
		return ierr.NewError("payment session is not pending").
			WithHintf("Payment session is %s", s.Status).
			WithReportableDetails(map[string]any{
				"reference": s.Reference,
				"status":    s.Status,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	return nil
}

// Notification is the append-only log entry of one inbound gateway notification
type Notification struct {
	ID               string                     `db:"id" json:"id"`
	Reference        string                     `db:"reference" json:"reference"`
	GatewayPaymentID string                     `db:"gateway_payment_id" json:"gateway_payment_id"`
	PaymentStatus    string                     `db:"payment_status" json:"payment_status"`
	AmountGross      string                     `db:"amount_gross" json:"amount_gross"`
	SourceIP         string                     `db:"source_ip" json:"source_ip"`
	RawParams        types.JSONB[[][2]string]   `db:"raw_params" json:"raw_params"`
	Checks           types.JSONB[[]CheckResult] `db:"checks" json:"checks"`
	Decision         types.NotificationDecision `db:"decision" json:"decision"`
	CreatedAt        time.Time                  `db:"created_at" json:"created_at"`
}

// CheckResult is the outcome of one trust check
type CheckResult struct {
	Check  types.PaymentCheck `json:"check"`
	Passed bool               `json:"passed"`
	Detail string             `json:"detail,omitempty"`
}

// FailedChecks lists the names of checks that did not pass
func FailedChecks(results []CheckResult) []types.PaymentCheck {
	return lo.FilterMap(results, func(r CheckResult, _ int) (types.PaymentCheck, bool) {
		return r.Check, !r.Passed
	})
}

package payment

import (
	"testing"
	"time"

	ierr "github.com/petalpost/petalpost/internal/errors"
	"github.com/petalpost/petalpost/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_Transitions(t *testing.T) {
	now := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)

	s := &Session{
		Reference:   "PP-1",
		PayableType: types.PayableTypeInvoice,
		InvoiceID:   lo.ToPtr("cycinv_1"),
		Status:      types.PaymentSessionStatusPending,
	}
	assert.Equal(t, "cycinv_1", s.PayableID())

	require.NoError(t, s.Complete("pf_123", now))
	assert.Equal(t, types.PaymentSessionStatusCompleted, s.Status)
	assert.Equal(t, "pf_123", *s.GatewayPaymentID)

	assert.True(t, ierr.IsInvalidOperation(s.Complete("pf_124", now)))
	assert.True(t, ierr.IsInvalidOperation(s.Fail([]types.PaymentCheck{types.PaymentCheckSignature})))
}

func TestSession_Fail(t *testing.T) {
	s := &Session{
		Reference:   "PP-2",
		PayableType: types.PayableTypeOrder,
		OrderID:     lo.ToPtr("ord_1"),
		Status:      types.PaymentSessionStatusPending,
	}
	assert.Equal(t, "ord_1", s.PayableID())

	require.NoError(t, s.Fail([]types.PaymentCheck{types.PaymentCheckInvoiceAmount}))
	assert.Equal(t, types.PaymentSessionStatusValidationFailed, s.Status)
	assert.Equal(t, []types.PaymentCheck{types.PaymentCheckInvoiceAmount}, s.FailedChecks.Data)
}

func TestFailedChecks(t *testing.T) {
	results := []CheckResult{
		{Check: types.PaymentCheckSignature, Passed: true},
		{Check: types.PaymentCheckInvoiceAmount, Passed: false},
		{Check: types.PaymentCheckReference, Passed: false},
	}
	assert.Equal(t, []types.PaymentCheck{types.PaymentCheckInvoiceAmount, types.PaymentCheckReference}, FailedChecks(results))
}

package pdf

import (
	"testing"

	"github.com/petalpost/petalpost/internal/domain/delivery"
	"github.com/petalpost/petalpost/internal/domain/invoice"
	"github.com/petalpost/petalpost/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInvoiceData(t *testing.T) {
	month, err := types.ParseCycleMonth("2024-10")
	require.NoError(t, err)

	inv := &invoice.Invoice{
		ID:            "cycinv_1",
		InvoiceNumber: 1042,
		InvoiceType:   types.InvoiceTypeCycle,
		InvoiceStatus: types.InvoiceStatusPendingPayment,
		CycleMonth:    month,
		Tier:          types.SubscriptionTierBiWeekly,
		Currency:      types.DefaultCurrency,
		CustomerEmail: "ada@example.com",
		BaseAmount:    decimal.RequireFromString("699"),
		Amount:        decimal.RequireFromString("749"),
		Schedule: types.NewJSONB(delivery.Snapshot{
			IncludedDates: []string{"2024-10-07", "2024-10-21"},
			IncludedCount: 2,
		}),
		Adjustments: types.NewJSONB([]invoice.Adjustment{
			{Description: "Vase", Amount: decimal.NewFromInt(50), Quantity: 1, Status: types.ChargeStatusActive},
			{Description: "Removed", Amount: decimal.NewFromInt(10), Quantity: 1, Status: types.ChargeStatusRemoved},
		}),
	}

	data := NewInvoiceData(inv)
	assert.Equal(t, "INV-001042", data.InvoiceNumber)
	assert.Equal(t, "749.00", data.AmountDue)
	assert.Equal(t, []string{"2024-10-07", "2024-10-21"}, data.DeliveryDates)
	require.Len(t, data.LineItems, 2)
	assert.Equal(t, "bi-weekly flowers, 2024-10", data.LineItems[0].Description)
	assert.Equal(t, 2, data.LineItems[0].Quantity)
	assert.Equal(t, "699.00", data.LineItems[0].Amount)
	assert.Equal(t, "Vase", data.LineItems[1].Description)
}

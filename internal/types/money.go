package types

import (
	"github.com/shopspring/decimal"
)

// DefaultCurrency is the only currency the storefront trades in
const DefaultCurrency = "ZAR"

// MoneyPrecision is the number of decimal places every stored amount carries
const MoneyPrecision int32 = 2

// Round2 rounds half away from zero to cents. Applied at every computation
// boundary, not only for display.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPrecision)
}

// IsWholeCents reports whether d has no value below a cent. Trailing zeros
// ("50.000") do not count.
func IsWholeCents(d decimal.Decimal) bool {
	return d.Equal(Round2(d))
}

// SumRound2 adds the amounts and rounds the total
func SumRound2(base decimal.Decimal, amounts ...decimal.Decimal) decimal.Decimal {
	total := base
	for _, a := range amounts {
		total = total.Add(a)
	}
	return Round2(total)
}

// FormatAmount renders an amount the way the gateway expects it ("123.40")
func FormatAmount(d decimal.Decimal) string {
	return Round2(d).StringFixed(MoneyPrecision)
}

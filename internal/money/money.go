// Package money centralises 2-decimal rounding for every monetary amount.
// Intermediate values are rounded as soon as they are computed so that tax,
// credit and payment steps never accumulate sub-cent drift.
package money

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Round rounds to 2 decimals, half away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// PercentOf returns round(amount * rate / 100).
func PercentOf(amount, rate decimal.Decimal) decimal.Decimal {
	return Round(amount.Mul(rate).Div(hundred))
}

// Sum adds the given amounts and rounds the result.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return Round(total)
}

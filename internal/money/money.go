// Package money holds the decimal helpers shared by pricing, payment and
// checkout. Values stay at full precision until a result is returned to a
// caller; only then are they rounded to cents.
package money

import (
	"strings"

	"github.com/kiwari-pos/cashier/internal/apperr"
	"github.com/shopspring/decimal"
)

// Places is the number of decimal places of every returned amount.
const Places = 2

var hundred = decimal.NewFromInt(100)

// ErrInvalidAmount is returned by Parse for malformed input.
var ErrInvalidAmount = apperr.New(apperr.KindValidation, "invalid amount")

// Round rounds d to cents, half away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Percent returns pct percent of base.
func Percent(base, pct decimal.Decimal) decimal.Decimal {
	return base.Mul(pct).Div(hundred)
}

// Sum adds all values.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// NonNegative returns d, or zero when d is negative.
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Format renders d with exactly two decimals, the wire format of every amount.
func Format(d decimal.Decimal) string {
	return d.StringFixed(Places)
}

// Parse reads an amount. Empty input is zero.
func Parse(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

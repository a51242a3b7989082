package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var centsPerUnit = decimal.NewFromInt(100)

// FormatCents renders integer cents as a fixed two-decimal price string.
func FormatCents(cents int) string {
	return decimal.NewFromInt(int64(cents)).Div(centsPerUnit).StringFixed(2)
}

// ParsePriceToCents converts a decimal price string into integer cents.
// Fractions beyond cents are rejected rather than rounded.
func ParsePriceToCents(value string) (int, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("invalid price %q: %w", value, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("price %q must not be negative", value)
	}
	cents := d.Mul(centsPerUnit)
	if !cents.IsInteger() {
		return 0, fmt.Errorf("price %q has sub-cent precision", value)
	}
	return int(cents.IntPart()), nil
}

// CentsDelta returns the signed difference newCents-oldCents as a decimal string.
func CentsDelta(oldCents, newCents int) string {
	return decimal.NewFromInt(int64(newCents - oldCents)).Div(centsPerUnit).StringFixed(2)
}

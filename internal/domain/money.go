package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of decimal places every monetary amount carries.
// Matches the NUMERIC(18,4) columns; arithmetic is exact decimal, never float.
const MoneyScale = 4

// ParseAmount parses a positive monetary amount, rejecting zero, negatives
// and anything with more than MoneyScale decimal places.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a decimal amount", ErrValidation, s)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: amount must be positive, got %s", ErrValidation, s)
	}
	if d.Exponent() < -MoneyScale {
		return decimal.Zero, fmt.Errorf("%w: amount %s exceeds %d decimal places", ErrValidation, s, MoneyScale)
	}
	return d, nil
}

// FormatAmount renders an amount at ledger scale for wire payloads.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(MoneyScale)
}

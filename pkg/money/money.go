// Package money converts between rupee amounts and the int64 paise values
// persisted everywhere else.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const paiseExponent = 2

// ParseRupees parses a rupee amount such as "45.50" into paise. Amounts with
// more than two decimal places are rounded half away from zero.
func ParseRupees(value string) (int64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("amount is required")
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return ToPaise(d), nil
}

// ToPaise converts a rupee decimal into paise.
func ToPaise(rupees decimal.Decimal) int64 {
	return rupees.Round(paiseExponent).Shift(paiseExponent).IntPart()
}

// FromPaise converts paise into a rupee decimal.
func FromPaise(paise int64) decimal.Decimal {
	return decimal.NewFromInt(paise).Shift(-paiseExponent)
}

// Format renders paise as a fixed two-decimal rupee string.
func Format(paise int64) string {
	return FromPaise(paise).StringFixed(paiseExponent)
}

// Package core provides money parsing and handling utilities.
//
// Amounts are carried as shopspring decimals so that sums and means over a
// ledger never accumulate binary floating point error.
package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a ledger amount string to a non-negative decimal.
//
// The decimal separator is a dot. Commas are accepted only as thousands
// separators in groups of three digits (1,234.50); any other comma makes the
// value ambiguous and it is rejected. Zero is a valid amount; negative,
// ambiguous or non-numeric input returns ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("12.34")    -> 12.34, nil
//	ParseAmount("1,234")    -> 1234, nil
//	ParseAmount("1,234.50") -> 1234.5, nil
//	ParseAmount("12,34")    -> 0, ErrInvalidAmount
//	ParseAmount("-3")       -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty value", ErrInvalidAmount)
	}
	s = strings.TrimPrefix(s, "+")
	if strings.Contains(s, ",") {
		plain, ok := stripGrouping(s)
		if !ok {
			return decimal.Zero, fmt.Errorf("%w: ambiguous separators in %q", ErrInvalidAmount, s)
		}
		s = plain
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' && r != '-' {
			return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative value %s", ErrInvalidAmount, d.String())
	}
	return d, nil
}

// stripGrouping removes thousands separators from the integer part when they
// form groups of exactly three digits.
func stripGrouping(s string) (string, bool) {
	intPart, frac, hasFrac := strings.Cut(s, ".")
	if strings.Contains(frac, ",") {
		return "", false
	}
	intPart = strings.TrimPrefix(intPart, "-")
	groups := strings.Split(intPart, ",")
	for i, g := range groups {
		if g == "" || len(g) > 3 || (i > 0 && len(g) != 3) {
			return "", false
		}
	}
	out := strings.ReplaceAll(s, ",", "")
	if hasFrac && frac == "" {
		return "", false
	}
	return out, true
}

// RoundCents rounds half away from zero to two decimal places.
func RoundCents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FormatAmount renders an amount with exactly two decimals.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

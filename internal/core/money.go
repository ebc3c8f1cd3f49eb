// Package core holds the ledger domain types and the aggregation engine.
//
// Money is represented with shopspring/decimal everywhere: amounts are parsed
// into decimals at the boundary, summed exactly, and only rendered to text for
// display.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a user supplied amount into a decimal.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and an
// optional sign. The sign is kept; callers normalize to the magnitude before
// storage. Thousands separators are not supported, and neither are fractions
// below a cent: trailing zeros are fine, "0.005" is rejected.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34, nil
//	ParseAmount("12,34") -> 12.34, nil
//	ParseAmount("-50")   -> -50, nil
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.Count(s, ",") > 0 && strings.Count(s, ".") > 0 {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	// NewFromString accepts exponents ("1e3"); amounts never use them.
	if strings.ContainsAny(s, "eE") {
		return decimal.Zero, ErrInvalidAmount
	}
	if !WholeCents(d) {
		return decimal.Zero, ErrAmountPrecision
	}
	return d, nil
}

// WholeCents reports whether d has no non-zero digits past the second
// decimal place.
func WholeCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

// FormatAmount renders an amount with two fraction digits, half-up rounded.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// FormatUSD renders an amount the way the dashboard displays it:
// "$1,950.00" and "-$25.00".
func FormatUSD(d decimal.Decimal) string {
	s := d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if d.IsNegative() && !d.Round(2).IsZero() {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}

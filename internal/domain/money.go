package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultTransferLimit is the per-attempt ceiling used when none is configured.
var DefaultTransferLimit = decimal.RequireFromString("10000.00")

// CentPrecision is the number of decimal places balances are stored with.
const CentPrecision = 2

// WholeCents reports whether d has no fraction below one cent, so that it is
// stored without rounding.
func WholeCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(CentPrecision))
}

// FormatBRL renders d with two decimals, "." thousands and "," decimal
// separators, e.g. 10000 -> "10.000,00".
func FormatBRL(d decimal.Decimal) string {
	s := d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if d.IsNegative() {
		b.WriteByte('-')
	}
	lead := len(intPart) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(intPart[:lead])
	for i := lead; i < len(intPart); i += 3 {
		b.WriteByte('.')
		b.WriteString(intPart[i : i+3])
	}
	b.WriteByte(',')
	b.WriteString(frac)
	return b.String()
}

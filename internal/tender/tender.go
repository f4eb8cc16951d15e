// Package tender derives change from the cash handed over.
package tender

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Change is cash minus total, or zero when the cash does not cover it.
func Change(cash, total decimal.Decimal) decimal.Decimal {
	if cash.GreaterThanOrEqual(total) {
		return cash.Sub(total)
	}
	return decimal.Zero
}

// ParseCash reads what the operator typed into the cash field. Empty or
// non-numeric input counts as no cash; so does a negative amount.
func ParseCash(text string) decimal.Decimal {
	text = strings.TrimSpace(strings.ReplaceAll(text, ",", ""))
	if text == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(text)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

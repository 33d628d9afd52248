package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmountMinor parses a statement amount string into signed minor
// currency units. It tolerates currency symbols, thousand separators and a
// trailing Dr/Cr marker; a marker overrides the sign of the number.
func ParseAmountMinor(amountStr string) (int64, error) {
	amount := strings.TrimSpace(amountStr)

	negative := false
	forced := false
	upper := strings.ToUpper(amount)
	switch {
	case strings.HasSuffix(upper, "DR"):
		amount = amount[:len(amount)-2]
		negative = true
		forced = true
	case strings.HasSuffix(upper, "CR"):
		amount = amount[:len(amount)-2]
		forced = true
	}

	for _, sym := range []string{"INR", "RS.", "RS", "USD", "EUR", "$", "€", "₹", ","} {
		amount = strings.ReplaceAll(amount, sym, "")
		amount = strings.ReplaceAll(amount, strings.ToLower(sym), "")
	}
	amount = strings.ReplaceAll(amount, "'", "")
	amount = strings.ReplaceAll(amount, " ", "")

	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return 0, err
	}
	if forced {
		dec = dec.Abs()
		if negative {
			dec = dec.Neg()
		}
	}
	return dec.Shift(2).Round(0).IntPart(), nil
}

// MinorToDecimal converts minor units to a decimal in major units.
func MinorToDecimal(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// FormatMinor renders minor units as a fixed two-decimal string.
func FormatMinor(minor int64) string {
	return MinorToDecimal(minor).StringFixed(2)
}

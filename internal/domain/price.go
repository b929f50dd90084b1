package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// PriceScale is the number of fractional digits carried by a normalized price.
const PriceScale = 8

// Price is a fixed-precision decimal price as produced by NormalizePrice.
// It is kept in string form so archived values match the wire digits exactly.
type Price string

// NormalizePrice converts a wire price into a fixed 8-digit fractional form.
// The integer part is kept verbatim; the fractional part is right-padded with
// zeros or truncated. Input without a decimal point is returned unchanged.
func NormalizePrice(raw string) Price {
	idx := strings.IndexByte(raw, '.')
	if idx < 0 {
		return Price(raw)
	}

	frac := raw[idx+1:]
	if len(frac) >= PriceScale {
		frac = frac[:PriceScale]
	} else {
		frac += strings.Repeat("0", PriceScale-len(frac))
	}

	return Price(raw[:idx] + "." + frac)
}

// String returns the price digits.
func (p Price) String() string {
	return string(p)
}

// Decimal parses the price for numeric consumers.
// Pass-through prices that are not numbers return an error.
func (p Price) Decimal() (decimal.Decimal, error) {
	return decimal.NewFromString(string(p))
}

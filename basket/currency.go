/*
currency.go - Currency-aware rounding and minor-unit helpers

PURPOSE:
  Prices travel through the engine as plain float64 and are only forced
  into exact currency units at rounding boundaries. Each supported
  currency has a canonical number of decimal places; rounding is
  half-away-from-zero at that exponent.

ADDING A CURRENCY:
  Add an entry to decimalPlaces. Unknown currencies fall back to two
  decimal places.

SEE ALSO:
  - discount.go: RoundByCurrency is applied after every percentual step
  - api/dto.go: FormatAmount renders totals for clients
*/
package basket

import (
	"math"

	"github.com/shopspring/decimal"
)

// Currency is an ISO 4217 code.
type Currency string

const (
	CurrencyCZK Currency = "CZK"
	CurrencyEUR Currency = "EUR"
)

// decimalPlaces is the canonical minor-unit exponent per currency.
// CZK tickets are priced in whole crowns; EUR tickets in tenths.
var decimalPlaces = map[Currency]int32{
	CurrencyCZK: 0,
	CurrencyEUR: 1,
}

const defaultDecimalPlaces int32 = 2

// DecimalPlaces returns the number of decimal places amounts of the given
// currency are rounded to.
func DecimalPlaces(c Currency) int32 {
	if dp, ok := decimalPlaces[c]; ok {
		return dp
	}
	return defaultDecimalPlaces
}

// RoundByCurrency rounds amount to the currency's canonical decimal places,
// half away from zero. Implemented by scaling, rounding, and scaling back
// so repeated application is a no-op.
func RoundByCurrency(amount float64, c Currency) float64 {
	scale := math.Pow(10, float64(DecimalPlaces(c)))
	return math.Round(amount*scale) / scale
}

// MinorUnits converts amount into an integer count of the currency's
// smallest unit (e.g. 9.2 EUR -> 92).
func MinorUnits(amount float64, c Currency) int64 {
	return decimal.NewFromFloat(amount).Shift(DecimalPlaces(c)).Round(0).IntPart()
}

// FormatAmount renders amount with the currency's canonical decimal places,
// e.g. "360 CZK" or "9.2 EUR".
func FormatAmount(amount float64, c Currency) string {
	return decimal.NewFromFloat(amount).StringFixed(DecimalPlaces(c)) + " " + string(c)
}

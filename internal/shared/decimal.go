package shared

import "github.com/shopspring/decimal"

// Storage precision for persisted values.
const (
	MoneyPlaces    int32 = 2
	QuantityPlaces int32 = 4
	RatePlaces     int32 = 6
)

// decimal.Round rounds half away from zero, which is half-up for the
// non-negative amounts stored here.

// RoundMoney rounds to 2 decimal places.
func RoundMoney(d decimal.Decimal) decimal.Decimal { return d.Round(MoneyPlaces) }

// RoundQuantity rounds to 4 decimal places.
func RoundQuantity(d decimal.Decimal) decimal.Decimal { return d.Round(QuantityPlaces) }

// RoundRate rounds to 6 decimal places.
func RoundRate(d decimal.Decimal) decimal.Decimal { return d.Round(RatePlaces) }

// SumMoney adds values after rounding each to money precision.
func SumMoney(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(RoundMoney(v))
	}
	return total
}

package checkout

import (
	"math"

	"github.com/shopspring/decimal"
)

var (
	hundred   = decimal.NewFromInt(100)
	maxAmount = decimal.NewFromInt(math.MaxInt64)
)

// MinorUnits converts a decimal unit price to minor currency units, rounding
// half away from zero. Prices must already have passed amountOverflow.
func MinorUnits(price decimal.Decimal) int64 {
	return price.Mul(hundred).Round(0).IntPart()
}

// Subtotal sums the lines in minor units. Each unit price is rounded before
// it is multiplied by the quantity, matching what the gateway charges.
func Subtotal(items []LineItem) int64 {
	var total int64
	for _, it := range items {
		total += MinorUnits(it.Price) * int64(it.Quantity)
	}
	return total
}

// FromMinorUnits converts a minor-unit amount back to a decimal.
func FromMinorUnits(amount int64) decimal.Decimal {
	return decimal.New(amount, -2)
}

// amountOverflow returns the index of the first line whose unit amount, line
// amount or running total does not fit in int64 minor units, or -1.
func amountOverflow(items []LineItem) int {
	total := decimal.Zero
	for i, it := range items {
		unit := it.Price.Mul(hundred).Round(0)
		if unit.GreaterThan(maxAmount) {
			return i
		}
		total = total.Add(unit.Mul(decimal.NewFromInt(int64(it.Quantity))))
		if total.GreaterThan(maxAmount) {
			return i
		}
	}
	return -1
}

package coupon

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// ApplyPercentage takes pct percent off a total expressed in minor currency
// units, rounding half away from zero to a whole unit.
//
//	ApplyPercentage(10000, 10) == 9000
func ApplyPercentage(total int64, pct int) int64 {
	if pct <= 0 {
		return total
	}
	if pct >= 100 {
		return 0
	}
	keep := hundred.Sub(decimal.NewFromInt(int64(pct)))
	return floorAtZero(decimal.NewFromInt(total).Mul(keep).Div(hundred).Round(0)).IntPart()
}

// floorAtZero clamps negative values to zero.
func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Package types provides common type aliases and utilities.
package types

import (
	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// UnitCostScale is the number of fractional digits stored for unit costs (NUMERIC(12,2)).
const UnitCostScale int32 = 2

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// RoundUnitCost rounds a unit cost to the stored precision (banker's rounding is not used).
func RoundUnitCost(m Money) Money {
	return m.Round(UnitCostScale)
}

// AbsInt64 returns |v|. math.MinInt64 has no positive counterpart and is
// returned unchanged; callers reject it first.
func AbsInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// AddInt64 returns a+b and false when the sum leaves the int64 range.
func AddInt64(a, b int64) (int64, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}

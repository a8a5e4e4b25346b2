// Package money holds every arithmetic operation on currency amounts and
// asset quantities. Nothing in the money path uses float64.
//
// Rounding rule for IRR: half away from zero to a whole rial. The same rule
// is used everywhere an IRR amount is materialized, so re-running a
// computation on identical inputs yields identical amounts.
package money

import (
	"errors"

	"github.com/shopspring/decimal"
)

// CryptoPrecision is the number of fractional digits kept for asset quantities.
const CryptoPrecision int32 = 8

var ErrDivideByZero = errors.New("division by zero")

var (
	Zero    = decimal.Zero
	One     = decimal.NewFromInt(1)
	Hundred = decimal.NewFromInt(100)

	bpsBase = decimal.NewFromInt(10_000)
)

func Add(a, b decimal.Decimal) decimal.Decimal {
	return a.Add(b)
}

func Sub(a, b decimal.Decimal) decimal.Decimal {
	return a.Sub(b)
}

func Mul(a, b decimal.Decimal) decimal.Decimal {
	return a.Mul(b)
}

// Div returns ErrDivideByZero when b is zero.
func Div(a, b decimal.Decimal) (decimal.Decimal, error) {
	if b.IsZero() {
		return decimal.Zero, ErrDivideByZero
	}
	return a.Div(b), nil
}

// DivOrZero is Div for call sites where a zero divisor means "nothing to share".
func DivOrZero(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	return a.Div(b)
}

// Sum adds all values.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// RoundIrr rounds to a whole rial, half away from zero.
func RoundIrr(d decimal.Decimal) decimal.Decimal {
	return d.Round(0)
}

// FloorIrr truncates toward negative infinity. Used for budgets, which must
// never be rounded up.
func FloorIrr(d decimal.Decimal) decimal.Decimal {
	return d.Floor()
}

// RoundCrypto rounds a quantity to CryptoPrecision fractional digits.
func RoundCrypto(d decimal.Decimal) decimal.Decimal {
	return d.Round(CryptoPrecision)
}

// Percent returns part/whole*100, or zero when whole is zero.
func Percent(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Mul(Hundred).Div(whole)
}

// OfPercent returns pct percent of amount.
func OfPercent(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Div(Hundred)
}

// FromBps converts basis points to a fraction (30 -> 0.003).
func FromBps(bps int64) decimal.Decimal {
	return decimal.NewFromInt(bps).Div(bpsBase)
}

// NetOfSpread returns amount*(1-spread).
func NetOfSpread(amount, spread decimal.Decimal) decimal.Decimal {
	return amount.Mul(One.Sub(spread))
}

// GrossOfSpread is the inverse of NetOfSpread. A spread of 100% or more
// leaves the amount unchanged.
func GrossOfSpread(amount, spread decimal.Decimal) decimal.Decimal {
	keep := One.Sub(spread)
	if !keep.IsPositive() {
		return amount
	}
	return amount.Div(keep)
}

func IsGreaterThan(a, b decimal.Decimal) bool {
	return a.GreaterThan(b)
}

func IsLessThan(a, b decimal.Decimal) bool {
	return a.LessThan(b)
}

// IsEqual is exact; there is no epsilon.
func IsEqual(a, b decimal.Decimal) bool {
	return a.Equal(b)
}

func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

func Abs(d decimal.Decimal) decimal.Decimal {
	return d.Abs()
}

// Irr builds an IRR amount from an integer number of rials.
func Irr(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

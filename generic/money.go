/*
Package generic provides the shared primitives of the sickness benefit engine.

PURPOSE:
  Domain-agnostic building blocks used by every other package: calendar
  days, closed day ranges, currency amounts and the sentinel errors that
  the core returns on contract violations.

KEY CONCEPTS IN THIS FILE (money.go):
  - Money: a currency amount backed by decimal.Decimal
  - Rounding: whole-unit, half-up, applied only at the final step
  - Conversions between monthly, annual and daily income

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Late rounding: intermediate values keep full precision
  3. Determinism: identical inputs always round identically

USAGE:
  daily := generic.DailyFromMonthly(generic.MustMoney("30000"))
  total := generic.RoundHalfUp(daily.Mul(decimal.NewFromInt(80)).Div(generic.Hundred))

SEE ALSO:
  - time.go: TimePoint, the calendar day
  - period.go: Period, a closed day range
  - errors.go: sentinel and structured errors
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Currency amount
// =============================================================================

// Money is an amount in the benefit currency. It is a plain decimal so the
// arithmetic API of shopspring/decimal is available directly.
type Money = decimal.Decimal

var (
	Hundred = decimal.NewFromInt(100)

	// WorkdaysPerYear converts annual income to a daily rate.
	WorkdaysPerYear = decimal.NewFromInt(260)
	monthsPerYear   = decimal.NewFromInt(12)
)

// MustMoney parses a decimal literal. Invalid input yields zero.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// MoneyFromInt is a convenience for whole currency units.
func MoneyFromInt(v int64) Money { return decimal.NewFromInt(v) }

// =============================================================================
// ROUNDING
// =============================================================================

// RoundHalfUp rounds to whole currency units, halves away from zero. All
// payout amounts are non-negative, so this is round-half-up.
func RoundHalfUp(m Money) Money {
	return m.Round(0)
}

// =============================================================================
// INCOME CONVERSIONS
// =============================================================================

// AnnualFromMonthly is monthly × 12.
func AnnualFromMonthly(monthly Money) Money { return monthly.Mul(monthsPerYear) }

// DailyFromAnnual is annual / 260.
func DailyFromAnnual(annual Money) Money { return annual.Div(WorkdaysPerYear) }

// AnnualFromDaily is daily × 260.
func AnnualFromDaily(daily Money) Money { return daily.Mul(WorkdaysPerYear) }

// DailyFromMonthly is monthly × 12 / 260, computed without intermediate rounding.
func DailyFromMonthly(monthly Money) Money {
	return DailyFromAnnual(AnnualFromMonthly(monthly))
}

// MinMoney and MaxMoney return the smaller/larger amount.
func MinMoney(a, b Money) Money {
	if a.LessThan(b) {
		return a
	}
	return b
}

func MaxMoney(a, b Money) Money {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

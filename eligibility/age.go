/*
Package eligibility derives age-based limits and income minimums.

PURPOSE:
  Everything here is computed from the date of birth and a base amount
  ("G"). The answers gate payment: the 67 and 70 year limits decide which
  entitlement pool applies and when benefits stop, and the minimum income
  decides whether a person qualifies at all.

RULES:
  - Age 67 limit:  date on or before the 67th birthday
  - Age 70 limit:  date on or before the last weekday before the 70th
                   birthday (a weekend birthday backs off to Friday)
  - Lost at 70:    date on or after the exact 70th birthday, unadjusted.
                   Gates new entitlement, separate from the payable-day limit
  - Minimum:       0.5G up to and including the 67th birthday, 2G after it

AUDIT:
  Every boolean and threshold that affects payment is reported to the
  profile's audit sink with statute, inputs and outputs.

SEE ALSO:
  - baseamount.go: the G table and the 6G cap
  - entitlement/machine.go: IsWithin70YearLimit decides the TooOld transition,
    IsWithin67YearLimit the switch to the over-67 pool
*/
package eligibility

import (
	"github.com/warp/sickpay-engine/audit"
	"github.com/warp/sickpay-engine/generic"
)

// =============================================================================
// AGE PROFILE
// =============================================================================

// AgeProfile holds the thresholds derived from a date of birth.
type AgeProfile struct {
	BirthDate generic.TimePoint
	Age67Date generic.TimePoint
	Age70Date generic.TimePoint

	// LastPayableDay is the last weekday before the 70th birthday.
	LastPayableDay generic.TimePoint

	sink    audit.Sink
	context map[string]string
}

// NewAgeProfile derives the thresholds. sink may be nil.
func NewAgeProfile(birth generic.TimePoint, sink audit.Sink) AgeProfile {
	age70 := birth.AddYears(70)
	return AgeProfile{
		BirthDate:      birth,
		Age67Date:      birth.AddYears(67),
		Age70Date:      age70,
		LastPayableDay: age70.AddDays(-1).PreviousWorkday(),
		sink:           audit.OrDiscard(sink),
	}
}

// WithContext returns a copy whose audit records carry ctx.
func (a AgeProfile) WithContext(ctx map[string]string) AgeProfile {
	a.context = ctx
	return a
}

// WithSink returns a copy that reports to sink instead. sink may be nil.
func (a AgeProfile) WithSink(sink audit.Sink) AgeProfile {
	a.sink = audit.OrDiscard(sink)
	return a
}

// AgeAt returns whole years since birth.
func (a AgeProfile) AgeAt(date generic.TimePoint) int {
	years := date.Year() - a.BirthDate.Year()
	if date.Month() < a.BirthDate.Month() ||
		(date.Month() == a.BirthDate.Month() && date.Day() < a.BirthDate.Day()) {
		years--
	}
	return years
}

// IsWithin67YearLimit reports date ≤ 67th birthday.
func (a AgeProfile) IsWithin67YearLimit(date generic.TimePoint) bool {
	ok := date.BeforeOrEqual(a.Age67Date)
	a.report(audit.StatuteOver67, map[string]any{
		"date":       date.String(),
		"birth_date": a.BirthDate.String(),
		"age_67":     a.Age67Date.String(),
	}, map[string]any{"within_67_year_limit": ok})
	return ok
}

// IsWithin70YearLimit reports date ≤ last payable weekday before turning 70.
func (a AgeProfile) IsWithin70YearLimit(date generic.TimePoint) bool {
	ok := date.BeforeOrEqual(a.LastPayableDay)
	a.report(audit.StatuteAge70, map[string]any{
		"date":             date.String(),
		"birth_date":       a.BirthDate.String(),
		"last_payable_day": a.LastPayableDay.String(),
	}, map[string]any{"within_70_year_limit": ok})
	return ok
}

// HasLostEntitlementAtAge70 reports date ≥ the exact 70th birthday.
func (a AgeProfile) HasLostEntitlementAtAge70(date generic.TimePoint) bool {
	lost := date.AfterOrEqual(a.Age70Date)
	a.report(audit.StatuteAge70, map[string]any{
		"date":       date.String(),
		"birth_date": a.BirthDate.String(),
		"age_70":     a.Age70Date.String(),
	}, map[string]any{"lost_entitlement": lost})
	return lost
}

// =============================================================================
// MINIMUM INCOME
// =============================================================================

var (
	halfG   = generic.MustMoney("0.5")
	doubleG = generic.MoneyFromInt(2)
)

// MinimumIncomeThreshold is 2G strictly after the 67th birthday and 0.5G up
// to and including it.
func (a AgeProfile) MinimumIncomeThreshold(date generic.TimePoint, g generic.Money) generic.Money {
	over67 := date.After(a.Age67Date)
	threshold := g.Mul(halfG)
	statute := audit.StatuteMinimumIncome
	if over67 {
		threshold = g.Mul(doubleG)
		statute = audit.StatuteOver67
	}
	a.report(statute, map[string]any{
		"date":        date.String(),
		"age_67":      a.Age67Date.String(),
		"base_amount": g.String(),
	}, map[string]any{"minimum_income": threshold.String(), "over_67": over67})
	return threshold
}

// MeetsMinimumIncome reports annualIncome ≥ MinimumIncomeThreshold.
func (a AgeProfile) MeetsMinimumIncome(date generic.TimePoint, annualIncome, g generic.Money) bool {
	threshold := a.MinimumIncomeThreshold(date, g)
	ok := annualIncome.GreaterThanOrEqual(threshold)
	a.report(audit.StatuteMinimumIncome, map[string]any{
		"date":           date.String(),
		"annual_income":  annualIncome.String(),
		"minimum_income": threshold.String(),
	}, map[string]any{"meets_minimum_income": ok})
	return ok
}

func (a AgeProfile) report(statute audit.Statute, input, output map[string]any) {
	if a.sink == nil {
		return
	}
	a.sink.Record(audit.Record{Statute: statute, Input: input, Output: output, Context: a.context})
}

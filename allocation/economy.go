/*
Package allocation implements the money side of a benefit day.

PURPOSE:
  Each graded day carries an EconomicState that progresses through a fixed
  lifecycle. Once income is attached the state can be paid: the payable
  amount for the day is split between a refund to the payer (employer) and
  a direct personal payout. When the person is sick in several employment
  relationships on the same day, Settle splits one shared, capped pool
  across them.

LIFECYCLE:
  GradeOnly ──AttachIncome──▶ IncomeAttached ──Pay──▶ Paid
                                    │
                                    └──Lock──▶ Locked ──Pay──▶ LockedPaid

  A locked state is a rejected day: it keeps its income for reporting but
  always pays zero. Every other transition is a contract violation and
  returns a *generic.ContractError.

ROUNDING:
  Whole currency units, half up, only at the final step:
    total    = round(coverageBase × grade%)
    employer = min(round(refund × grade%), total)
    personal = max(total − employer, 0)

SEE ALSO:
  - settle.go: multi-relationship settlement under the shared cap
  - payment/builder.go: the only production caller
*/
package allocation

import (
	"github.com/shopspring/decimal"

	"github.com/warp/sickpay-engine/generic"
)

// =============================================================================
// PHASE
// =============================================================================

type Phase int

const (
	PhaseGradeOnly Phase = iota
	PhaseIncomeAttached
	PhasePaid
	PhaseLocked
	PhaseLockedPaid
)

func (p Phase) String() string {
	switch p {
	case PhaseGradeOnly:
		return "grade_only"
	case PhaseIncomeAttached:
		return "income_attached"
	case PhasePaid:
		return "paid"
	case PhaseLocked:
		return "locked"
	case PhaseLockedPaid:
		return "locked_paid"
	}
	return "unknown"
}

// IsPaid reports whether payouts are final.
func (p Phase) IsPaid() bool { return p == PhasePaid || p == PhaseLockedPaid }

// =============================================================================
// INCOME
// =============================================================================

// Income is what the income history says about one relationship on one day.
type Income struct {
	// Daily income before any cap.
	Daily generic.Money
	// RefundRequest is the daily amount the employer asks to be refunded.
	// Nil means no refund is requested and everything goes to the person.
	RefundRequest *generic.Money
}

// NewIncome is a convenience for an income with a refund request.
func NewIncome(daily, refund generic.Money) Income {
	return Income{Daily: daily, RefundRequest: &refund}
}

func (i Income) refund() generic.Money {
	if i.RefundRequest == nil {
		return decimal.Zero
	}
	return *i.RefundRequest
}

// =============================================================================
// ECONOMIC STATE
// =============================================================================

// EconomicState is the per-day money value. It is a value type: every
// transition returns a new state and leaves the receiver untouched.
type EconomicState struct {
	Phase Phase

	// Grade is the sickness degree in percent (0-100) for this relationship.
	Grade decimal.Decimal
	// TotalGrade is the income-weighted degree across all relationships
	// sick on the same day. Equal to Grade until Settle runs.
	TotalGrade decimal.Decimal

	DailyIncome   generic.Money
	CoverageBase  generic.Money
	RefundRequest generic.Money
	CapApplied    bool

	EmployerPayout generic.Money
	PersonalPayout generic.Money
}

// NewEconomicState starts the lifecycle with a grade in percent.
func NewEconomicState(grade decimal.Decimal) EconomicState {
	return EconomicState{
		Phase:          PhaseGradeOnly,
		Grade:          grade,
		TotalGrade:     grade,
		DailyIncome:    decimal.Zero,
		CoverageBase:   decimal.Zero,
		RefundRequest:  decimal.Zero,
		EmployerPayout: decimal.Zero,
		PersonalPayout: decimal.Zero,
	}
}

// FullGrade is a 100% sick state.
func FullGrade() EconomicState { return NewEconomicState(generic.Hundred) }

// AttachIncome records the day's income. The coverage base is the income
// limited to dailyCap; a zero or negative cap means uncapped.
func (s EconomicState) AttachIncome(income Income, dailyCap generic.Money) (EconomicState, error) {
	if s.Phase != PhaseGradeOnly {
		return s, violation("attach_income", s.Phase, generic.ErrIncomeAlreadyAttached)
	}
	base := income.Daily
	if dailyCap.IsPositive() {
		base = generic.MinMoney(base, dailyCap)
	}
	s.Phase = PhaseIncomeAttached
	s.DailyIncome = income.Daily
	s.CoverageBase = base
	s.RefundRequest = income.refund()
	return s, nil
}

// Pay computes the unconstrained payout for this day.
func (s EconomicState) Pay() (EconomicState, error) {
	switch s.Phase {
	case PhaseGradeOnly:
		return s, violation("pay", s.Phase, generic.ErrIncomeNotAttached)
	case PhasePaid, PhaseLockedPaid:
		return s, violation("pay", s.Phase, generic.ErrAlreadyPaid)
	case PhaseLocked:
		s.Phase = PhaseLockedPaid
		s.EmployerPayout = decimal.Zero
		s.PersonalPayout = decimal.Zero
		return s, nil
	}
	_, employer, personal := s.split()
	s.Phase = PhasePaid
	s.EmployerPayout = employer
	s.PersonalPayout = personal
	return s, nil
}

// Lock marks the day as rejected. Only an income-carrying, unpaid state can
// be locked; locking twice is a no-op.
func (s EconomicState) Lock() (EconomicState, error) {
	switch s.Phase {
	case PhaseGradeOnly:
		return s, violation("lock", s.Phase, generic.ErrIncomeNotAttached)
	case PhasePaid:
		return s, violation("lock", s.Phase, generic.ErrLockAfterPayout)
	case PhaseLockedPaid:
		return s, violation("lock", s.Phase, generic.ErrAlreadyPaid)
	case PhaseLocked:
		return s, nil
	}
	s.Phase = PhaseLocked
	return s, nil
}

// Total is employer + personal payout.
func (s EconomicState) Total() generic.Money {
	return s.EmployerPayout.Add(s.PersonalPayout)
}

// IsLocked reports whether the state was rejected.
func (s EconomicState) IsLocked() bool {
	return s.Phase == PhaseLocked || s.Phase == PhaseLockedPaid
}

// split applies the single-day formula and returns rounded amounts.
func (s EconomicState) split() (total, employer, personal generic.Money) {
	total = generic.RoundHalfUp(s.CoverageBase.Mul(s.Grade).Div(generic.Hundred))
	employer = generic.MinMoney(generic.RoundHalfUp(s.RefundRequest.Mul(s.Grade).Div(generic.Hundred)), total)
	personal = generic.MaxMoney(total.Sub(employer), decimal.Zero)
	return total, employer, personal
}

func violation(op string, phase Phase, err error) error {
	return &generic.ContractError{Operation: op, Phase: phase.String(), Err: err}
}

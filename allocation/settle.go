package allocation

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/sickpay-engine/generic"
)

// =============================================================================
// SETTLEMENT - One day, several relationships, one shared cap
// =============================================================================

// Settlement is the result of settling one day across relationships.
type Settlement struct {
	// States are the paid states, in the order they were given.
	States []EconomicState

	// Pool is the aggregate payable amount for the day.
	Pool          generic.Money
	EmployerTotal generic.Money
	PersonalTotal generic.Money

	// TotalGrade is the income-weighted degree across relationships.
	TotalGrade decimal.Decimal
	CapApplied bool
}

// Settle pays every state for the same day so that the sum of all payouts
// never exceeds the shared daily cap.
//
// Algorithm:
//  1. Pay each relationship unconstrained and compute the income-weighted
//     blended grade.
//  2. If summed daily income exceeds dailyCap the pool is
//     round(dailyCap × blendedGrade), otherwise the sum of unconstrained totals.
//  3. Employer payouts are scaled by pool / Σtotals, floored, and the missing
//     whole units go one by one to the largest fractional remainders (ties
//     keep input order).
//  4. The same distribution runs for personal payouts over
//     pool − employer share, with unconstrained personal payouts as base.
//
// Inputs must be IncomeAttached or Locked. Locked states settle to LockedPaid
// with zero payouts and take no part in the pool.
func Settle(states []EconomicState, dailyCap generic.Money) (Settlement, error) {
	for _, s := range states {
		switch s.Phase {
		case PhaseIncomeAttached, PhaseLocked:
		case PhaseGradeOnly:
			return Settlement{}, violation("settle", s.Phase, generic.ErrIncomeNotAttached)
		default:
			return Settlement{}, violation("settle", s.Phase, generic.ErrAlreadyPaid)
		}
	}

	var (
		active    []int
		totals    []generic.Money
		employers []generic.Money
		personals []generic.Money
		sumIncome = decimal.Zero
		weighted  = decimal.Zero
		sumGrades = decimal.Zero
		sumTotals = decimal.Zero
		sumEmp    = decimal.Zero
		sumPers   = decimal.Zero
	)
	for i, s := range states {
		if s.IsLocked() {
			continue
		}
		total, emp, pers := s.split()
		active = append(active, i)
		totals = append(totals, total)
		employers = append(employers, emp)
		personals = append(personals, pers)

		sumIncome = sumIncome.Add(s.DailyIncome)
		weighted = weighted.Add(s.DailyIncome.Mul(s.Grade))
		sumGrades = sumGrades.Add(s.Grade)
		sumTotals = sumTotals.Add(total)
		sumEmp = sumEmp.Add(emp)
		sumPers = sumPers.Add(pers)
	}

	blended := decimal.Zero
	switch {
	case sumIncome.IsPositive():
		blended = weighted.Div(sumIncome)
	case len(active) > 0:
		blended = sumGrades.Div(decimal.NewFromInt(int64(len(active))))
	}

	capApplied := dailyCap.IsPositive() && sumIncome.GreaterThan(dailyCap)
	pool := sumTotals
	if capApplied {
		pool = generic.RoundHalfUp(dailyCap.Mul(weighted).Div(sumIncome.Mul(generic.Hundred)))
	}

	employerShares := make([]generic.Money, len(active))
	personalShares := make([]generic.Money, len(active))
	employerTotal := decimal.Zero
	if sumTotals.IsPositive() {
		employerTarget := roundedQuotient(sumEmp.Mul(pool), sumTotals)
		employerTarget = generic.MinMoney(employerTarget, pool)
		employerShares = distribute(employers, pool, sumTotals, employerTarget)
		employerTotal = employerTarget
	} else {
		fillZero(employerShares)
	}

	personalPool := pool.Sub(employerTotal)
	if sumPers.IsPositive() && personalPool.IsPositive() {
		personalShares = distribute(personals, personalPool, sumPers, personalPool)
	} else {
		fillZero(personalShares)
	}

	out := make([]EconomicState, len(states))
	copy(out, states)
	for i := range out {
		out[i].TotalGrade = blended
		out[i].CapApplied = capApplied
		if out[i].IsLocked() {
			out[i].Phase = PhaseLockedPaid
			out[i].EmployerPayout = decimal.Zero
			out[i].PersonalPayout = decimal.Zero
		}
	}
	personalTotal := decimal.Zero
	for k, idx := range active {
		out[idx].Phase = PhasePaid
		out[idx].EmployerPayout = employerShares[k]
		out[idx].PersonalPayout = personalShares[k]
		personalTotal = personalTotal.Add(personalShares[k])
	}

	return Settlement{
		States:        out,
		Pool:          pool,
		EmployerTotal: employerTotal,
		PersonalTotal: personalTotal,
		TotalGrade:    blended,
		CapApplied:    capApplied,
	}, nil
}

// distribute scales each base by factor/denom, floors, and hands the units
// missing to reach target to the largest remainders first. All inputs are
// whole units, so QuoRem keeps the remainders exact and comparable.
func distribute(bases []generic.Money, factor, denom, target generic.Money) []generic.Money {
	type share struct {
		index     int
		quotient  decimal.Decimal
		remainder decimal.Decimal
	}
	shares := make([]share, len(bases))
	floorSum := decimal.Zero
	for i, base := range bases {
		q, r := base.Mul(factor).QuoRem(denom, 0)
		shares[i] = share{index: i, quotient: q, remainder: r}
		floorSum = floorSum.Add(q)
	}

	out := make([]generic.Money, len(bases))
	for i, s := range shares {
		out[i] = s.quotient
	}

	missing := target.Sub(floorSum).IntPart()
	if missing <= 0 || len(shares) == 0 {
		return out
	}

	sort.SliceStable(shares, func(a, b int) bool {
		return shares[a].remainder.GreaterThan(shares[b].remainder)
	})
	one := decimal.NewFromInt(1)
	for k := int64(0); k < missing; k++ {
		idx := shares[k%int64(len(shares))].index
		out[idx] = out[idx].Add(one)
	}
	return out
}

// roundedQuotient is round-half-up(num/denom) for whole-unit inputs.
func roundedQuotient(num, denom generic.Money) generic.Money {
	q, r := num.QuoRem(denom, 0)
	if r.Mul(decimal.NewFromInt(2)).GreaterThanOrEqual(denom) {
		return q.Add(decimal.NewFromInt(1))
	}
	return q
}

func fillZero(m []generic.Money) {
	for i := range m {
		m[i] = decimal.Zero
	}
}

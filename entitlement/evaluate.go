package entitlement

import (
	"sort"

	"github.com/warp/sickpay-engine/generic"
)

// =============================================================================
// RESULT
// =============================================================================

// RejectedRange is a run of rejected dates sharing a reason. Runs continue
// across weekends.
type RejectedRange struct {
	Reason Reason
	Period generic.Period
}

// Result answers an evaluation window.
type Result struct {
	Window generic.Period
	State  State
	Reason Reason

	// ExhaustionDate is the day the pool ran out, or the projected day it
	// will if every following weekday is payable. Never later than the last
	// payable day before turning 70.
	ExhaustionDate generic.TimePoint
	ConsumedDays   int
	RemainingDays  int

	// Rejections inside the window, ordered by reason then date.
	Rejections []RejectedRange

	// Unaffected is true when nothing inside the window was rejected, so
	// downstream payment work needs no locking pass.
	Unaffected bool
}

// Evaluate reads the counters for window.End: the exact snapshot when that
// day was walked, otherwise the latest snapshot before it, projected forward.
func (m *Machine) Evaluate(window generic.Period) Result {
	ctx := m.contextAt(window.End)
	rejections := m.rejectionsIn(window)

	return Result{
		Window:         window,
		State:          ctx.State,
		Reason:         ctx.Reason,
		ExhaustionDate: m.projectExhaustion(ctx, window),
		ConsumedDays:   ctx.ConsumedDays,
		RemainingDays:  m.remaining(ctx, window.End),
		Rejections:     rejections,
		Unaffected:     len(rejections) == 0,
	}
}

func (m *Machine) contextAt(date generic.TimePoint) Context {
	if c, ok := m.snapshots[date]; ok {
		return c.clone()
	}
	i := sort.Search(len(m.order), func(i int) bool { return m.order[i].After(date) })
	if i == 0 {
		return Context{}
	}
	return m.snapshots[m.order[i-1]].clone()
}

// =============================================================================
// PROJECTION
// =============================================================================

func (m *Machine) remaining(ctx Context, date generic.TimePoint) int {
	switch ctx.State {
	case StateExhausted, StateRequalifiedPendingConfirmation, StateTooOld:
		return 0
	}
	left := StandardPool - ctx.ConsumedDays
	if date.After(m.profile.Age67Date) {
		left = min(left, ExtendedPool-ctx.ConsumedOver67)
	}
	return max(left, 0)
}

// projectExhaustion pays every weekday after the snapshot until a pool runs
// out, letting paid dates fall out of the 3-year lookback as it goes.
func (m *Machine) projectExhaustion(ctx Context, window generic.Period) generic.TimePoint {
	switch ctx.State {
	case StateExhausted, StateRequalifiedPendingConfirmation:
		return ctx.ExhaustionDate
	case StateTooOld:
		return m.profile.LastPayableDay
	}

	paid := ctx.PaidDates
	over67 := ctx.ConsumedOver67
	date := ctx.EvaluatedThrough
	if date.IsZero() {
		date = window.Start.AddDays(-1)
	}

	for {
		date = date.NextWorkday()
		if date.After(m.profile.LastPayableDay) {
			return m.profile.LastPayableDay
		}

		floor := date.AddYears(-LookbackYears)
		for len(paid) > 0 && paid[0].Before(floor) {
			if paid[0].After(m.profile.Age67Date) {
				over67--
			}
			paid = paid[1:]
		}

		paid = append(paid, date)
		if date.After(m.profile.Age67Date) {
			over67++
		}
		if len(paid) >= StandardPool || over67 >= ExtendedPool {
			return date
		}
	}
}

// =============================================================================
// REJECTION RANGES
// =============================================================================

func (m *Machine) rejectionsIn(window generic.Period) []RejectedRange {
	var inside []Rejection
	for _, r := range m.rejections {
		if window.Contains(r.Date) {
			inside = append(inside, r)
		}
	}
	return GroupRejections(inside)
}

// GroupRejections collapses rejections into ranges per reason, ordered by
// reason then date. Input must be sorted by date.
func GroupRejections(rejections []Rejection) []RejectedRange {
	byReason := make(map[Reason][]generic.TimePoint)
	for _, r := range rejections {
		byReason[r.Reason] = append(byReason[r.Reason], r.Date)
	}

	reasons := make([]Reason, 0, len(byReason))
	for reason := range byReason {
		reasons = append(reasons, reason)
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })

	var out []RejectedRange
	for _, reason := range reasons {
		for _, p := range groupAcrossWeekends(byReason[reason]) {
			out = append(out, RejectedRange{Reason: reason, Period: p})
		}
	}
	return out
}

// groupAcrossWeekends is generic.GroupDays, except that a run also continues
// when only a weekend separates two dates.
func groupAcrossWeekends(dates []generic.TimePoint) []generic.Period {
	var out []generic.Period
	for _, d := range dates {
		if n := len(out); n > 0 && !d.After(out[n-1].End.NextWorkday()) {
			out[n-1].End = d
			continue
		}
		out = append(out, generic.SingleDay(d))
	}
	return out
}

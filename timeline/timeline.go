package timeline

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/sickpay-engine/generic"
)

// =============================================================================
// TIMELINE - Immutable, contiguous, one Day per date
// =============================================================================

// Timeline is an ordered run of days over a contiguous date range. The zero
// value is the empty timeline. Timelines are never modified in place; every
// operation returns a new one.
type Timeline struct {
	days []Day
}

// Empty returns the timeline without days.
func Empty() Timeline { return Timeline{} }

// New builds a timeline from arbitrary days. Days are sorted; dates missing
// between the first and last day become implicit gaps. Two days on the same
// date are a conflict.
func New(days ...Day) (Timeline, error) {
	if len(days) == 0 {
		return Empty(), nil
	}
	sorted := make([]Day, len(days))
	copy(sorted, days)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	out := make([]Day, 0, len(sorted))
	for _, d := range sorted {
		if n := len(out); n > 0 {
			last := out[n-1].Date
			if d.Date.Equal(last) {
				return Empty(), fmt.Errorf("duplicate day %s: %w", d.Date, generic.ErrConflictingDays)
			}
			for gap := last.AddDays(1); gap.Before(d.Date); gap = gap.AddDays(1) {
				out = append(out, ImplicitGapAt(gap))
			}
		}
		out = append(out, d)
	}
	return Timeline{days: out}, nil
}

// FromPeriod fills every date of p with fn(date).
func FromPeriod(p generic.Period, fn func(generic.TimePoint) Day) Timeline {
	days := make([]Day, 0, p.Length())
	for _, date := range p.Days() {
		days = append(days, fn(date))
	}
	return Timeline{days: days}
}

// =============================================================================
// CONSTRUCTION HELPERS
// =============================================================================

// Sick classifies weekdays as KindSick and weekends as KindSickWeekend.
func Sick(p generic.Period, grade decimal.Decimal, src Source) Timeline {
	return FromPeriod(p, func(d generic.TimePoint) Day { return SickDayAt(d, grade, src) })
}

// EmployerPaid covers the employer-paid waiting period.
func EmployerPaid(p generic.Period, grade decimal.Decimal, src Source) Timeline {
	return FromPeriod(p, func(d generic.TimePoint) Day { return EmployerPaidDayAt(d, grade, src) })
}

// Work classifies weekdays as KindWork and weekends as KindWeekendOff.
func Work(p generic.Period, src Source) Timeline {
	return FromPeriod(p, func(d generic.TimePoint) Day { return WorkDayAt(d, src) })
}

func Vacation(p generic.Period, src Source) Timeline     { return uniform(p, KindVacation, src) }
func Leave(p generic.Period, src Source) Timeline        { return uniform(p, KindLeave, src) }
func Foreign(p generic.Period, src Source) Timeline      { return uniform(p, KindForeignResidency, src) }
func Undetermined(p generic.Period, src Source) Timeline { return uniform(p, KindUndetermined, src) }
func Unknown(p generic.Period, src Source) Timeline      { return uniform(p, KindUnknown, src) }

func uniform(p generic.Period, kind DayKind, src Source) Timeline {
	return FromPeriod(p, func(d generic.TimePoint) Day { return NewDay(kind, d, src) })
}

// =============================================================================
// QUERIES
// =============================================================================

func (t Timeline) IsEmpty() bool { return len(t.days) == 0 }
func (t Timeline) Len() int      { return len(t.days) }

// Period returns the covered range. Undefined for an empty timeline.
func (t Timeline) Period() generic.Period {
	if t.IsEmpty() {
		return generic.Period{}
	}
	return generic.Period{Start: t.days[0].Date, End: t.days[len(t.days)-1].Date}
}

// Days returns a copy of the days in date order.
func (t Timeline) Days() []Day {
	out := make([]Day, len(t.days))
	copy(out, t.days)
	return out
}

// At returns the day on date.
func (t Timeline) At(date generic.TimePoint) (Day, bool) {
	if t.IsEmpty() || !t.Period().Contains(date) {
		return Day{}, false
	}
	return t.days[generic.DaysBetween(t.days[0].Date, date)], true
}

// Subset returns the days inside p.
func (t Timeline) Subset(p generic.Period) Timeline {
	if t.IsEmpty() {
		return t
	}
	overlap, ok := t.Period().Intersect(p)
	if !ok {
		return Empty()
	}
	from := generic.DaysBetween(t.days[0].Date, overlap.Start)
	to := generic.DaysBetween(t.days[0].Date, overlap.End)
	out := make([]Day, to-from+1)
	copy(out, t.days[from:to+1])
	return Timeline{days: out}
}

// Equal compares day classifications over the whole range.
func (t Timeline) Equal(other Timeline) bool {
	if len(t.days) != len(other.days) {
		return false
	}
	for i := range t.days {
		if !t.days[i].Equal(other.days[i]) {
			return false
		}
	}
	return true
}

// CountKind returns how many days have the given kind.
func (t Timeline) CountKind(kind DayKind) int {
	n := 0
	for _, d := range t.days {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

// =============================================================================
// SICKNESS SPELL
// =============================================================================

// FirstDayOfSpell finds the first day of the current sickness spell: skip
// trailing work and gap days, then walk backward while days are sickness or
// leave-type. Leave-type days keep the spell running but never start it.
func (t Timeline) FirstDayOfSpell() (generic.TimePoint, bool) {
	i := len(t.days) - 1
	for i >= 0 && !t.days[i].Kind.IsSickness() {
		if !t.days[i].Kind.IsWorkOrGap() && !t.days[i].Kind.IsLeaveType() {
			return generic.TimePoint{}, false
		}
		i--
	}
	if i < 0 {
		return generic.TimePoint{}, false
	}

	first := t.days[i].Date
	for ; i >= 0; i-- {
		kind := t.days[i].Kind
		switch {
		case kind.IsSickness():
			first = t.days[i].Date
		case kind.IsLeaveType():
		default:
			return first, true
		}
	}
	return first, true
}

// =============================================================================
// VALIDATION
// =============================================================================

// Violation is a day kind that must not survive into a merged timeline.
type Violation struct {
	Date    generic.TimePoint
	Kind    DayKind
	Message string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Date, v.Message)
}

// Validate reports leftover undetermined days and unresolved conflicts.
func (t Timeline) Validate() []Violation {
	var out []Violation
	for _, d := range t.days {
		switch d.Kind {
		case KindUndetermined:
			out = append(out, Violation{Date: d.Date, Kind: d.Kind, Message: "undetermined day after merge"})
		case KindProblem:
			out = append(out, Violation{Date: d.Date, Kind: d.Kind, Message: d.Problem})
		}
	}
	return out
}

// Valid is Validate with no violations.
func (t Timeline) Valid() bool { return len(t.Validate()) == 0 }

// =============================================================================
// RENDERING
// =============================================================================

// String renders one rune per day with a space after each Sunday.
//
//	SSSSSHH SSAAARR
func (t Timeline) String() string {
	var b strings.Builder
	for i, d := range t.days {
		b.WriteRune(d.Kind.symbol())
		if d.Date.Weekday() == time.Sunday && i < len(t.days)-1 {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

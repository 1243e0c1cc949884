/*
Package timeline implements the canonical per-day benefit classification.

PURPOSE:
  Upstream sources (sick notes, benefit applications, employer reports,
  caseworker corrections) each describe a stretch of days. The timeline
  package turns each source into a Timeline and merges them, day by day,
  into one canonical Timeline per employment relationship.

KEY CONCEPTS:
  - Day:       one classified calendar day (closed set of kinds)
  - Source:    provenance of a day (which event kind, arrival order)
  - Timeline:  immutable, contiguous, exactly one Day per date
  - TieBreak:  rule deciding the winner when two sources classify a date
  - GapFiller: what to put on dates neither side covers

DAY KINDS:
  Graded kinds carry an allocation.EconomicState with the sickness grade:
    KindSick, KindSickWeekend, KindEmployerPaid, KindEmployerPaidWeekend
  Ungraded kinds:
    KindWork, KindWeekendOff, KindVacation, KindForeignResidency, KindLeave,
    KindUndetermined, KindUnknown, KindImplicitGap, KindProblem

  KindUndetermined and KindProblem are not allowed in a finished timeline;
  Validate reports them.

SEE ALSO:
  - timeline.go: Timeline construction and queries
  - merge.go: Merge and Join
  - tiebreak.go: named tie-break strategies
*/
package timeline

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/sickpay-engine/allocation"
	"github.com/warp/sickpay-engine/generic"
)

// =============================================================================
// DAY KIND
// =============================================================================

type DayKind int

const (
	KindSick DayKind = iota
	KindSickWeekend
	KindWork
	KindWeekendOff
	KindEmployerPaid
	KindEmployerPaidWeekend
	KindVacation
	KindForeignResidency
	KindLeave
	KindUndetermined
	KindUnknown
	KindImplicitGap
	KindProblem
)

var kindNames = map[DayKind]string{
	KindSick:                "sick",
	KindSickWeekend:         "sick_weekend",
	KindWork:                "work",
	KindWeekendOff:          "weekend_off",
	KindEmployerPaid:        "employer_paid",
	KindEmployerPaidWeekend: "employer_paid_weekend",
	KindVacation:            "vacation",
	KindForeignResidency:    "foreign_residency",
	KindLeave:               "leave",
	KindUndetermined:        "undetermined",
	KindUnknown:             "unknown",
	KindImplicitGap:         "implicit_gap",
	KindProblem:             "problem",
}

func (k DayKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("DayKind(%d)", int(k))
}

// ParseDayKind is the inverse of String.
func ParseDayKind(s string) (DayKind, bool) {
	for k, name := range kindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// IsGraded reports whether days of this kind carry a sickness grade.
func (k DayKind) IsGraded() bool {
	switch k {
	case KindSick, KindSickWeekend, KindEmployerPaid, KindEmployerPaidWeekend:
		return true
	}
	return false
}

// IsSickness covers every kind that keeps a sickness spell running.
func (k DayKind) IsSickness() bool { return k.IsGraded() }

// IsLeaveType covers absences that neither start nor break a spell.
func (k DayKind) IsLeaveType() bool {
	return k == KindVacation || k == KindLeave
}

// IsWorkOrGap covers days on which the person is not absent at all.
func (k DayKind) IsWorkOrGap() bool {
	switch k {
	case KindWork, KindWeekendOff, KindImplicitGap, KindUnknown:
		return true
	}
	return false
}

func (k DayKind) symbol() rune {
	switch k {
	case KindSick:
		return 'S'
	case KindSickWeekend:
		return 'H'
	case KindWork:
		return 'A'
	case KindWeekendOff:
		return 'R'
	case KindEmployerPaid:
		return 'P'
	case KindEmployerPaidWeekend:
		return 'p'
	case KindVacation:
		return 'V'
	case KindForeignResidency:
		return 'U'
	case KindLeave:
		return 'L'
	case KindUndetermined:
		return '?'
	case KindUnknown:
		return 'K'
	case KindImplicitGap:
		return '_'
	case KindProblem:
		return 'X'
	}
	return '#'
}

// =============================================================================
// SOURCE - Provenance of a day
// =============================================================================

type SourceKind string

const (
	SourceSickNote       SourceKind = "sick_note"
	SourceApplication    SourceKind = "application"
	SourceEmployerReport SourceKind = "employer_report"
	SourceCaseworker     SourceKind = "caseworker"
	SourceSystem         SourceKind = "system" // synthesized by the engine
)

// Source identifies the upstream event a day came from. Seq is the arrival
// order of that event.
type Source struct {
	Kind SourceKind
	Seq  int
}

func (s Source) String() string {
	return fmt.Sprintf("%s#%d", s.Kind, s.Seq)
}

// =============================================================================
// DAY
// =============================================================================

// Day is one classified calendar day.
type Day struct {
	Kind   DayKind
	Date   generic.TimePoint
	Source Source

	// Economy is set for graded kinds only.
	Economy allocation.EconomicState

	// Problem describes the conflict for KindProblem.
	Problem string
}

// NewDay builds an ungraded day.
func NewDay(kind DayKind, date generic.TimePoint, src Source) Day {
	return Day{Kind: kind, Date: date, Source: src}
}

// NewGradedDay builds a graded day with a fresh economic state.
func NewGradedDay(kind DayKind, date generic.TimePoint, grade decimal.Decimal, src Source) Day {
	return Day{Kind: kind, Date: date, Source: src, Economy: allocation.NewEconomicState(grade)}
}

// SickDayAt picks KindSick or KindSickWeekend from the weekday.
func SickDayAt(date generic.TimePoint, grade decimal.Decimal, src Source) Day {
	if date.IsWeekend() {
		return NewGradedDay(KindSickWeekend, date, grade, src)
	}
	return NewGradedDay(KindSick, date, grade, src)
}

// EmployerPaidDayAt picks KindEmployerPaid or KindEmployerPaidWeekend.
func EmployerPaidDayAt(date generic.TimePoint, grade decimal.Decimal, src Source) Day {
	if date.IsWeekend() {
		return NewGradedDay(KindEmployerPaidWeekend, date, grade, src)
	}
	return NewGradedDay(KindEmployerPaid, date, grade, src)
}

// WorkDayAt picks KindWork or KindWeekendOff.
func WorkDayAt(date generic.TimePoint, src Source) Day {
	if date.IsWeekend() {
		return NewDay(KindWeekendOff, date, src)
	}
	return NewDay(KindWork, date, src)
}

// ProblemDayAt records two sources that could not be reconciled.
func ProblemDayAt(date generic.TimePoint, left, right Day) Day {
	return Day{
		Kind:    KindProblem,
		Date:    date,
		Source:  right.Source,
		Problem: fmt.Sprintf("%s (%s) conflicts with %s (%s)", left.Kind, left.Source, right.Kind, right.Source),
	}
}

// ImplicitGapAt is the default gap filler day.
func ImplicitGapAt(date generic.TimePoint) Day {
	return NewDay(KindImplicitGap, date, Source{Kind: SourceSystem})
}

// Grade returns the sickness grade of a graded day, zero otherwise.
func (d Day) Grade() decimal.Decimal {
	if !d.Kind.IsGraded() {
		return decimal.Zero
	}
	return d.Economy.Grade
}

// Equal compares classification, not provenance: two sources agreeing on a
// date produce equal days.
func (d Day) Equal(other Day) bool {
	if d.Kind != other.Kind || !d.Date.Equal(other.Date) {
		return false
	}
	if d.Kind.IsGraded() && !d.Economy.Grade.Equal(other.Economy.Grade) {
		return false
	}
	return d.Problem == other.Problem
}

func (d Day) String() string {
	if d.Kind.IsGraded() {
		return fmt.Sprintf("%s %s %s%% (%s)", d.Date, d.Kind, d.Economy.Grade, d.Source)
	}
	return fmt.Sprintf("%s %s (%s)", d.Date, d.Kind, d.Source)
}

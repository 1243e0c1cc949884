package timeline

import (
	"fmt"

	"github.com/warp/sickpay-engine/generic"
)

// =============================================================================
// TIE-BREAKS - Who wins when two sources classify the same date
// =============================================================================

// TieBreak chooses between two days on the same date. left is the timeline
// being merged into, right the incoming one. Strategies are only invoked when
// the two days differ.
type TieBreak func(left, right Day) (Day, error)

// ConflictError is returned by Default when two sources disagree.
type ConflictError struct {
	Date  generic.TimePoint
	Left  Day
	Right Day
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s: %s vs %s", e.Date, e.Left.Kind, e.Right.Kind)
}

func (e *ConflictError) Unwrap() error {
	return generic.ErrConflictingDays
}

// Default fails on any disagreement.
func Default(left, right Day) (Day, error) {
	return Day{}, &ConflictError{Date: left.Date, Left: left, Right: right}
}

// PreferLatter lets the incoming source win.
func PreferLatter(_, right Day) (Day, error) { return right, nil }

// FillGaps keeps what is already there.
func FillGaps(left, _ Day) (Day, error) { return left, nil }

// NoOverlapAllowed records the disagreement as a KindProblem day.
func NoOverlapAllowed(left, right Day) (Day, error) {
	return ProblemDayAt(left.Date, left, right), nil
}

// ContinuousSicknessPriority ranks sickness above vacation and leave, and
// those above everything else. Equal rank keeps the left day.
func ContinuousSicknessPriority(left, right Day) (Day, error) {
	if sicknessRank(right.Kind) > sicknessRank(left.Kind) {
		return right, nil
	}
	return left, nil
}

func sicknessRank(k DayKind) int {
	switch {
	case k.IsSickness():
		return 3
	case k.IsLeaveType():
		return 2
	}
	return 1
}

// WorkDayWins lets an explicit work or weekend-off day beat any other
// classification, sickness and foreign residency included. Without a work day
// on either side the incoming day wins.
func WorkDayWins(left, right Day) (Day, error) {
	switch {
	case isExplicitWork(left.Kind):
		return left, nil
	case isExplicitWork(right.Kind):
		return right, nil
	}
	return right, nil
}

func isExplicitWork(k DayKind) bool {
	return k == KindWork || k == KindWeekendOff
}

// =============================================================================
// LOOKUP
// =============================================================================

var tieBreaks = map[string]TieBreak{
	"default":                      Default,
	"prefer_latter":                PreferLatter,
	"continuous_sickness_priority": ContinuousSicknessPriority,
	"no_overlap_allowed":           NoOverlapAllowed,
	"fill_gaps":                    FillGaps,
	"work_day_wins":                WorkDayWins,
}

// TieBreakByName resolves the names used in case documents and config.
// An empty name is Default.
func TieBreakByName(name string) (TieBreak, error) {
	if name == "" {
		return Default, nil
	}
	tb, ok := tieBreaks[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, generic.ErrUnknownTieBreak)
	}
	return tb, nil
}

package timeline

import (
	"fmt"

	"github.com/warp/sickpay-engine/generic"
)

// =============================================================================
// GAP FILLERS
// =============================================================================

// GapFiller synthesizes a day for a date covered by neither side of a merge.
type GapFiller func(date generic.TimePoint) Day

// ImplicitGaps is the default filler.
func ImplicitGaps(date generic.TimePoint) Day { return ImplicitGapAt(date) }

// UnknownGaps marks uncovered dates as KindUnknown.
func UnknownGaps(date generic.TimePoint) Day {
	return NewDay(KindUnknown, date, Source{Kind: SourceSystem})
}

// =============================================================================
// MERGE / JOIN
// =============================================================================

// Merge combines two timelines with implicit gap filling.
func (t Timeline) Merge(other Timeline, tb TieBreak) (Timeline, error) {
	return t.MergeWithGaps(other, tb, ImplicitGaps)
}

// MergeWithGaps spans the union of both ranges. Dates on one side keep that
// day, dates on neither side get fill(date), dates on both go through tb.
// An implicit gap day marks the absence of data, so a real day on the other
// side always replaces it without consulting tb.
// t is the left side, other the right side.
func (t Timeline) MergeWithGaps(other Timeline, tb TieBreak, fill GapFiller) (Timeline, error) {
	if tb == nil {
		tb = Default
	}
	if fill == nil {
		fill = ImplicitGaps
	}
	if t.IsEmpty() {
		return Timeline{days: other.Days()}, nil
	}
	if other.IsEmpty() {
		return Timeline{days: t.Days()}, nil
	}

	span := t.Period().Union(other.Period())
	out := make([]Day, 0, span.Length())
	for _, date := range span.Days() {
		left, inLeft := t.At(date)
		right, inRight := other.At(date)
		leftData := inLeft && left.Kind != KindImplicitGap
		rightData := inRight && right.Kind != KindImplicitGap

		switch {
		case leftData && rightData:
			winner, err := resolve(tb, left, right)
			if err != nil {
				return Empty(), err
			}
			out = append(out, winner)
		case leftData:
			out = append(out, left)
		case rightData:
			out = append(out, right)
		case inLeft:
			out = append(out, left)
		case inRight:
			out = append(out, right)
		default:
			out = append(out, fill(date))
		}
	}
	return Timeline{days: out}, nil
}

// Join concatenates sequential timelines that must not overlap.
func (t Timeline) Join(other Timeline) (Timeline, error) {
	if !t.IsEmpty() && !other.IsEmpty() && t.Period().Overlaps(other.Period()) {
		return Empty(), fmt.Errorf("join %s with %s: %w", t.Period(), other.Period(), generic.ErrOverlappingTimelines)
	}
	return t.MergeWithGaps(other, FillGaps, ImplicitGaps)
}

// MergeAll folds timelines left to right with the same tie-break.
func MergeAll(tb TieBreak, timelines ...Timeline) (Timeline, error) {
	out := Empty()
	for _, tl := range timelines {
		merged, err := out.Merge(tl, tb)
		if err != nil {
			return Empty(), err
		}
		out = merged
	}
	return out, nil
}

// resolve applies tb unless both sides already agree, which keeps merging a
// timeline with itself the identity for every strategy.
func resolve(tb TieBreak, left, right Day) (Day, error) {
	if left.Equal(right) {
		return left, nil
	}
	return tb(left, right)
}

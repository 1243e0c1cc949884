package generic

// =============================================================================
// PERIOD - A closed range of calendar days
// =============================================================================

// Period is the closed day range [Start, End]. Timelines, rejected ranges and
// income windows are all expressed as periods.
type Period struct {
	Start TimePoint
	End   TimePoint
}

// NewPeriod returns the period between two days, or ErrInvalidPeriod when
// end is before start.
func NewPeriod(start, end TimePoint) (Period, error) {
	if end.Before(start) {
		return Period{}, ErrInvalidPeriod
	}
	return Period{Start: start, End: end}, nil
}

// SingleDay is the one-day period for t.
func SingleDay(t TimePoint) Period {
	return Period{Start: t, End: t}
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Overlaps reports whether the two periods share at least one day.
func (p Period) Overlaps(other Period) bool {
	return p.Start.BeforeOrEqual(other.End) && other.Start.BeforeOrEqual(p.End)
}

// Union returns the smallest period covering both.
func (p Period) Union(other Period) Period {
	return Period{Start: MinDay(p.Start, other.Start), End: MaxDay(p.End, other.End)}
}

// Intersect returns the shared days of both periods. ok is false when they
// do not overlap.
func (p Period) Intersect(other Period) (Period, bool) {
	if !p.Overlaps(other) {
		return Period{}, false
	}
	return Period{Start: MaxDay(p.Start, other.Start), End: MinDay(p.End, other.End)}, true
}

// Adjacent reports whether other starts on the day after p ends.
func (p Period) Adjacent(other Period) bool {
	return p.End.AddDays(1).Equal(other.Start)
}

// Length is the number of days in the period.
func (p Period) Length() int {
	return DaysBetween(p.Start, p.End) + 1
}

// Days returns all days in the period as a slice of TimePoints.
func (p Period) Days() []TimePoint {
	days := make([]TimePoint, 0, p.Length())
	current := p.Start
	for current.BeforeOrEqual(p.End) {
		days = append(days, current)
		current = current.AddDays(1)
	}
	return days
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// GroupDays collapses sorted days into maximal runs of consecutive dates.
func GroupDays(days []TimePoint) []Period {
	var out []Period
	for _, d := range days {
		if n := len(out); n > 0 && out[n-1].Adjacent(SingleDay(d)) {
			out[n-1].End = d
			continue
		}
		out = append(out, SingleDay(d))
	}
	return out
}

package generic

import (
	"time"
)

// =============================================================================
// TIME POINT - A calendar day (this IS a day-by-day benefit system)
// =============================================================================

// TimePoint is a single calendar day. The wrapped time is always UTC midnight,
// so two TimePoints for the same day compare equal with ==.
type TimePoint struct {
	Time time.Time
}

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DayOf truncates any time to its calendar day.
func DayOf(t time.Time) TimePoint {
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

// ParseDay parses an ISO date (2006-01-02).
func ParseDay(s string) (TimePoint, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return TimePoint{}, err
	}
	return DayOf(t), nil
}

// MustParseDay is ParseDay for fixtures and tests. It panics on bad input.
func MustParseDay(s string) TimePoint {
	tp, err := ParseDay(s)
	if err != nil {
		panic(err)
	}
	return tp
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.Time.Before(other.Time) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.Time.Equal(other.Time) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.Time.After(other.Time) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return !tp.After(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return !tp.Before(other) }

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint  { return DayOf(tp.Time.AddDate(0, 0, n)) }
func (tp TimePoint) AddYears(n int) TimePoint { return DayOf(tp.Time.AddDate(n, 0, 0)) }

// Properties
func (tp TimePoint) Year() int             { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month     { return tp.Time.Month() }
func (tp TimePoint) Day() int              { return tp.Time.Day() }
func (tp TimePoint) Weekday() time.Weekday { return tp.Time.Weekday() }
func (tp TimePoint) IsWeekend() bool {
	wd := tp.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
func (tp TimePoint) IsWorkday() bool { return !tp.IsWeekend() }
func (tp TimePoint) IsZero() bool    { return tp.Time.IsZero() }

func (tp TimePoint) String() string {
	return tp.Time.Format("2006-01-02")
}

// PreviousWorkday returns tp itself when it is a weekday, otherwise the
// Friday before it.
func (tp TimePoint) PreviousWorkday() TimePoint {
	for tp.IsWeekend() {
		tp = tp.AddDays(-1)
	}
	return tp
}

// NextWorkday returns the first weekday strictly after tp.
func (tp TimePoint) NextWorkday() TimePoint {
	next := tp.AddDays(1)
	for next.IsWeekend() {
		next = next.AddDays(1)
	}
	return next
}

// =============================================================================
// TIME UTILITIES
// =============================================================================

func DaysBetween(from, to TimePoint) int { return int(to.Time.Sub(from.Time).Hours() / 24) }

// AddWorkdays moves n weekdays forward from tp. tp itself is not counted.
func AddWorkdays(tp TimePoint, n int) TimePoint {
	for n > 0 {
		tp = tp.NextWorkday()
		n--
	}
	return tp
}

// MinDay and MaxDay return the earlier/later of two days.
func MinDay(a, b TimePoint) TimePoint {
	if a.Before(b) {
		return a
	}
	return b
}

func MaxDay(a, b TimePoint) TimePoint {
	if a.After(b) {
		return a
	}
	return b
}


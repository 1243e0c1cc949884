package entitlement_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/sickpay-engine/audit"
	"github.com/warp/sickpay-engine/eligibility"
	"github.com/warp/sickpay-engine/entitlement"
	"github.com/warp/sickpay-engine/generic"
)

// =============================================================================
// HELPERS
// =============================================================================

func d(s string) generic.TimePoint { return generic.MustParseDay(s) }

func period(from, to string) generic.Period {
	return generic.Period{Start: d(from), End: d(to)}
}

// young is far from both age limits.
var young = eligibility.NewAgeProfile(generic.NewTimePoint(1980, time.March, 3), nil)

// sick returns every calendar day in [from, to]: weekdays payable, weekends
// sickness that does not pay.
func sick(from, to generic.TimePoint) []entitlement.Day {
	var out []entitlement.Day
	for date := from; !date.After(to); date = date.AddDays(1) {
		kind := entitlement.KindPayable
		if date.IsWeekend() {
			kind = entitlement.KindSicknessNonPayable
		}
		out = append(out, entitlement.Day{Date: date, Kind: kind})
	}
	return out
}

func run(from, to generic.TimePoint, kind entitlement.DayKind) []entitlement.Day {
	var out []entitlement.Day
	for date := from; !date.After(to); date = date.AddDays(1) {
		out = append(out, entitlement.Day{Date: date, Kind: kind})
	}
	return out
}

func concat(parts ...[]entitlement.Day) []entitlement.Day {
	var out []entitlement.Day
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// exhausted walks a young person through 248 payable days from Monday
// 2024-01-01 and returns the machine and the exhaustion date.
func exhausted(t *testing.T, sink audit.Sink) (*entitlement.Machine, generic.TimePoint) {
	t.Helper()
	start := d("2024-01-01")
	last := generic.AddWorkdays(start, entitlement.StandardPool-1)
	m := entitlement.NewMachine(young, sink)
	require.NoError(t, m.Walk(sick(start, last)))
	return m, last
}

// =============================================================================
// EXHAUSTION
// =============================================================================

func TestExhaustion_On248thDay(t *testing.T) {
	// GIVEN: 248 payable weekdays from 2024-01-01
	// WHEN:  the 248th day is walked
	// THEN:  the machine is Exhausted that same day and the next payable day
	//        is rejected with the same reason

	sink := audit.NewCollector()
	m, last := exhausted(t, sink)
	assert.Equal(t, d("2024-12-11"), last)

	ctx := m.Context()
	assert.Equal(t, entitlement.StateExhausted, ctx.State)
	assert.Equal(t, entitlement.StandardPoolExhausted, ctx.Reason)
	assert.Equal(t, last, ctx.ExhaustionDate)
	assert.Equal(t, 248, ctx.ConsumedDays)

	before, ok := m.SnapshotAt(last.AddDays(-1))
	require.True(t, ok)
	assert.Equal(t, entitlement.StateActivelySick, before.State)
	assert.Equal(t, 247, before.ConsumedDays)

	next := last.NextWorkday()
	require.NoError(t, m.Walk(sick(last.AddDays(1), next)))

	assert.Equal(t, []entitlement.Rejection{{Date: next, Reason: entitlement.StandardPoolExhausted}}, m.Rejections())

	res := m.Evaluate(generic.Period{Start: d("2024-01-01"), End: next})
	assert.Equal(t, last, res.ExhaustionDate)
	assert.Equal(t, 0, res.RemainingDays)
	assert.False(t, res.Unaffected)
	require.Len(t, res.Rejections, 1)
	assert.Equal(t, generic.SingleDay(next), res.Rejections[0].Period)

	require.Len(t, sink.ByStatute(audit.StatuteMaximumDays), 1)
	assert.Equal(t, last.String(), sink.ByStatute(audit.StatuteMaximumDays)[0].Input["date"])
}

func TestExhaustion_Over67UsesExtendedPool(t *testing.T) {
	// GIVEN: a person whose 67th birthday is 2024-01-01
	// WHEN:  sick from 2024-01-02
	// THEN:  the 60th payable day exhausts the pool with the over-67 reason

	sink := audit.NewCollector()
	profile := eligibility.NewAgeProfile(generic.NewTimePoint(1957, time.January, 1), nil)
	m := entitlement.NewMachine(profile, sink)

	start := d("2024-01-02")
	last := generic.AddWorkdays(start, entitlement.ExtendedPool-1)
	require.NoError(t, m.Walk(sick(start, last.NextWorkday())))

	exhaustedAt, ok := m.SnapshotAt(last)
	require.True(t, ok)
	assert.Equal(t, entitlement.StateExhausted, exhaustedAt.State)
	assert.Equal(t, entitlement.StandardPoolExhaustedOver67, exhaustedAt.Reason)
	assert.Equal(t, 60, exhaustedAt.ConsumedOver67)

	assert.Equal(t, []entitlement.Rejection{
		{Date: last.NextWorkday(), Reason: entitlement.StandardPoolExhaustedOver67},
	}, m.Rejections())

	over67 := sink.ByStatute(audit.StatuteOver67)
	require.Len(t, over67, 2, "the pool choice on the first day, then the exhaustion")
	assert.Equal(t, false, over67[0].Output["within_67_year_limit"])
	assert.Equal(t, "2024-01-02", over67[0].Input["date"])
	assert.Equal(t, true, over67[1].Output["exhausted"])
}

func TestExhaustion_DaysBeforeAge67CountOnlyTowardsStandardPool(t *testing.T) {
	sink := audit.NewCollector()
	profile := eligibility.NewAgeProfile(generic.NewTimePoint(1957, time.January, 12), nil)
	m := entitlement.NewMachine(profile, sink)

	// 2024-01-12 is the 67th birthday: Jan 1..12 are 10 weekdays before or on it.
	require.NoError(t, m.Walk(sick(d("2024-01-01"), d("2024-01-19"))))

	ctx := m.Context()
	assert.Equal(t, 15, ctx.ConsumedDays)
	assert.Equal(t, 5, ctx.ConsumedOver67)

	res := m.Evaluate(period("2024-01-01", "2024-01-19"))
	assert.Equal(t, 55, res.RemainingDays)
	assert.Equal(t, generic.AddWorkdays(d("2024-01-19"), 55), res.ExhaustionDate)

	// The switch to the over-67 pool is recorded once, on the first paid day after the birthday.
	records := sink.ByStatute(audit.StatuteOver67)
	require.Len(t, records, 1)
	assert.Equal(t, "2024-01-15", records[0].Input["date"])
	assert.Equal(t, false, records[0].Output["within_67_year_limit"])
}

// =============================================================================
// QUALIFYING BREAK
// =============================================================================

func TestBreak_182DaysRenews_181DoesNot(t *testing.T) {
	tests := []struct {
		name         string
		breakDays    int
		wantConsumed int
		wantStart    string
	}{
		{"181 days keeps the window", entitlement.QualifyingBreak - 1, 9, "2024-01-01"},
		{"182 days renews the pool", entitlement.QualifyingBreak, 1, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// GIVEN: 8 payable days Mon 2024-01-01 to Wed 2024-01-10
			// WHEN:  a break of tt.breakDays calendar days, then one payable day
			breakStart := d("2024-01-11")
			breakEnd := breakStart.AddDays(tt.breakDays - 1)
			resume := breakEnd.AddDays(1)
			require.True(t, resume.IsWorkday())

			m := entitlement.NewMachine(young, nil)
			require.NoError(t, m.Walk(concat(
				sick(d("2024-01-01"), d("2024-01-10")),
				run(breakStart, breakEnd, entitlement.KindWorkOrOff),
				sick(resume, resume),
			)))

			ctx := m.Context()
			assert.Equal(t, entitlement.StateActivelySick, ctx.State)
			assert.Equal(t, tt.wantConsumed, ctx.ConsumedDays)
			wantStart := resume
			if tt.wantStart != "" {
				wantStart = d(tt.wantStart)
			}
			assert.Equal(t, wantStart, ctx.WindowStart)
		})
	}
}

func TestBreak_LeaveAndRejectedDaysCountAsBreak(t *testing.T) {
	m := entitlement.NewMachine(young, nil)
	require.NoError(t, m.Walk(concat(
		sick(d("2024-01-01"), d("2024-01-05")),
		run(d("2024-01-06"), d("2024-01-10"), entitlement.KindLeave),
		run(d("2024-01-11"), d("2024-01-12"), entitlement.KindRejected),
	)))

	ctx := m.Context()
	assert.Equal(t, entitlement.StateOnBreak, ctx.State)
	assert.Equal(t, 7, ctx.BreakDays)
	assert.Equal(t, 5, ctx.ConsumedDays)
}

func TestBreak_WeekendInsideSicknessIsNotABreak(t *testing.T) {
	m := entitlement.NewMachine(young, nil)
	require.NoError(t, m.Walk(sick(d("2024-01-01"), d("2024-01-14"))))

	ctx := m.Context()
	assert.Equal(t, entitlement.StateActivelySick, ctx.State)
	assert.Equal(t, 0, ctx.BreakDays)
	assert.Equal(t, 10, ctx.ConsumedDays)
}

func TestRequalification_After182DaysWhileExhausted(t *testing.T) {
	// GIVEN: a pool exhausted on 2024-12-11
	// WHEN:  182 calendar days without sickness follow
	// THEN:  the machine waits for confirmation, and a payable day opens a
	//        fresh 248-day pool

	sink := audit.NewCollector()
	m, last := exhausted(t, sink)

	breakStart := last.AddDays(1)
	breakEnd := breakStart.AddDays(entitlement.QualifyingBreak - 1)
	resume := breakEnd.AddDays(1)
	require.True(t, resume.IsWorkday())
	require.NoError(t, m.Walk(run(breakStart, breakEnd, entitlement.KindWorkOrOff)))

	almost, ok := m.SnapshotAt(breakEnd.AddDays(-1))
	require.True(t, ok)
	assert.Equal(t, entitlement.StateExhausted, almost.State)
	assert.Equal(t, entitlement.QualifyingBreak-1, almost.BreakDays)

	pending := m.Context()
	assert.Equal(t, entitlement.StateRequalifiedPendingConfirmation, pending.State)
	assert.Equal(t, entitlement.NewEligibilityAssessmentRequired, pending.Reason)

	require.NoError(t, m.Walk(sick(resume, resume)))

	ctx := m.Context()
	assert.Equal(t, entitlement.StateActivelySick, ctx.State)
	assert.Equal(t, 1, ctx.ConsumedDays)
	assert.Equal(t, resume, ctx.WindowStart)
	assert.True(t, ctx.ExhaustionDate.IsZero())

	res := m.Evaluate(generic.SingleDay(resume))
	assert.Equal(t, 247, res.RemainingDays)
	assert.Equal(t, generic.AddWorkdays(resume, 247), res.ExhaustionDate)
	assert.True(t, res.Unaffected)

	assert.Len(t, sink.ByStatute(audit.StatuteQualifyingBreak), 1)
}

func TestRequalification_181DaysStillRejects(t *testing.T) {
	m, last := exhausted(t, nil)

	breakStart := last.AddDays(1)
	breakEnd := breakStart.AddDays(entitlement.QualifyingBreak - 2)
	resume := breakEnd.AddDays(1)
	require.True(t, resume.IsWorkday())
	require.NoError(t, m.Walk(concat(
		run(breakStart, breakEnd, entitlement.KindWorkOrOff),
		sick(resume, resume),
	)))

	assert.Equal(t, []entitlement.Rejection{{Date: resume, Reason: entitlement.StandardPoolExhausted}}, m.Rejections())
}

func TestRequalification_ContinuedSicknessCountsAsBreak(t *testing.T) {
	// Rejected sick days after exhaustion accrue break like any other day.
	m, last := exhausted(t, nil)

	breakEnd := last.AddDays(entitlement.QualifyingBreak)
	require.NoError(t, m.Walk(sick(last.AddDays(1), breakEnd)))

	assert.Equal(t, entitlement.StateRequalifiedPendingConfirmation, m.Context().State)
}

func TestRequalification_NonPayableSicknessNeedsNewAssessment(t *testing.T) {
	// GIVEN: a requalified person whose next sick day does not pay
	// WHEN:  a payable day follows weeks later
	// THEN:  no fresh pool opens; the day is rejected for a new assessment
	m, last := exhausted(t, nil)

	breakEnd := last.AddDays(entitlement.QualifyingBreak)
	require.NoError(t, m.Walk(run(last.AddDays(1), breakEnd, entitlement.KindWorkOrOff)))
	require.Equal(t, entitlement.StateRequalifiedPendingConfirmation, m.Context().State)

	next := breakEnd.AddDays(1)
	require.NoError(t, m.Walk([]entitlement.Day{{Date: next, Kind: entitlement.KindSicknessNonPayable}}))

	ctx := m.Context()
	assert.Equal(t, entitlement.StateExhausted, ctx.State)
	assert.Equal(t, entitlement.NewEligibilityAssessmentRequired, ctx.Reason)
	assert.Equal(t, 0, ctx.BreakDays)

	later := next.AddDays(39).NextWorkday()
	require.NoError(t, m.Walk(concat(
		run(next.AddDays(1), later.AddDays(-1), entitlement.KindWorkOrOff),
		sick(later, later),
	)))

	assert.Equal(t, entitlement.StateExhausted, m.Context().State)
	assert.Equal(t, []entitlement.Rejection{
		{Date: next, Reason: entitlement.NewEligibilityAssessmentRequired},
		{Date: later, Reason: entitlement.NewEligibilityAssessmentRequired},
	}, m.Rejections())
}

func TestRequalification_AfterNewAssessmentNeedsAnotherBreak(t *testing.T) {
	m, last := exhausted(t, nil)

	breakEnd := last.AddDays(entitlement.QualifyingBreak)
	next := breakEnd.AddDays(1)
	secondBreakEnd := next.AddDays(entitlement.QualifyingBreak)
	require.NoError(t, m.Walk(concat(
		run(last.AddDays(1), breakEnd, entitlement.KindWorkOrOff),
		[]entitlement.Day{{Date: next, Kind: entitlement.KindSicknessNonPayable}},
		run(next.AddDays(1), secondBreakEnd, entitlement.KindWorkOrOff),
	)))

	assert.Equal(t, entitlement.StateRequalifiedPendingConfirmation, m.Context().State)
}

// =============================================================================
// AGE 70
// =============================================================================

func TestTooOld_RejectsEverythingAfterLastPayableDay(t *testing.T) {
	// GIVEN: 70th birthday on Monday 2024-06-17, last payable day Friday 14th
	// WHEN:  sick from Monday 10th to Wednesday 19th
	// THEN:  10th..14th are paid, 17th..19th rejected as TooOld

	sink := audit.NewCollector()
	profile := eligibility.NewAgeProfile(generic.NewTimePoint(1954, time.June, 17), nil)
	m := entitlement.NewMachine(profile, sink).WithAuditContext(map[string]string{"case": "c-70"})

	require.NoError(t, m.Walk(sick(d("2024-06-10"), d("2024-06-19"))))

	res := m.Evaluate(period("2024-06-10", "2024-06-19"))
	assert.Equal(t, entitlement.StateTooOld, res.State)
	assert.Equal(t, 5, res.ConsumedDays)
	assert.Equal(t, d("2024-06-14"), res.ExhaustionDate)
	assert.Equal(t, []entitlement.RejectedRange{
		{Reason: entitlement.TooOld, Period: period("2024-06-17", "2024-06-19")},
	}, res.Rejections)

	records := sink.ByStatute(audit.StatuteAge70)
	require.Len(t, records, 1)
	assert.Equal(t, "2024-06-15", records[0].Input["date"])
	assert.Equal(t, "2024-06-14", records[0].Input["last_payable_day"])
	assert.Equal(t, false, records[0].Output["within_70_year_limit"])
	assert.Equal(t, "c-70", records[0].Context["case"])

	// TooOld is terminal, even across a long break.
	require.NoError(t, m.Walk(concat(
		run(d("2024-06-20"), d("2025-01-31"), entitlement.KindWorkOrOff),
		sick(d("2025-02-03"), d("2025-02-03")),
	)))
	assert.Equal(t, entitlement.StateTooOld, m.Context().State)
}

// =============================================================================
// SNAPSHOTS AND RE-EVALUATION
// =============================================================================

func TestEvaluate_UsesLatestEarlierSnapshotAndProjects(t *testing.T) {
	m := entitlement.NewMachine(young, nil)
	require.NoError(t, m.Walk(sick(d("2024-01-01"), d("2024-01-12"))))

	exact := m.Evaluate(period("2024-01-01", "2024-01-05"))
	assert.Equal(t, 5, exact.ConsumedDays)
	assert.Equal(t, 243, exact.RemainingDays)

	later := m.Evaluate(period("2024-01-01", "2024-01-31"))
	assert.Equal(t, entitlement.StateActivelySick, later.State)
	assert.Equal(t, 10, later.ConsumedDays)
	assert.Equal(t, 238, later.RemainingDays)
	assert.Equal(t, generic.AddWorkdays(d("2024-01-12"), 238), later.ExhaustionDate)
	assert.True(t, later.Unaffected)
}

func TestEvaluate_BeforeAnyDayIsInitial(t *testing.T) {
	m := entitlement.NewMachine(young, nil)

	res := m.Evaluate(period("2024-01-01", "2024-01-31"))
	assert.Equal(t, entitlement.StateInitial, res.State)
	assert.Equal(t, 0, res.ConsumedDays)
	assert.Equal(t, entitlement.StandardPool, res.RemainingDays)
	assert.Equal(t, d("2024-12-11"), res.ExhaustionDate)
}

func TestEvaluate_ProjectionStopsAtLastPayableDay(t *testing.T) {
	profile := eligibility.NewAgeProfile(generic.NewTimePoint(1954, time.June, 17), nil)
	m := entitlement.NewMachine(profile, nil)
	require.NoError(t, m.Walk(sick(d("2024-06-03"), d("2024-06-07"))))

	res := m.Evaluate(period("2024-06-03", "2024-06-07"))
	assert.Equal(t, d("2024-06-14"), res.ExhaustionDate)
}

func TestWalk_RewindsToSnapshotBeforeFirstDay(t *testing.T) {
	// GIVEN: two weeks walked as sick
	// WHEN:  the second week is re-walked as work
	// THEN:  the result equals a fresh walk of the corrected sequence

	m := entitlement.NewMachine(young, nil)
	require.NoError(t, m.Walk(sick(d("2024-01-01"), d("2024-01-12"))))
	require.NoError(t, m.Walk(run(d("2024-01-08"), d("2024-01-12"), entitlement.KindWorkOrOff)))

	fresh := entitlement.NewMachine(young, nil)
	require.NoError(t, fresh.Walk(concat(
		sick(d("2024-01-01"), d("2024-01-07")),
		run(d("2024-01-08"), d("2024-01-12"), entitlement.KindWorkOrOff),
	)))

	assert.Equal(t, fresh.Context(), m.Context())
	assert.Equal(t, 5, m.Context().ConsumedDays)
	assert.Equal(t, entitlement.StateOnBreak, m.Context().State)
}

func TestWalk_RewindDropsLaterRejections(t *testing.T) {
	profile := eligibility.NewAgeProfile(generic.NewTimePoint(1954, time.June, 17), nil)
	m := entitlement.NewMachine(profile, nil)
	require.NoError(t, m.Walk(sick(d("2024-06-10"), d("2024-06-19"))))
	require.Len(t, m.Rejections(), 3)

	require.NoError(t, m.Walk(run(d("2024-06-17"), d("2024-06-19"), entitlement.KindWorkOrOff)))
	assert.Empty(t, m.Rejections())
	assert.True(t, m.Evaluate(period("2024-06-10", "2024-06-19")).Unaffected)
}

func TestWalk_GapsAreWalkedAsWorkOrOff(t *testing.T) {
	m := entitlement.NewMachine(young, nil)
	require.NoError(t, m.Walk(sick(d("2024-01-01"), d("2024-01-10"))))

	resume := d("2024-01-10").AddDays(entitlement.QualifyingBreak + 1)
	require.NoError(t, m.Walk(sick(resume, resume)))

	gap, ok := m.SnapshotAt(d("2024-01-11"))
	require.True(t, ok)
	assert.Equal(t, entitlement.StateOnBreak, gap.State)
	assert.Equal(t, 1, m.Context().ConsumedDays, "the gap was a qualifying break")
}

func TestWalk_RejectsUnsortedDays(t *testing.T) {
	m := entitlement.NewMachine(young, nil)

	err := m.Walk([]entitlement.Day{
		{Date: d("2024-01-02"), Kind: entitlement.KindPayable},
		{Date: d("2024-01-02"), Kind: entitlement.KindPayable},
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, generic.ErrUnsortedDays))
	var unsorted *generic.UnsortedDayError
	require.ErrorAs(t, err, &unsorted)
	assert.Equal(t, d("2024-01-02"), unsorted.Got)
	assert.True(t, generic.IsContractViolation(err))
}

// =============================================================================
// PROPERTIES
// =============================================================================

func TestConsumedDays_NeverDecreaseWithoutQualifyingBreak(t *testing.T) {
	// Three weeks sick, ten days off, repeated for a year and a half.
	var days []entitlement.Day
	start := d("2024-01-01")
	for i := 0; i < 20; i++ {
		spellEnd := start.AddDays(20)
		days = append(days, sick(start, spellEnd)...)
		days = append(days, run(spellEnd.AddDays(1), spellEnd.AddDays(10), entitlement.KindWorkOrOff)...)
		start = spellEnd.AddDays(11)
	}

	m := entitlement.NewMachine(young, nil)
	require.NoError(t, m.Walk(days))

	previous := 0
	for _, day := range days {
		ctx, ok := m.SnapshotAt(day.Date)
		require.True(t, ok)
		require.GreaterOrEqual(t, ctx.ConsumedDays, previous, "decreased on %s", day.Date)
		previous = ctx.ConsumedDays
	}
	assert.Equal(t, entitlement.StandardPool, previous, "the pool runs out along the way")
}

func TestRejectedRanges_ContinueAcrossWeekends(t *testing.T) {
	m, last := exhausted(t, nil)
	require.NoError(t, m.Walk(sick(last.AddDays(1), d("2024-12-20"))))

	res := m.Evaluate(period("2024-12-01", "2024-12-31"))
	assert.Equal(t, []entitlement.RejectedRange{
		{Reason: entitlement.StandardPoolExhausted, Period: period("2024-12-12", "2024-12-20")},
	}, res.Rejections)
}

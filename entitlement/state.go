/*
Package entitlement tracks consumption and renewal of the statutory pool of
payable sickness days.

PURPOSE:
  A Machine walks a chronological sequence of classified days and decides,
  day by day, whether a payable day consumes the pool or is rejected. It
  answers "when is the pool exhausted" for any evaluation window.

KEY CONCEPTS:
  - Pool:    248 weekdays, or 60 weekdays counted after the 67th birthday
  - Break:   calendar days without payable sickness. 182 of them renew
  - Window:  the stretch of sickness the current pool belongs to. Opening a
             window anchors the 3-year lookback
  - Context: the running counters, snapshotted after every walked day

STATES:
  Initial ──payable──▶ ActivelySick ◀──payable── OnBreak
                            │                       │
                            └──not sick──▶──────────┘ 182 days ──▶ Initial
  ActivelySick/OnBreak ──pool spent──▶ Exhausted
  Exhausted ──182 days──▶ RequalifiedPendingConfirmation ──payable──▶ Initial (fresh pool)
  RequalifiedPendingConfirmation ──sick, not payable──▶ Exhausted
                                   (NewEligibilityAssessmentRequired)
  any ──past the 70-year limit──▶ TooOld (terminal)

BUSINESS OUTCOMES ARE NOT ERRORS:
  Exhaustion, pending requalification and TooOld are states carried in the
  Result. The only error a walk returns is an unsorted input.

SEE ALSO:
  - machine.go:  the transition function
  - evaluate.go: snapshot lookup and exhaustion projection
  - payment/builder.go: classifies merged timelines into Day values
*/
package entitlement

import (
	"github.com/warp/sickpay-engine/generic"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	StandardPool    = 248    // weekdays before exhaustion
	ExtendedPool    = 60     // weekdays after the 67th birthday
	QualifyingBreak = 26 * 7 // calendar days that renew the pool
	LookbackYears   = 3
)

// =============================================================================
// INPUT DAYS
// =============================================================================

// DayKind is what the machine needs to know about a date.
type DayKind int

const (
	// KindPayable is a weekday of sickness that would be paid.
	KindPayable DayKind = iota
	// KindSicknessNonPayable is sickness that never pays by itself: weekends
	// inside sickness and employer-paid days.
	KindSicknessNonPayable
	KindWorkOrOff
	KindLeave
	// KindRejected was already rejected before the walk, for a reason the
	// machine does not own.
	KindRejected
)

var dayKindNames = [...]string{"payable", "sickness_non_payable", "work_or_off", "leave", "rejected"}

func (k DayKind) String() string {
	if int(k) < len(dayKindNames) {
		return dayKindNames[k]
	}
	return "unknown"
}

// Day is one classified date.
type Day struct {
	Date generic.TimePoint
	Kind DayKind
}

// =============================================================================
// STATES
// =============================================================================

type State int

const (
	StateInitial State = iota
	StateActivelySick
	StateOnBreak
	StateExhausted
	StateRequalifiedPendingConfirmation
	StateTooOld
)

var stateNames = [...]string{
	"Initial",
	"ActivelySick",
	"OnBreak",
	"Exhausted",
	"RequalifiedPendingConfirmation",
	"TooOld",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}

// Reason explains why a date was rejected.
type Reason string

const (
	ReasonNone                       Reason = ""
	StandardPoolExhausted            Reason = "StandardPoolExhausted"
	StandardPoolExhaustedOver67      Reason = "StandardPoolExhaustedOver67"
	TooOld                           Reason = "TooOld"
	NewEligibilityAssessmentRequired Reason = "NewEligibilityAssessmentRequired"

	// Assigned by the payment builder before the walk.
	MinimumIncomeNotMet Reason = "MinimumIncomeNotMet"
	ForeignResidency    Reason = "ForeignResidency"
)

// =============================================================================
// CONTEXT - Running counters
// =============================================================================

// Context is the machine's state after a given day.
type Context struct {
	State  State
	Reason Reason // set while Exhausted or TooOld

	ConsumedDays   int // paid dates inside the lookback
	ConsumedOver67 int // of which after the 67th birthday
	BreakDays      int

	WindowStart   generic.TimePoint
	LookbackStart generic.TimePoint // paid dates before this no longer count
	PaidDates     []generic.TimePoint

	ExhaustionDate   generic.TimePoint
	EvaluatedThrough generic.TimePoint
}

func (c Context) clone() Context {
	if c.PaidDates != nil {
		paid := make([]generic.TimePoint, len(c.PaidDates))
		copy(paid, c.PaidDates)
		c.PaidDates = paid
	}
	return c
}

// IsExhausted reports whether payable days are currently rejected for pool
// exhaustion, including while waiting for requalification.
func (c Context) IsExhausted() bool {
	return c.State == StateExhausted || c.State == StateRequalifiedPendingConfirmation
}

/*
errors.go - Centralized error types for the benefit engine core

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Contract violations - caller bugs, fail fast (income attached twice,
     paying before income, locking after payout)
  2. Data conflicts - two sources disagree with no usable tie-break
  3. Input errors - malformed periods, unsorted day sequences

  Business outcomes (pool exhausted, too old, pending requalification) are
  NOT errors. They are output states of the entitlement machine.

USAGE:
  if errors.Is(err, generic.ErrIncomeAlreadyAttached) {
      ...
  }

SEE ALSO:
  - allocation/economy.go: lifecycle guards
  - timeline/tiebreak.go: ConflictError
  - entitlement/machine.go: ErrUnsortedDays
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrIncomeAlreadyAttached is returned when income is attached to an
	// economic state that already carries income.
	ErrIncomeAlreadyAttached = errors.New("income already attached")

	// ErrIncomeNotAttached is returned when paying or locking a state that
	// only carries a sickness grade.
	ErrIncomeNotAttached = errors.New("income not attached")

	// ErrAlreadyPaid is returned when paying or locking a state whose
	// payout is already computed.
	ErrAlreadyPaid = errors.New("payout already computed")

	// ErrLockAfterPayout is returned when locking a paid state.
	ErrLockAfterPayout = errors.New("cannot lock after payout is computed")

	// ErrConflictingDays is returned by the default tie-break when two
	// sources classify the same date differently.
	ErrConflictingDays = errors.New("conflicting day classifications")

	// ErrOverlappingTimelines is returned by Join when the two timelines
	// share dates.
	ErrOverlappingTimelines = errors.New("timelines overlap")

	// ErrUnsortedDays is returned when the entitlement machine receives a
	// date that is not strictly after the previous one.
	ErrUnsortedDays = errors.New("days must be strictly increasing")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrUnknownTieBreak is returned when a tie-break name cannot be resolved.
	ErrUnknownTieBreak = errors.New("unknown tie-break strategy")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ContractError reports a lifecycle violation on an economic state.
type ContractError struct {
	Operation string // "attach_income", "pay", "lock"
	Phase     string // phase the state was in
	Err       error
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("%s in phase %s: %v", e.Operation, e.Phase, e.Err)
}

func (e *ContractError) Unwrap() error {
	return e.Err
}

// UnsortedDayError provides the offending dates for ErrUnsortedDays.
type UnsortedDayError struct {
	Previous TimePoint
	Got      TimePoint
}

func (e *UnsortedDayError) Error() string {
	return fmt.Sprintf("day %s is not after %s", e.Got, e.Previous)
}

func (e *UnsortedDayError) Unwrap() error {
	return ErrUnsortedDays
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsContractViolation returns true if the error is a caller bug rather
// than a data problem.
func IsContractViolation(err error) bool {
	return errors.Is(err, ErrIncomeAlreadyAttached) ||
		errors.Is(err, ErrIncomeNotAttached) ||
		errors.Is(err, ErrAlreadyPaid) ||
		errors.Is(err, ErrLockAfterPayout) ||
		errors.Is(err, ErrUnsortedDays)
}

// IsClientError returns true if the error is due to invalid input data.
func IsClientError(err error) bool {
	return errors.Is(err, ErrConflictingDays) ||
		errors.Is(err, ErrOverlappingTimelines) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrUnknownTieBreak)
}

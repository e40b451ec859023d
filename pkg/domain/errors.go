package domain

import "errors"

// ErrRunNotFound is returned when a run id has no snapshots in the store.
// The executor treats it as the signal for a fresh start.
var ErrRunNotFound = errors.New("run not found")

// Precondition failures. They are returned before any state is touched.
var (
	ErrEmptyMessage  = errors.New("empty message for a fresh run")
	ErrInvalidRunID  = errors.New("invalid run id")
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("input contains invalid utf-8")
	ErrNotSuspended  = errors.New("run is not waiting for input")
	ErrRunFinished   = errors.New("run already finished")
)

// Invariant violations.
var (
	ErrUnmappedRoute     = errors.New("route has no mapped successor")
	ErrIllegalTransition = errors.New("illegal step transition")
	ErrStepLimit         = errors.New("step limit exceeded")
	ErrCorruptSnapshot   = errors.New("corrupt snapshot")
	ErrSequenceConflict  = errors.New("snapshot sequence conflict")
)

var (
	ErrUnknownField = errors.New("unknown state field")
	ErrFieldType    = errors.New("wrong type for state field")
)

// IsPrecondition reports whether err rejects the call before any mutation.
func IsPrecondition(err error) bool {
	for _, target := range []error{ErrEmptyMessage, ErrInvalidRunID, ErrInputTooLarge, ErrInvalidUTF8, ErrNotSuspended, ErrRunFinished} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsInvariantViolation reports whether err signals a broken graph or store invariant.
func IsInvariantViolation(err error) bool {
	for _, target := range []error{ErrUnmappedRoute, ErrIllegalTransition, ErrStepLimit, ErrCorruptSnapshot, ErrSequenceConflict, ErrUnknownField, ErrFieldType} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

/*
errors.go - Centralized error types for the roster engine

PURPOSE:
  All error kinds in one place. Callers branch with errors.Is() against the
  sentinels; the structured types carry the identifiers needed for useful
  messages and are matched with errors.As().

ERROR CATEGORIES:
  1. Resolution errors - a shift template that cannot be resolved
  2. Query errors      - malformed query windows
  3. Integrity errors  - dangling references, shifts still in use
  4. Lookup errors     - missing shifts/allocations

CONTRACT:
  Every error is reported synchronously to the caller of the failing
  operation. A failed operation NEVER corrupts the index: the prior entry,
  if any, stays untouched. Nothing is retried internally: all operations
  are deterministic and in-memory, so a retry without changed input would
  fail identically.
*/
package roster

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidShiftDefinition is returned when a shift template has missing
	// or out-of-range time-of-day values and cannot be resolved.
	ErrInvalidShiftDefinition = errors.New("invalid shift definition")

	// ErrInvalidRange is returned for query windows where start >= finish.
	// The window is rejected before the index is touched.
	ErrInvalidRange = errors.New("invalid range: window start must precede window finish")

	// ErrDanglingShiftReference is returned when an allocation references a
	// shift the engine does not know. Surfaced, never silently dropped.
	ErrDanglingShiftReference = errors.New("allocation references unknown shift")

	// ErrShiftInUse is returned when deleting a shift that allocations still
	// reference.
	ErrShiftInUse = errors.New("shift is referenced by allocations")

	// ErrShiftNotFound is returned when a referenced shift doesn't exist.
	ErrShiftNotFound = errors.New("shift not found")

	// ErrAllocationNotFound is returned when a referenced allocation doesn't exist.
	ErrAllocationNotFound = errors.New("allocation not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidShiftError explains why a shift template failed validation.
type InvalidShiftError struct {
	ShiftID ShiftID
	Reason  string
}

func (e *InvalidShiftError) Error() string {
	return fmt.Sprintf("invalid shift definition %q: %s", e.ShiftID, e.Reason)
}

func (e *InvalidShiftError) Unwrap() error { return ErrInvalidShiftDefinition }

// DanglingShiftError identifies the allocation and the missing shift.
type DanglingShiftError struct {
	AllocationID AllocationID
	ShiftID      ShiftID
}

func (e *DanglingShiftError) Error() string {
	return fmt.Sprintf("allocation %q references unknown shift %q", e.AllocationID, e.ShiftID)
}

func (e *DanglingShiftError) Unwrap() error { return ErrDanglingShiftReference }

// ShiftInUseError carries the referencing allocation count.
type ShiftInUseError struct {
	ShiftID     ShiftID
	Allocations int
}

func (e *ShiftInUseError) Error() string {
	return fmt.Sprintf("shift %q is referenced by %d allocation(s)", e.ShiftID, e.Allocations)
}

func (e *ShiftInUseError) Unwrap() error { return ErrShiftInUse }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidShiftDefinition) ||
		errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrDanglingShiftReference) ||
		errors.Is(err, ErrShiftInUse)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrShiftNotFound) ||
		errors.Is(err, ErrAllocationNotFound)
}

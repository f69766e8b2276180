/*
Package roster provides the core shift interval resolution engine.

PURPOSE:
  This package contains the types and algorithms for turning recurring
  time-of-day shift templates plus date-bound allocations into absolute,
  queryable time intervals. The midnight-rollover rule (a shift whose
  finish time is numerically earlier than or equal to its start time
  spans into the next calendar day) lives in exactly one place, the
  resolver, so no call site ever has to special-case it.

KEY CONCEPTS IN THIS FILE (types.go):
  - TimeOfDay:       A wall-clock hour:minute value with no date
  - Date:            A calendar date with no time component
  - ShiftDefinition: A recurring time-of-day template (start/finish)
  - Allocation:      A shift assigned to a concrete date, with assignees
  - ResolvedInterval: The derived absolute [start, finish) instant pair

DESIGN PRINCIPLES:
  1. Derivation: ResolvedInterval is never authoritative. It is always
     exactly Resolve(shift, date) and can be re-derived from scratch.
  2. Half-open semantics: intervals include their start instant and
     exclude their finish instant, everywhere, with no exceptions.
  3. Type Safety: Strong typing for IDs prevents mixing shift,
     allocation, and subject identifiers.
  4. One civil timezone: all instants are UTC wall-clock projections.
     This is not a timezone-conversion library.

USAGE:
  shift := roster.ShiftDefinition{
      ID:     "night",
      Start:  roster.MustParseTimeOfDay("22:00"),
      Finish: roster.MustParseTimeOfDay("06:00"),
  }
  iv, err := roster.Resolve(shift, roster.NewDate(2016, time.January, 1))
  // iv spans 2016-01-01T22:00 .. 2016-01-02T06:00

SEE ALSO:
  - resolve.go: The pure resolver and the rollover rule
  - index.go:   The materialized, invalidatable interval index
  - query.go:   Point-in-time and window overlap queries
  - engine.go:  The external surface (load + mutation notifications)
*/
package roster

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ShiftID string
type AllocationID string
type SubjectID string

// =============================================================================
// TIME OF DAY - Wall-clock value without a date
// =============================================================================

// TimeOfDay is an hour:minute wall-clock value. The zero value is midnight,
// which is a valid shift boundary, so validity is range-checked rather than
// zero-checked.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM" (24-hour clock). The whole input must be
// consumed; "12:30xyz" is an error, not 12:30.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	hs, ms, ok := strings.Cut(s, ":")
	if !ok {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(hs)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	m, err := strconv.Atoi(ms)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	td := TimeOfDay{Hour: h, Minute: m}
	if !td.Valid() {
		return TimeOfDay{}, fmt.Errorf("time of day %q out of range", s)
	}
	return td, nil
}

// MustParseTimeOfDay is ParseTimeOfDay for literals; panics on error.
func MustParseTimeOfDay(s string) TimeOfDay {
	td, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return td
}

func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour < 24 && t.Minute >= 0 && t.Minute < 60
}

// MinuteOfDay returns minutes since midnight. Total ordering for wall-clock
// comparison; the rollover rule compares these, never instants.
func (t TimeOfDay) MinuteOfDay() int { return t.Hour*60 + t.Minute }

func (t TimeOfDay) After(other TimeOfDay) bool { return t.MinuteOfDay() > other.MinuteOfDay() }

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

// =============================================================================
// DATE - Calendar date without a time component
// =============================================================================

type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// ParseDate parses "YYYY-MM-DD".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// At combines the date with a wall-clock time into an absolute UTC instant.
func (d Date) At(t TimeOfDay) time.Time {
	return time.Date(d.Year, d.Month, d.Day, t.Hour, t.Minute, 0, 0, time.UTC)
}

// AddDays returns the date shifted by n calendar days, normalized.
func (d Date) AddDays(n int) Date {
	t := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

func (d Date) IsZero() bool { return d.Year == 0 && d.Month == 0 && d.Day == 0 }

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// =============================================================================
// SHIFT DEFINITION - Recurring time-of-day template
// =============================================================================

// ShiftDefinition is a time-of-day template with no date component.
// There is deliberately NO ordering constraint between Start and Finish:
// Finish <= Start signals a rollover shift (equality means a 24-hour shift,
// see resolve.go).
type ShiftDefinition struct {
	ID     ShiftID
	Name   string
	Start  TimeOfDay
	Finish TimeOfDay
}

// Validate checks the template is resolvable. Times out of wall-clock range
// (typically from hand-built structs bypassing ParseTimeOfDay) make every
// resolution for this shift fail, so they are rejected up front.
func (s ShiftDefinition) Validate() error {
	if s.ID == "" {
		return &InvalidShiftError{ShiftID: s.ID, Reason: "missing shift id"}
	}
	if !s.Start.Valid() {
		return &InvalidShiftError{ShiftID: s.ID, Reason: fmt.Sprintf("start time %s out of range", s.Start)}
	}
	if !s.Finish.Valid() {
		return &InvalidShiftError{ShiftID: s.ID, Reason: fmt.Sprintf("finish time %s out of range", s.Finish)}
	}
	return nil
}

// RollsOver reports whether the shift crosses midnight. Equal start and
// finish times count as rollover (a full 24-hour shift).
func (s ShiftDefinition) RollsOver() bool {
	return !s.Finish.After(s.Start)
}

// =============================================================================
// ALLOCATION - A shift assigned to a concrete date
// =============================================================================

// Allocation binds one ShiftDefinition (non-owning reference) to a calendar
// date, with zero or more assigned subjects.
type Allocation struct {
	ID        AllocationID
	ShiftID   ShiftID
	Date      Date
	Assignees []SubjectID
}

func (a Allocation) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("allocation: missing id")
	}
	if a.ShiftID == "" {
		return fmt.Errorf("allocation %s: missing shift id", a.ID)
	}
	if a.Date.IsZero() {
		return fmt.Errorf("allocation %s: missing date", a.ID)
	}
	return nil
}

// =============================================================================
// RESOLVED INTERVAL - Derived absolute instants, half-open
// =============================================================================

// ResolvedInterval is the absolute [StartAt, FinishAt) pair derived from an
// allocation's shift and date. StartAt < FinishAt always holds, including for
// rollover shifts. It is a materialization of a pure function: never mutated
// in place, only replaced by re-resolution.
type ResolvedInterval struct {
	AllocationID AllocationID
	StartAt      time.Time
	FinishAt     time.Time
}

// Contains reports whether the instant falls inside [StartAt, FinishAt).
func (iv ResolvedInterval) Contains(at time.Time) bool {
	return !at.Before(iv.StartAt) && at.Before(iv.FinishAt)
}

// Overlaps reports standard half-open overlap with [start, finish).
func (iv ResolvedInterval) Overlaps(start, finish time.Time) bool {
	return iv.StartAt.Before(finish) && iv.FinishAt.After(start)
}

func (iv ResolvedInterval) Duration() time.Duration {
	return iv.FinishAt.Sub(iv.StartAt)
}

func (iv ResolvedInterval) String() string {
	return "[" + iv.StartAt.Format(time.RFC3339) + ", " + iv.FinishAt.Format(time.RFC3339) + ")"
}

/*
resolve.go - The pure interval resolver

PURPOSE:
  Maps (ShiftDefinition, Date) to an absolute [start, finish) instant pair.
  This is the ONLY place in the codebase that knows about the midnight
  rollover rule. Everything downstream (index, queries, reports) works with
  plain absolute intervals.

THE ROLLOVER RULE:
  start_at = date + shift.Start
  if shift.Finish >  shift.Start:  finish_at = date + shift.Finish
  if shift.Finish <= shift.Start:  finish_at = (date + 1 day) + shift.Finish

  Equality is treated as rollover, so a shift with Start == Finish is a
  24-hour shift rather than a zero-length one. The alternative reading
  (zero length) would produce an empty interval that no query could ever
  return, which is never what a schedule means.

PROPERTIES:
  - Pure and total: no I/O, deterministic, safe to memoize.
  - StartAt < FinishAt always (rollover adds exactly one day).
  - Same-day shifts keep their wall-clock duration:
      FinishAt - StartAt == Finish - Start.

SEE ALSO:
  - index.go: calls Resolve exactly once per (shift, date) change
*/
package roster

// Resolve derives the absolute half-open interval for a shift on a date.
// Fails with ErrInvalidShiftDefinition (wrapped) when the template is not
// resolvable; never partially succeeds.
func Resolve(shift ShiftDefinition, date Date) (ResolvedInterval, error) {
	if err := shift.Validate(); err != nil {
		return ResolvedInterval{}, err
	}

	startAt := date.At(shift.Start)

	finishDate := date
	if shift.RollsOver() {
		finishDate = date.AddDays(1)
	}
	finishAt := finishDate.At(shift.Finish)

	return ResolvedInterval{StartAt: startAt, FinishAt: finishAt}, nil
}

// ResolveAllocation is Resolve with the allocation's back-reference attached,
// which is the shape the index stores.
func ResolveAllocation(alloc Allocation, shift ShiftDefinition) (ResolvedInterval, error) {
	iv, err := Resolve(shift, alloc.Date)
	if err != nil {
		return ResolvedInterval{}, err
	}
	iv.AllocationID = alloc.ID
	return iv, nil
}

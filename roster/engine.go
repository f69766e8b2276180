/*
engine.go - The external surface of the roster core

PURPOSE:
  Ties the shift catalog, the allocation intake, and the interval index
  together behind the interface external collaborators (persistence layer,
  HTTP layer) call into. The engine never polls or watches storage: the
  external layer loads everything once via Load and then pushes every data
  change through the On* notifications.

WRITE PATH:
  Every allocation write re-resolves through the pure resolver and lands
  in the index before the call returns. There is no asynchronous staleness
  window: immediately after any notification completes, queries see the
  new state.

WRITE SERIALIZATION:
  All mutations (and the audit) run end-to-end under one engine write
  mutex, so every write observes the catalog and the index from the same
  instant. Reading the catalog and then mutating the index outside a
  common lock would let an interleaved shift update resolve an allocation
  against a template the catalog no longer holds. Queries are unaffected:
  they take the index's own read lock.

DANGLING REFERENCES:
  An allocation naming a shift the engine does not know is a data
  integrity error (DanglingShiftError), surfaced to the caller and never
  silently dropped.

SEE ALSO:
  - index.go:  the materialized interval index the engine maintains
  - query.go:  the read side
  - store/sqlite: the persistence collaborator feeding Load and On*
*/
package roster

import (
	"sort"
	"sync"
	"time"
)

// Engine is the single logical owner of the resolved interval index.
type Engine struct {
	// mu guards shifts and serializes every mutation (including Audit)
	// end-to-end. The index carries its own lock for readers; writers
	// always hold mu first.
	mu     sync.RWMutex
	shifts map[ShiftID]ShiftDefinition
	index  *Index
}

func NewEngine() *Engine {
	return &Engine{
		shifts: make(map[ShiftID]ShiftDefinition),
		index:  NewIndex(),
	}
}

// Load builds an engine from the full current data set, as loaded by the
// external persistence layer. Every shift is validated and every allocation
// resolved; the first failure aborts the load.
func Load(shifts []ShiftDefinition, allocations []Allocation) (*Engine, error) {
	e := NewEngine()
	for _, s := range shifts {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		e.shifts[s.ID] = s
	}
	for _, a := range allocations {
		shift, ok := e.shifts[a.ShiftID]
		if !ok {
			return nil, &DanglingShiftError{AllocationID: a.ID, ShiftID: a.ShiftID}
		}
		if err := e.index.Upsert(a, shift); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// =============================================================================
// MUTATION NOTIFICATIONS
// =============================================================================

// OnAllocationCreated indexes a newly persisted allocation.
func (e *Engine) OnAllocationCreated(alloc Allocation) error {
	return e.applyAllocation(alloc)
}

// OnAllocationUpdated re-resolves an allocation after any of its fields
// (shift reference, date, assignees) changed.
func (e *Engine) OnAllocationUpdated(alloc Allocation) error {
	return e.applyAllocation(alloc)
}

// applyAllocation holds the write lock across the catalog read AND the
// index upsert: a shift update interleaved between the two would leave
// the interval resolved against a template the catalog no longer holds.
func (e *Engine) applyAllocation(alloc Allocation) error {
	if err := alloc.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	shift, ok := e.shifts[alloc.ShiftID]
	if !ok {
		return &DanglingShiftError{AllocationID: alloc.ID, ShiftID: alloc.ShiftID}
	}
	return e.index.Upsert(alloc, shift)
}

// OnAllocationDeleted drops the allocation's interval. Idempotent.
func (e *Engine) OnAllocationDeleted(id AllocationID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.index.Remove(id)
}

// OnShiftUpdated registers or replaces a shift template and re-resolves
// every allocation referencing it. Upsert semantics: this is also how a
// shift is first introduced after Load. A failing template changes nothing.
func (e *Engine) OnShiftUpdated(shift ShiftDefinition) error {
	if err := shift.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.index.RebuildForShift(shift); err != nil {
		return err
	}
	e.shifts[shift.ID] = shift
	return nil
}

// OnShiftDeleted removes a shift from the catalog. Fails with ShiftInUseError
// while allocations still reference it: cascading here would silently drop
// schedule data.
func (e *Engine) OnShiftDeleted(id ShiftID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.shifts[id]; !ok {
		return ErrShiftNotFound
	}
	if n := e.index.CountForShift(id); n > 0 {
		return &ShiftInUseError{ShiftID: id, Allocations: n}
	}
	delete(e.shifts, id)
	return nil
}

// =============================================================================
// QUERIES
// =============================================================================

// ActiveAt returns the IDs of allocations active at the instant.
func (e *Engine) ActiveAt(at time.Time) []AllocationID {
	return e.index.ActiveAt(at)
}

// Overlapping returns the IDs of allocations intersecting [start, finish).
func (e *Engine) Overlapping(start, finish time.Time) ([]AllocationID, error) {
	return e.index.Overlapping(start, finish)
}

// =============================================================================
// ACCESSORS - for the external layer's joins
// =============================================================================

func (e *Engine) Shift(id ShiftID) (ShiftDefinition, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.shifts[id]
	return s, ok
}

// Shifts returns the shift catalog sorted by ID.
func (e *Engine) Shifts() []ShiftDefinition {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]ShiftDefinition, 0, len(e.shifts))
	for _, s := range e.shifts {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (e *Engine) Allocation(id AllocationID) (Allocation, bool) {
	return e.index.Allocation(id)
}

// Allocations returns every indexed allocation in interval order.
func (e *Engine) Allocations() []Allocation {
	return e.index.Allocations()
}

// Interval returns the resolved interval for an allocation.
func (e *Engine) Interval(id AllocationID) (ResolvedInterval, bool) {
	return e.index.Interval(id)
}

// =============================================================================
// AUDIT - full re-derivation
// =============================================================================

// Audit re-derives every indexed interval from its allocation's current
// shift and date and repairs any entry that diverges. The index is a cache
// of a pure function; a non-empty result means a bug upstream, not normal
// operation. Returns the repaired allocation IDs.
//
// The whole pass holds the write lock. Auditing against a snapshot while
// other writes land would misread a legitimate concurrent update as drift
// and revert it; under the lock, "diverges" can only mean actual corruption.
func (e *Engine) Audit() ([]AllocationID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var repaired []AllocationID
	for _, alloc := range e.index.Allocations() {
		shift, ok := e.shifts[alloc.ShiftID]
		if !ok {
			return repaired, &DanglingShiftError{AllocationID: alloc.ID, ShiftID: alloc.ShiftID}
		}

		want, err := ResolveAllocation(alloc, shift)
		if err != nil {
			return repaired, err
		}
		got, indexed := e.index.Interval(alloc.ID)
		if indexed && got.StartAt.Equal(want.StartAt) && got.FinishAt.Equal(want.FinishAt) {
			continue
		}
		if err := e.index.Upsert(alloc, shift); err != nil {
			return repaired, err
		}
		repaired = append(repaired, alloc.ID)
	}
	return repaired, nil
}

/*
index.go - The materialized resolved-interval index

PURPOSE:
  Maintains, for the full set of allocations, an up-to-date mapping from
  allocation ID to its ResolvedInterval, plus a start-sorted structure that
  makes point and window queries cheap. The index is a materialized,
  invalidatable cache of the pure resolver: never an independent source
  of truth.

STRUCTURE:
  entries:  allocation_id -> (allocation snapshot, resolved interval)
  byShift:  shift_id -> allocation ids (drives RebuildForShift)
  ordered:  entries sorted by StartAt, ties broken by allocation ID
  maxSpan:  the longest interval span ever inserted

QUERY PRUNING:
  The ordered slice alone cannot bound a scan from below: an interval
  starting long before a query point may still cover it. maxSpan closes
  that gap: any entry with StartAt < t-maxSpan has FinishAt <= t and can
  be skipped. maxSpan only grows (removals do not shrink it), which keeps
  it a safe over-estimate without bookkeeping.

CONCURRENCY:
  Single writer lock (sync.RWMutex). Writers serialize with each other and
  with readers; readers see either the state before a write or after it,
  never a half-applied one. RebuildForShift stages all resolutions before
  touching any entry, so a failing shift leaves every prior entry intact
  and a concurrent query never observes a partial rebuild.

SEE ALSO:
  - resolve.go: the pure function this index materializes
  - query.go:   ActiveAt / Overlapping over the ordered slice
*/
package roster

import (
	"sort"
	"sync"
	"time"
)

type indexEntry struct {
	alloc    Allocation
	interval ResolvedInterval
}

// Index is the queryable materialization of resolved intervals.
type Index struct {
	mu      sync.RWMutex
	entries map[AllocationID]*indexEntry
	byShift map[ShiftID]map[AllocationID]struct{}
	ordered []*indexEntry
	maxSpan time.Duration
}

func NewIndex() *Index {
	return &Index{
		entries: make(map[AllocationID]*indexEntry),
		byShift: make(map[ShiftID]map[AllocationID]struct{}),
	}
}

// =============================================================================
// MUTATION
// =============================================================================

// Upsert re-resolves the allocation against the given shift and replaces any
// prior entry for that allocation ID. A failed resolution returns the error
// and leaves the prior entry, if any, untouched.
func (ix *Index) Upsert(alloc Allocation, shift ShiftDefinition) error {
	if err := alloc.Validate(); err != nil {
		return err
	}
	if alloc.ShiftID != shift.ID {
		return &DanglingShiftError{AllocationID: alloc.ID, ShiftID: alloc.ShiftID}
	}

	// Resolve before taking the lock: pure, and failure must not mutate.
	iv, err := ResolveAllocation(alloc, shift)
	if err != nil {
		return err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.upsertLocked(alloc, iv)
	return nil
}

// Remove deletes the entry and its index presence. Removing an absent ID is
// a no-op, not an error.
func (ix *Index) Remove(id AllocationID) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	e, ok := ix.entries[id]
	if !ok {
		return
	}
	delete(ix.entries, id)
	ix.detachShiftLocked(e.alloc.ShiftID, id)
	ix.removeOrderedLocked(e)
	// maxSpan is left as-is: it is a prune bound, and an over-estimate is
	// safe. It is recomputed on the next full rebuild.
}

// RebuildForShift re-resolves every allocation referencing the shift.
// All resolutions are staged first; if any fails, no entry changes.
// Cost is proportional to the number of allocations on the shift.
func (ix *Index) RebuildForShift(shift ShiftDefinition) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ids := ix.byShift[shift.ID]
	if len(ids) == 0 {
		return nil
	}

	type staged struct {
		alloc    Allocation
		interval ResolvedInterval
	}
	batch := make([]staged, 0, len(ids))
	for id := range ids {
		e := ix.entries[id]
		iv, err := ResolveAllocation(e.alloc, shift)
		if err != nil {
			return err
		}
		batch = append(batch, staged{alloc: e.alloc, interval: iv})
	}

	for _, s := range batch {
		ix.upsertLocked(s.alloc, s.interval)
	}
	return nil
}

func (ix *Index) upsertLocked(alloc Allocation, iv ResolvedInterval) {
	if prev, ok := ix.entries[alloc.ID]; ok {
		ix.detachShiftLocked(prev.alloc.ShiftID, alloc.ID)
		ix.removeOrderedLocked(prev)
	}

	e := &indexEntry{alloc: alloc, interval: iv}
	ix.entries[alloc.ID] = e

	set, ok := ix.byShift[alloc.ShiftID]
	if !ok {
		set = make(map[AllocationID]struct{})
		ix.byShift[alloc.ShiftID] = set
	}
	set[alloc.ID] = struct{}{}

	ix.insertOrderedLocked(e)

	if span := iv.Duration(); span > ix.maxSpan {
		ix.maxSpan = span
	}
}

func (ix *Index) detachShiftLocked(shiftID ShiftID, id AllocationID) {
	if set, ok := ix.byShift[shiftID]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(ix.byShift, shiftID)
		}
	}
}

// insertOrderedLocked keeps ordered sorted by (StartAt, AllocationID).
// Binary search for the slot, then a single copy shift.
func (ix *Index) insertOrderedLocked(e *indexEntry) {
	i := sort.Search(len(ix.ordered), func(i int) bool {
		o := ix.ordered[i]
		if !o.interval.StartAt.Equal(e.interval.StartAt) {
			return o.interval.StartAt.After(e.interval.StartAt)
		}
		return o.alloc.ID > e.alloc.ID
	})
	ix.ordered = append(ix.ordered, nil)
	copy(ix.ordered[i+1:], ix.ordered[i:])
	ix.ordered[i] = e
}

func (ix *Index) removeOrderedLocked(e *indexEntry) {
	i := sort.Search(len(ix.ordered), func(i int) bool {
		o := ix.ordered[i]
		if !o.interval.StartAt.Equal(e.interval.StartAt) {
			return o.interval.StartAt.After(e.interval.StartAt)
		}
		return o.alloc.ID >= e.alloc.ID
	})
	if i < len(ix.ordered) && ix.ordered[i] == e {
		ix.ordered = append(ix.ordered[:i], ix.ordered[i+1:]...)
	}
}

// =============================================================================
// LOOKUP
// =============================================================================

// Interval returns the resolved interval for an allocation, if indexed.
func (ix *Index) Interval(id AllocationID) (ResolvedInterval, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	e, ok := ix.entries[id]
	if !ok {
		return ResolvedInterval{}, false
	}
	return e.interval, true
}

// Allocation returns the allocation snapshot the entry was resolved from.
func (ix *Index) Allocation(id AllocationID) (Allocation, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	e, ok := ix.entries[id]
	if !ok {
		return Allocation{}, false
	}
	return e.alloc, true
}

// Allocations returns a copy of every indexed allocation, in interval order.
func (ix *Index) Allocations() []Allocation {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make([]Allocation, len(ix.ordered))
	for i, e := range ix.ordered {
		out[i] = e.alloc
	}
	return out
}

// CountForShift returns how many indexed allocations reference the shift.
func (ix *Index) CountForShift(shiftID ShiftID) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.byShift[shiftID])
}

func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

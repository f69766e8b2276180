/*
query.go - Point and window queries over the index

PURPOSE:
  The two read shapes the engine exposes:
    ActiveAt(t)            -> allocations whose interval contains t
    Overlapping(t1, t2)    -> allocations whose interval intersects [t1, t2)

SEMANTICS:
  Strictly half-open everywhere. An allocation finishing exactly at t is
  NOT active at t; one starting exactly at t IS. Window overlap is the
  standard  a.start < t2 && a.finish > t1.

  Results are identifier sets with no defined order; callers must not rely
  on the scan order. No assignee expansion happens here: joining IDs back
  to full records is the external layer's job.

CONSISTENCY:
  Each query runs under the read lock, so it sees a consistent snapshot:
  no allocation ever appears half-resolved, and a concurrent rebuild is
  visible either entirely or not at all.
*/
package roster

import (
	"sort"
	"time"
)

// ActiveAt returns the IDs of all allocations whose resolved interval
// contains the instant. Treat the result as an unordered set.
func (ix *Index) ActiveAt(at time.Time) []AllocationID {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	// Entries starting after `at` cannot contain it; entries starting more
	// than maxSpan before `at` have already finished.
	lo := ix.searchStartLocked(at.Add(-ix.maxSpan))
	var out []AllocationID
	for _, e := range ix.ordered[lo:] {
		if e.interval.StartAt.After(at) {
			break
		}
		if e.interval.Contains(at) {
			out = append(out, e.alloc.ID)
		}
	}
	return out
}

// Overlapping returns the IDs of all allocations whose resolved interval
// intersects the half-open window [start, finish). Fails with ErrInvalidRange
// unless start < finish; a zero-width window is rejected, not empty.
func (ix *Index) Overlapping(start, finish time.Time) ([]AllocationID, error) {
	if !start.Before(finish) {
		return nil, ErrInvalidRange
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	lo := ix.searchStartLocked(start.Add(-ix.maxSpan))
	var out []AllocationID
	for _, e := range ix.ordered[lo:] {
		if !e.interval.StartAt.Before(finish) {
			break
		}
		if e.interval.Overlaps(start, finish) {
			out = append(out, e.alloc.ID)
		}
	}
	return out, nil
}

// searchStartLocked returns the first ordered position with StartAt >= t.
func (ix *Index) searchStartLocked(t time.Time) int {
	return sort.Search(len(ix.ordered), func(i int) bool {
		return !ix.ordered[i].interval.StartAt.Before(t)
	})
}

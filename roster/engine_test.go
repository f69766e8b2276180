package roster_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/roster-engine/roster"
)

func newTestEngine(t *testing.T) *roster.Engine {
	t.Helper()
	e, err := roster.Load(
		[]roster.ShiftDefinition{dayShift(), nightShift()},
		[]roster.Allocation{
			alloc("dayA", "day", date(2016, time.January, 1), "alice"),
			alloc("nightB", "night", date(2016, time.January, 1), "bob"),
		},
	)
	require.NoError(t, err)
	return e
}

// =============================================================================
// LOAD
// =============================================================================

func TestLoad_BuildsQueryableIndex(t *testing.T) {
	e := newTestEngine(t)

	assert.ElementsMatch(t, []roster.AllocationID{"dayA"}, e.ActiveAt(utc(2016, time.January, 1, 10, 0)))
	assert.ElementsMatch(t, []roster.AllocationID{"nightB"}, e.ActiveAt(utc(2016, time.January, 2, 1, 0)))
}

func TestLoad_DanglingShiftReference(t *testing.T) {
	_, err := roster.Load(
		[]roster.ShiftDefinition{dayShift()},
		[]roster.Allocation{alloc("a1", "ghost", date(2016, time.January, 1))},
	)
	require.ErrorIs(t, err, roster.ErrDanglingShiftReference)

	var dangling *roster.DanglingShiftError
	require.ErrorAs(t, err, &dangling)
	assert.Equal(t, roster.AllocationID("a1"), dangling.AllocationID)
	assert.Equal(t, roster.ShiftID("ghost"), dangling.ShiftID)
}

func TestLoad_InvalidShift(t *testing.T) {
	_, err := roster.Load(
		[]roster.ShiftDefinition{{ID: "bad", Start: roster.TimeOfDay{Hour: 31}}},
		nil,
	)
	require.ErrorIs(t, err, roster.ErrInvalidShiftDefinition)
}

// =============================================================================
// ALLOCATION NOTIFICATIONS
// =============================================================================

func TestOnAllocationCreated(t *testing.T) {
	e := newTestEngine(t)

	err := e.OnAllocationCreated(alloc("dayC", "day", date(2016, time.January, 2), "carol"))
	require.NoError(t, err)

	assert.ElementsMatch(t, []roster.AllocationID{"dayC"}, e.ActiveAt(utc(2016, time.January, 2, 10, 0)))

	iv, ok := e.Interval("dayC")
	require.True(t, ok)
	assert.Equal(t, utc(2016, time.January, 2, 8, 0), iv.StartAt)
	assert.Equal(t, utc(2016, time.January, 2, 16, 0), iv.FinishAt)
}

func TestOnAllocationCreated_DanglingShift(t *testing.T) {
	e := newTestEngine(t)

	err := e.OnAllocationCreated(alloc("x", "ghost", date(2016, time.January, 1)))
	require.ErrorIs(t, err, roster.ErrDanglingShiftReference)
	assert.True(t, roster.IsClientError(err))

	_, ok := e.Interval("x")
	assert.False(t, ok, "failed notification must not index anything")
}

func TestOnAllocationUpdated_MovesInterval(t *testing.T) {
	e := newTestEngine(t)

	// Move dayA from the day shift to the night shift.
	err := e.OnAllocationUpdated(alloc("dayA", "night", date(2016, time.January, 1), "alice"))
	require.NoError(t, err)

	assert.Empty(t, e.ActiveAt(utc(2016, time.January, 1, 10, 0)))
	assert.ElementsMatch(t, []roster.AllocationID{"dayA", "nightB"}, e.ActiveAt(utc(2016, time.January, 1, 23, 0)))
}

func TestOnAllocationDeleted(t *testing.T) {
	e := newTestEngine(t)

	e.OnAllocationDeleted("dayA")
	assert.Empty(t, e.ActiveAt(utc(2016, time.January, 1, 10, 0)))

	// Idempotent: deleting again is a no-op.
	e.OnAllocationDeleted("dayA")
	e.OnAllocationDeleted("never-existed")
}

// =============================================================================
// SHIFT NOTIFICATIONS
// =============================================================================

func TestOnShiftUpdated_ReresolvesReferencingAllocations(t *testing.T) {
	// GIVEN: dayA resolved on the 08:00-16:00 template
	// WHEN: the day template becomes a rollover 20:00-04:00
	// THEN: dayA's interval crosses midnight without the allocation changing

	e := newTestEngine(t)

	err := e.OnShiftUpdated(roster.ShiftDefinition{ID: "day", Name: "Late", Start: tod("20:00"), Finish: tod("04:00")})
	require.NoError(t, err)

	iv, ok := e.Interval("dayA")
	require.True(t, ok)
	assert.Equal(t, utc(2016, time.January, 1, 20, 0), iv.StartAt)
	assert.Equal(t, utc(2016, time.January, 2, 4, 0), iv.FinishAt)

	assert.Empty(t, e.ActiveAt(utc(2016, time.January, 1, 10, 0)))
	assert.ElementsMatch(t, []roster.AllocationID{"dayA", "nightB"}, e.ActiveAt(utc(2016, time.January, 2, 1, 0)))
}

func TestOnShiftUpdated_RegistersNewShift(t *testing.T) {
	e := newTestEngine(t)

	err := e.OnShiftUpdated(roster.ShiftDefinition{ID: "eve", Name: "Evening", Start: tod("16:00"), Finish: tod("22:00")})
	require.NoError(t, err)

	require.NoError(t, e.OnAllocationCreated(alloc("e1", "eve", date(2016, time.January, 1))))
	assert.ElementsMatch(t, []roster.AllocationID{"e1"}, e.ActiveAt(utc(2016, time.January, 1, 18, 0)))
}

func TestOnShiftUpdated_InvalidTemplateChangesNothing(t *testing.T) {
	e := newTestEngine(t)
	before, _ := e.Interval("dayA")

	err := e.OnShiftUpdated(roster.ShiftDefinition{ID: "day", Start: roster.TimeOfDay{Hour: 88}})
	require.ErrorIs(t, err, roster.ErrInvalidShiftDefinition)

	after, ok := e.Interval("dayA")
	require.True(t, ok)
	assert.True(t, after.StartAt.Equal(before.StartAt) && after.FinishAt.Equal(before.FinishAt))

	shift, _ := e.Shift("day")
	assert.Equal(t, tod("08:00"), shift.Start, "catalog must keep the prior template")
}

func TestOnShiftDeleted(t *testing.T) {
	e := newTestEngine(t)

	err := e.OnShiftDeleted("day")
	require.ErrorIs(t, err, roster.ErrShiftInUse)

	var inUse *roster.ShiftInUseError
	require.ErrorAs(t, err, &inUse)
	assert.Equal(t, 1, inUse.Allocations)

	e.OnAllocationDeleted("dayA")
	require.NoError(t, e.OnShiftDeleted("day"))

	_, ok := e.Shift("day")
	assert.False(t, ok)

	require.ErrorIs(t, e.OnShiftDeleted("ghost"), roster.ErrShiftNotFound)
}

// =============================================================================
// ACCESSORS
// =============================================================================

func TestEngineAccessors(t *testing.T) {
	e := newTestEngine(t)

	shifts := e.Shifts()
	require.Len(t, shifts, 2)
	assert.Equal(t, roster.ShiftID("day"), shifts[0].ID) // sorted by ID

	a, ok := e.Allocation("nightB")
	require.True(t, ok)
	assert.Equal(t, []roster.SubjectID{"bob"}, a.Assignees)

	assert.Len(t, e.Allocations(), 2)
}

// =============================================================================
// AUDIT
// =============================================================================

func TestAudit_ConsistentEngineRepairsNothing(t *testing.T) {
	e := newTestEngine(t)

	repaired, err := e.Audit()
	require.NoError(t, err)
	assert.Empty(t, repaired)
}

// =============================================================================
// WRITE SERIALIZATION
// =============================================================================

// An update landing while an audit runs is a legitimate write, not drift.
// Whichever order the two serialize in, the updated date must survive.
func TestAudit_DoesNotRevertConcurrentUpdate(t *testing.T) {
	e := roster.NewEngine()
	require.NoError(t, e.OnShiftUpdated(dayShift()))

	// Enough entries that the audit pass does real work.
	for i := 0; i < 2000; i++ {
		id := fmt.Sprintf("a%04d", i)
		require.NoError(t, e.OnAllocationCreated(alloc(id, "day", date(2016, time.January, 1+i%28))))
	}

	original := alloc("victim", "day", date(2017, time.June, 1))
	moved := alloc("victim", "day", date(2018, time.December, 24))

	for trial := 0; trial < 20; trial++ {
		require.NoError(t, e.OnAllocationUpdated(original))

		var (
			wg        sync.WaitGroup
			auditErr  error
			updateErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, auditErr = e.Audit()
		}()
		go func() {
			defer wg.Done()
			updateErr = e.OnAllocationUpdated(moved)
		}()
		wg.Wait()
		require.NoError(t, auditErr)
		require.NoError(t, updateErr)

		got, ok := e.Allocation("victim")
		require.True(t, ok)
		assert.Equal(t, moved.Date, got.Date, "trial %d: completed update was reverted", trial)

		iv, ok := e.Interval("victim")
		require.True(t, ok)
		assert.True(t, iv.StartAt.Equal(utc(2018, time.December, 24, 8, 0)),
			"trial %d: interval resolved from stale state: %v", trial, iv.StartAt)
	}
}

// Allocation writes racing shift template swaps must always leave the index
// resolved against the catalog. A follow-up audit finding anything to repair
// means some write observed the catalog and mutated the index at different
// instants.
func TestEngine_ConcurrentShiftAndAllocationWrites(t *testing.T) {
	e := roster.NewEngine()
	require.NoError(t, e.OnShiftUpdated(dayShift()))

	templates := []roster.ShiftDefinition{
		{ID: "day", Name: "Day", Start: tod("08:00"), Finish: tod("16:00")},
		{ID: "day", Name: "Late", Start: tod("12:00"), Finish: tod("20:00")},
		{ID: "day", Name: "Graveyard", Start: tod("22:00"), Finish: tod("06:00")},
	}

	var wg sync.WaitGroup
	errs := make(chan error, 64)

	for w := 0; w < 4; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				id := fmt.Sprintf("w%d-%02d", w, i)
				if err := e.OnAllocationCreated(alloc(id, "day", date(2016, time.March, 1+i%28))); err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			if err := e.OnShiftUpdated(templates[i%len(templates)]); err != nil {
				errs <- err
				return
			}
		}
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	repaired, err := e.Audit()
	require.NoError(t, err)
	assert.Empty(t, repaired, "index diverged from catalog under concurrent writes")
}

package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/roster-engine/roster"
	"github.com/warp/roster-engine/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestShiftRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	shift := roster.ShiftDefinition{
		ID:     "night",
		Name:   "Night",
		Start:  roster.TimeOfDay{Hour: 22},
		Finish: roster.TimeOfDay{Hour: 6},
	}
	require.NoError(t, store.SaveShift(ctx, shift))

	got, err := store.GetShift(ctx, "night")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, shift, *got)

	// Upsert replaces in place.
	shift.Finish = roster.TimeOfDay{Hour: 7}
	require.NoError(t, store.SaveShift(ctx, shift))
	got, err = store.GetShift(ctx, "night")
	require.NoError(t, err)
	assert.Equal(t, 7, got.Finish.Hour)

	missing, err := store.GetShift(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAllocationRoundTrip_WithAssignees(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveShift(ctx, roster.ShiftDefinition{
		ID: "day", Start: roster.TimeOfDay{Hour: 8}, Finish: roster.TimeOfDay{Hour: 16},
	}))

	alloc := roster.Allocation{
		ID:        "a1",
		ShiftID:   "day",
		Date:      roster.NewDate(2016, time.January, 1),
		Assignees: []roster.SubjectID{"alice", "bob"},
	}
	require.NoError(t, store.SaveAllocation(ctx, alloc))

	got, err := store.GetAllocation(ctx, "a1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, alloc, *got)

	// Replacing assignees drops the old links.
	alloc.Assignees = []roster.SubjectID{"carol"}
	require.NoError(t, store.SaveAllocation(ctx, alloc))
	got, err = store.GetAllocation(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, []roster.SubjectID{"carol"}, got.Assignees)
}

func TestDeleteAllocation_CascadesAssignees(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveShift(ctx, roster.ShiftDefinition{
		ID: "day", Start: roster.TimeOfDay{Hour: 8}, Finish: roster.TimeOfDay{Hour: 16},
	}))
	require.NoError(t, store.SaveAllocation(ctx, roster.Allocation{
		ID: "a1", ShiftID: "day", Date: roster.NewDate(2016, time.January, 1),
		Assignees: []roster.SubjectID{"alice"},
	}))

	require.NoError(t, store.DeleteAllocation(ctx, "a1"))
	got, err := store.GetAllocation(ctx, "a1")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Re-creating the allocation must not resurrect old assignees.
	require.NoError(t, store.SaveAllocation(ctx, roster.Allocation{
		ID: "a1", ShiftID: "day", Date: roster.NewDate(2016, time.January, 2),
	}))
	got, err = store.GetAllocation(ctx, "a1")
	require.NoError(t, err)
	assert.Empty(t, got.Assignees)

	// Idempotent delete.
	require.NoError(t, store.DeleteAllocation(ctx, "never-existed"))
}

func TestListAllocationsByShift(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []roster.ShiftID{"day", "night"} {
		require.NoError(t, store.SaveShift(ctx, roster.ShiftDefinition{
			ID: id, Start: roster.TimeOfDay{Hour: 8}, Finish: roster.TimeOfDay{Hour: 16},
		}))
	}
	require.NoError(t, store.SaveAllocation(ctx, roster.Allocation{ID: "d1", ShiftID: "day", Date: roster.NewDate(2016, time.January, 1)}))
	require.NoError(t, store.SaveAllocation(ctx, roster.Allocation{ID: "d2", ShiftID: "day", Date: roster.NewDate(2016, time.January, 2)}))
	require.NoError(t, store.SaveAllocation(ctx, roster.Allocation{ID: "n1", ShiftID: "night", Date: roster.NewDate(2016, time.January, 1)}))

	byShift, err := store.ListAllocationsByShift(ctx, "day")
	require.NoError(t, err)
	require.Len(t, byShift, 2)
	assert.Equal(t, roster.AllocationID("d1"), byShift[0].ID)
	assert.Equal(t, roster.AllocationID("d2"), byShift[1].ID)
}

func TestLoadAll_FeedsEngineLoad(t *testing.T) {
	// The boot path end to end: persist, LoadAll, roster.Load, query.
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveShift(ctx, roster.ShiftDefinition{
		ID: "night", Start: roster.TimeOfDay{Hour: 22}, Finish: roster.TimeOfDay{Hour: 6},
	}))
	require.NoError(t, store.SaveAllocation(ctx, roster.Allocation{
		ID: "n1", ShiftID: "night", Date: roster.NewDate(2016, time.January, 1),
		Assignees: []roster.SubjectID{"bob"},
	}))

	shifts, allocations, err := store.LoadAll(ctx)
	require.NoError(t, err)

	engine, err := roster.Load(shifts, allocations)
	require.NoError(t, err)

	ids := engine.ActiveAt(time.Date(2016, time.January, 2, 1, 0, 0, 0, time.UTC))
	assert.Equal(t, []roster.AllocationID{"n1"}, ids)
}

/*
Package sqlite persists shift definitions and allocations.

PURPOSE:
  The persistence collaborator of the roster engine. The engine itself is
  in-memory and never polls storage; this store loads the full data set at
  boot (LoadAll) and is written by the HTTP layer, which then pushes each
  change into the engine through its notification methods.

KEY TABLES:
  shifts:                time-of-day templates (start/finish as "HH:MM")
  allocations:           date-bound shift assignments ("YYYY-MM-DD")
  allocation_assignees:  subject links, cascade-deleted with the allocation

WHAT IS NOT STORED:
  Resolved intervals. They are a deterministic function of (shift, date)
  and are rebuilt by the engine at load time; persisting them would create
  a second source of truth that could drift.

WAL MODE:
  SQLite is opened with WAL and foreign keys on. The assignee cascade
  relies on foreign_keys=on, so it is part of the DSN, not a pragma left
  to callers.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool with versioned migrations.

SEE ALSO:
  - roster/engine.go: Load and the On* notification contract
  - api/handlers.go:  the write path (persist, then notify)
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/roster-engine/roster"
)

// Store implements persistence for shifts and allocations using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Shift templates: wall-clock times only, no date component.
	CREATE TABLE IF NOT EXISTS shifts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		start_time TEXT NOT NULL,
		finish_time TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Allocations: one shift on one calendar date.
	CREATE TABLE IF NOT EXISTS allocations (
		id TEXT PRIMARY KEY,
		shift_id TEXT NOT NULL REFERENCES shifts(id),
		date TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_allocations_shift
		ON allocations(shift_id);
	CREATE INDEX IF NOT EXISTS idx_allocations_date
		ON allocations(date);

	-- Assignee links, removed with their allocation.
	CREATE TABLE IF NOT EXISTS allocation_assignees (
		allocation_id TEXT NOT NULL REFERENCES allocations(id) ON DELETE CASCADE,
		subject_id TEXT NOT NULL,
		PRIMARY KEY (allocation_id, subject_id)
	);

	CREATE INDEX IF NOT EXISTS idx_assignees_subject
		ON allocation_assignees(subject_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SHIFTS
// =============================================================================

// SaveShift inserts or replaces a shift template.
func (s *Store) SaveShift(ctx context.Context, shift roster.ShiftDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shifts (id, name, start_time, finish_time, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			start_time = excluded.start_time,
			finish_time = excluded.finish_time,
			updated_at = excluded.updated_at`,
		string(shift.ID), shift.Name, shift.Start.String(), shift.Finish.String(), now, now)
	return err
}

// GetShift returns nil without error when the shift does not exist.
func (s *Store) GetShift(ctx context.Context, id roster.ShiftID) (*roster.ShiftDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, start_time, finish_time FROM shifts WHERE id = ?`, string(id))
	shift, err := scanShift(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return shift, nil
}

func (s *Store) ListShifts(ctx context.Context) ([]roster.ShiftDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listShiftsLocked(ctx)
}

func (s *Store) listShiftsLocked(ctx context.Context) ([]roster.ShiftDefinition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, start_time, finish_time FROM shifts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []roster.ShiftDefinition
	for rows.Next() {
		shift, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *shift)
	}
	return out, rows.Err()
}

// DeleteShift removes a shift template. The caller (HTTP layer) checks the
// engine's in-use state first; the foreign key is the backstop.
func (s *Store) DeleteShift(ctx context.Context, id roster.ShiftID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM shifts WHERE id = ?`, string(id))
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShift(r rowScanner) (*roster.ShiftDefinition, error) {
	var id, name, start, finish string
	if err := r.Scan(&id, &name, &start, &finish); err != nil {
		return nil, err
	}
	startTD, err := roster.ParseTimeOfDay(start)
	if err != nil {
		return nil, fmt.Errorf("shift %s: %w", id, err)
	}
	finishTD, err := roster.ParseTimeOfDay(finish)
	if err != nil {
		return nil, fmt.Errorf("shift %s: %w", id, err)
	}
	return &roster.ShiftDefinition{
		ID:     roster.ShiftID(id),
		Name:   name,
		Start:  startTD,
		Finish: finishTD,
	}, nil
}

// =============================================================================
// ALLOCATIONS
// =============================================================================

// SaveAllocation inserts or replaces an allocation and its assignee links
// atomically.
func (s *Store) SaveAllocation(ctx context.Context, alloc roster.Allocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO allocations (id, shift_id, date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			shift_id = excluded.shift_id,
			date = excluded.date,
			updated_at = excluded.updated_at`,
		string(alloc.ID), string(alloc.ShiftID), alloc.Date.String(), now, now); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM allocation_assignees WHERE allocation_id = ?`, string(alloc.ID)); err != nil {
		return err
	}
	for _, sub := range alloc.Assignees {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO allocation_assignees (allocation_id, subject_id) VALUES (?, ?)`,
			string(alloc.ID), string(sub)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetAllocation returns nil without error when the allocation does not exist.
func (s *Store) GetAllocation(ctx context.Context, id roster.AllocationID) (*roster.Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, shift_id, date FROM allocations WHERE id = ?`, string(id))
	alloc, err := scanAllocation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadAssignees(ctx, alloc); err != nil {
		return nil, err
	}
	return alloc, nil
}

func (s *Store) ListAllocations(ctx context.Context) ([]roster.Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listAllocationsLocked(ctx, `SELECT id, shift_id, date FROM allocations ORDER BY date, id`)
}

// ListAllocationsByShift supports shift-scoped tooling and mirrors the
// engine's rebuild granularity.
func (s *Store) ListAllocationsByShift(ctx context.Context, shiftID roster.ShiftID) ([]roster.Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listAllocationsLocked(ctx,
		`SELECT id, shift_id, date FROM allocations WHERE shift_id = ? ORDER BY date, id`, string(shiftID))
}

func (s *Store) listAllocationsLocked(ctx context.Context, query string, args ...any) ([]roster.Allocation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []roster.Allocation
	for rows.Next() {
		alloc, err := scanAllocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *alloc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := s.loadAssignees(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DeleteAllocation removes the allocation; assignee links cascade.
// Deleting an absent ID is a no-op, matching the engine's Remove semantics.
func (s *Store) DeleteAllocation(ctx context.Context, id roster.AllocationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM allocations WHERE id = ?`, string(id))
	return err
}

func (s *Store) loadAssignees(ctx context.Context, alloc *roster.Allocation) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT subject_id FROM allocation_assignees WHERE allocation_id = ? ORDER BY subject_id`,
		string(alloc.ID))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var sub string
		if err := rows.Scan(&sub); err != nil {
			return err
		}
		alloc.Assignees = append(alloc.Assignees, roster.SubjectID(sub))
	}
	return rows.Err()
}

func scanAllocation(r rowScanner) (*roster.Allocation, error) {
	var id, shiftID, dateStr string
	if err := r.Scan(&id, &shiftID, &dateStr); err != nil {
		return nil, err
	}
	d, err := roster.ParseDate(dateStr)
	if err != nil {
		return nil, fmt.Errorf("allocation %s: %w", id, err)
	}
	return &roster.Allocation{
		ID:      roster.AllocationID(id),
		ShiftID: roster.ShiftID(shiftID),
		Date:    d,
	}, nil
}

// =============================================================================
// BOOT LOAD
// =============================================================================

// LoadAll returns the full data set for the engine's initial build.
func (s *Store) LoadAll(ctx context.Context) ([]roster.ShiftDefinition, []roster.Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	shifts, err := s.listShiftsLocked(ctx)
	if err != nil {
		return nil, nil, err
	}
	allocations, err := s.listAllocationsLocked(ctx,
		`SELECT id, shift_id, date FROM allocations ORDER BY date, id`)
	if err != nil {
		return nil, nil, err
	}
	return shifts, allocations, nil
}

/*
Package sqlite provides the SQLite-backed audit store.

PURPOSE:
  Durable implementation of store.AuditStore. In production, the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

APPEND-ONLY ENFORCEMENT:
  The audit trail is append-only:
  - No UPDATE statements on either table
  - No DELETE statements on either table

KEY TABLES:
  classification_runs:  One row per classifier run
  remark_events:        One row per actual remark transition

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  audit, err := sqlite.New("./data/cashwatch.db")
  if err != nil {
      log.Fatal(err)
  }
  defer audit.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - store/store.go: Interface definition
  - store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/postnet/cashwatch/store"
)

// Store implements store.AuditStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite audit store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Classification runs (append-only)
	CREATE TABLE IF NOT EXISTS classification_runs (
		id TEXT PRIMARY KEY,
		working_days INTEGER NOT NULL,
		from_date TEXT,
		to_date TEXT,
		branch_flagged INTEGER NOT NULL,
		sub_flagged INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created_at
		ON classification_runs(created_at);

	-- Remark transitions (append-only)
	CREATE TABLE IF NOT EXISTS remark_events (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		office_type TEXT NOT NULL,
		office_name TEXT NOT NULL,
		division TEXT NOT NULL,
		previous TEXT NOT NULL,
		current TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_remark_events_session
		ON remark_events(session_id);
	CREATE INDEX IF NOT EXISTS idx_remark_events_created_at
		ON remark_events(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RUNS
// =============================================================================

// RecordRun appends a classification run record.
func (s *Store) RecordRun(ctx context.Context, run store.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO classification_runs
			(id, working_days, from_date, to_date, branch_flagged, sub_flagged, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.WorkingDays, run.FromDate, run.ToDate,
		run.BranchFlagged, run.SubFlagged, run.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// ListRuns returns runs newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]store.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, working_days, from_date, to_date, branch_flagged, sub_flagged, created_at
		FROM classification_runs
		ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []store.RunRecord
	for rows.Next() {
		var run store.RunRecord
		var createdAt string
		if err := rows.Scan(&run.ID, &run.WorkingDays, &run.FromDate, &run.ToDate,
			&run.BranchFlagged, &run.SubFlagged, &createdAt); err != nil {
			return nil, err
		}
		run.CreatedAt = parseTime(createdAt)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// =============================================================================
// REMARK EVENTS
// =============================================================================

// RecordRemarkEvent appends a remark transition.
func (s *Store) RecordRemarkEvent(ctx context.Context, event store.RemarkEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO remark_events
			(id, session_id, office_type, office_name, division, previous, current, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.SessionID, event.OfficeType, event.OfficeName,
		event.Division, event.Previous, event.Current, event.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to record remark event: %w", err)
	}
	return nil
}

// ListRemarkEvents returns events newest first.
func (s *Store) ListRemarkEvents(ctx context.Context, limit int) ([]store.RemarkEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, session_id, office_type, office_name, division, previous, current, created_at
		FROM remark_events
		ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query remark events: %w", err)
	}
	defer rows.Close()

	var events []store.RemarkEvent
	for rows.Next() {
		var event store.RemarkEvent
		var createdAt string
		if err := rows.Scan(&event.ID, &event.SessionID, &event.OfficeType,
			&event.OfficeName, &event.Division, &event.Previous, &event.Current,
			&createdAt); err != nil {
			return nil, err
		}
		event.CreatedAt = parseTime(createdAt)
		events = append(events, event)
	}
	return events, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

const timeLayout = time.RFC3339Nano

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

/*
Package store defines the audit trail persistence interface.

PURPOSE:
  The pipeline itself is stateless between runs — sessions re-derive from
  the last exported envelope. What IS worth keeping is history: which
  classification runs happened, and who moved which office to which
  remediation status, when. AuditStore is that append-only record.

  Losing the audit store never breaks the pipeline; it only loses
  hindsight. Both implementations (memory here, SQLite in store/sqlite)
  are append-only: no update, no delete.

SEE ALSO:
  - store/sqlite: Durable implementation
  - api/handlers.go: Records runs and remark events
*/
package store

import (
	"context"
	"time"
)

// RunRecord captures one classification run.
type RunRecord struct {
	ID            string
	WorkingDays   int
	FromDate      string // DD-MM-YYYY, empty for an empty input window
	ToDate        string
	BranchFlagged int
	SubFlagged    int
	CreatedAt     time.Time
}

// RemarkEvent captures one remark transition in a tracking session.
// No-op updates never produce an event.
type RemarkEvent struct {
	ID         string
	SessionID  string
	OfficeType string
	OfficeName string
	Division   string
	Previous   string
	Current    string
	CreatedAt  time.Time
}

// AuditStore persists the audit trail. Append-only.
type AuditStore interface {
	RecordRun(ctx context.Context, run RunRecord) error
	RecordRemarkEvent(ctx context.Context, event RemarkEvent) error

	// ListRuns returns runs newest first, at most limit (<=0 means all).
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)

	// ListRemarkEvents returns events newest first, at most limit
	// (<=0 means all).
	ListRemarkEvents(ctx context.Context, limit int) ([]RemarkEvent, error)
}

/*
Package tracker implements the remark-tracking workflow over a re-uploaded
report envelope.

PURPOSE:
  After the classifier exports the very-high-risk list, an operator works
  through it office by office, marking each one Pending / Cash Remitted /
  Balance lowered. A Session holds that working state for one uploaded
  envelope: two partitioned row lists (branch, sub) and a remark index
  keyed by the stable (type, name, division) office key.

  Sessions are in-memory only. Everything a session knows is re-derivable
  from the last exported envelope, so losing one costs nothing but the
  re-upload. There is deliberately no durable session store.

MUTATION RULES:
  - New remark assignments must come from the fixed three-value set.
  - Remark strings already present in an uploaded file are preserved
    as-is, whatever they say.
  - Applying a row's current state is a no-op: no mutation, no event.
  - A real change mutates immediately under the session lock and emits
    exactly one ChangeEvent to the registered Notifier.

SEE ALSO:
  - envelope/envelope.go: The format sessions ingest and export
  - api/handlers.go: Drives sessions over HTTP and audits the events
*/
package tracker

import (
	"fmt"
	"sync"
	"time"

	"github.com/postnet/cashwatch/envelope"
	"github.com/postnet/cashwatch/risk"
)

// =============================================================================
// CHANGE EVENTS
// =============================================================================

// ChangeEvent describes one remark transition. The UI layer turns these
// into the operator-audible alert; the api layer records them for audit.
type ChangeEvent struct {
	SessionID string
	Key       risk.OfficeKey
	Previous  risk.RemarkState
	Current   risk.RemarkState
	At        time.Time
}

// Notifier receives remark change events. Implementations must not block;
// a slow consumer holds the session lock.
type Notifier interface {
	RemarkChanged(event ChangeEvent)
}

// NopNotifier discards events.
type NopNotifier struct{}

func (NopNotifier) RemarkChanged(ChangeEvent) {}

// =============================================================================
// SESSION
// =============================================================================

// Session is one operator's working state over one uploaded envelope.
// All methods are safe for concurrent use; remark updates are atomic
// read-modify-write under the session lock.
type Session struct {
	ID string

	mu       sync.RWMutex
	branch   []envelope.Row
	sub      []envelope.Row
	fromDate risk.Date
	toDate   risk.Date
	notifier Notifier
	now      func() time.Time
}

// Option configures a Session.
type Option func(*Session)

// WithNotifier registers the change event consumer.
func WithNotifier(n Notifier) Option {
	return func(s *Session) { s.notifier = n }
}

// WithClock overrides the session clock (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// New builds a session from a decoded envelope. Rows partition by office
// type; rows of neither known type are dropped, as the original export
// path would drop them.
func New(id string, env *envelope.Envelope, opts ...Option) *Session {
	s := &Session{
		ID:       id,
		fromDate: env.FromDate,
		toDate:   env.ToDate,
		notifier: NopNotifier{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, row := range env.Rows {
		switch row.OfficeType {
		case risk.OfficeBranch:
			s.branch = append(s.branch, row)
		case risk.OfficeSub:
			s.sub = append(s.sub, row)
		}
	}
	return s
}

// Branch returns a copy of the branch partition in envelope order.
func (s *Session) Branch() []envelope.Row {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]envelope.Row{}, s.branch...)
}

// Sub returns a copy of the sub partition in envelope order.
func (s *Session) Sub() []envelope.Row {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]envelope.Row{}, s.sub...)
}

// Window returns the reporting window recovered from the uploaded
// envelope. Zero dates mean the upload carried no footer.
func (s *Session) Window() (from, to risk.Date) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fromDate, s.toDate
}

// =============================================================================
// REMARK UPDATES
// =============================================================================

// Apply sets the remark for the office identified by key. It returns the
// updated row and whether the state actually changed; a no-op change
// emits no event. Assigning a state outside the fixed set fails with
// ErrInvalidRemark; an unknown key fails with ErrUnknownOffice.
func (s *Session) Apply(key risk.OfficeKey, state risk.RemarkState) (envelope.Row, bool, error) {
	if !state.Valid() {
		return envelope.Row{}, false, fmt.Errorf("%w: %q", risk.ErrInvalidRemark, state)
	}

	s.mu.Lock()
	rows := s.partition(key.Type)
	idx := -1
	for i := range rows {
		if rows[i].Key() == key {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return envelope.Row{}, false, fmt.Errorf("%w: %s / %s (%s)",
			risk.ErrUnknownOffice, key.Name, key.Division, key.Type)
	}
	row, changed, event := s.applyLocked(rows, idx, state)
	s.mu.Unlock()

	if changed {
		s.notifier.RemarkChanged(event)
	}
	return row, changed, nil
}

// ApplyAt sets the remark by position within a type partition. This is
// the contract the original row-indexed UI speaks; it resolves to the
// same mutation path as Apply.
func (s *Session) ApplyAt(officeType risk.OfficeType, index int, state risk.RemarkState) (envelope.Row, bool, error) {
	if !state.Valid() {
		return envelope.Row{}, false, fmt.Errorf("%w: %q", risk.ErrInvalidRemark, state)
	}

	s.mu.Lock()
	rows := s.partition(officeType)
	if index < 0 || index >= len(rows) {
		s.mu.Unlock()
		return envelope.Row{}, false, fmt.Errorf("%w: %s index %d",
			risk.ErrUnknownOffice, officeType, index)
	}
	row, changed, event := s.applyLocked(rows, index, state)
	s.mu.Unlock()

	if changed {
		s.notifier.RemarkChanged(event)
	}
	return row, changed, nil
}

// applyLocked performs the mutation. Callers hold the write lock.
func (s *Session) applyLocked(rows []envelope.Row, idx int, state risk.RemarkState) (envelope.Row, bool, ChangeEvent) {
	previous := rows[idx].Remark
	if previous == state {
		return rows[idx], false, ChangeEvent{}
	}
	rows[idx].Remark = state
	return rows[idx], true, ChangeEvent{
		SessionID: s.ID,
		Key:       rows[idx].Key(),
		Previous:  previous,
		Current:   state,
		At:        s.now(),
	}
}

func (s *Session) partition(officeType risk.OfficeType) []envelope.Row {
	if officeType == risk.OfficeSub {
		return s.sub
	}
	return s.branch
}

// =============================================================================
// EXPORT
// =============================================================================

// Export re-emits the working state as an envelope: branch rows then sub
// rows, with the uploaded file's window and a Last Updated stamp taken at
// export time.
func (s *Session) Export() *envelope.Envelope {
	s.mu.RLock()
	defer s.mu.RUnlock()
	env := &envelope.Envelope{FromDate: s.fromDate, ToDate: s.toDate}
	env.Rows = append(env.Rows, s.branch...)
	env.Rows = append(env.Rows, s.sub...)
	return env
}

// ExportFilename is the download name for a tracker export, matching the
// original dashboard.
func (s *Session) ExportFilename() string { return "High_Risk_Updated.xlsx" }

package store

import (
	"context"
	"sync"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu     sync.RWMutex
	runs   []RunRecord
	events []RemarkEvent
}

func NewMemory() *Memory {
	return &Memory{}
}

// RecordRun appends a run record. Append-only.
func (m *Memory) RecordRun(_ context.Context, run RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

// RecordRemarkEvent appends a remark event. Append-only.
func (m *Memory) RecordRemarkEvent(_ context.Context, event RemarkEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// ListRuns returns runs newest first.
func (m *Memory) ListRuns(_ context.Context, limit int) ([]RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]RunRecord, 0, len(m.runs))
	for i := len(m.runs) - 1; i >= 0; i-- {
		out = append(out, m.runs[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// ListRemarkEvents returns events newest first.
func (m *Memory) ListRemarkEvents(_ context.Context, limit int) ([]RemarkEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]RemarkEvent, 0, len(m.events))
	for i := len(m.events) - 1; i >= 0; i-- {
		out = append(out, m.events[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

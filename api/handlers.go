/*
handlers.go - HTTP API handlers for the cash-position risk monitor

PURPOSE:
  Exposes the classifier and the remark tracker via REST API. Handles
  HTTP request/response, file upload plumbing, JSON serialization, and
  delegates all semantics to the risk/envelope/tracker packages.

ENDPOINTS:
  Classification:
    POST   /api/classify               Upload raw daily records, classify

  Sessions:
    POST   /api/sessions               Upload an exported envelope, track
    GET    /api/sessions/{id}          Session view
    POST   /api/sessions/{id}/remarks  Set one office's remark
    GET    /api/sessions/{id}/export   Download the session as xlsx

  Audit:
    GET    /api/audit/runs             Recorded classification runs
    GET    /api/audit/events           Recorded remark transitions

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Audit: append-only audit store
  - Logger: slog
  - sessions: in-process session map behind a mutex

  Sessions live for the process lifetime and are re-derivable from their
  exported envelope; there is no durable session state.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Schema/envelope/remark validation errors
  - 404: Unknown session or office
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup, middleware, and the token gate
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/postnet/cashwatch/envelope"
	"github.com/postnet/cashwatch/risk"
	"github.com/postnet/cashwatch/store"
	"github.com/postnet/cashwatch/tabular"
	"github.com/postnet/cashwatch/tracker"
)

// maxUploadBytes caps multipart parsing; daily files run to a few MB.
const maxUploadBytes = 32 << 20

// Session kinds.
const (
	kindClassification = "classification"
	kindTracking       = "tracking"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Audit  store.AuditStore
	Logger *slog.Logger

	clock func() time.Time

	mu       sync.RWMutex
	sessions map[string]*sessionEntry
}

type sessionEntry struct {
	kind    string
	session *tracker.Session
	// filename is the download name for the session's export.
	filename string
}

// NewHandler creates a new handler backed by the given audit store.
func NewHandler(audit store.AuditStore, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Audit:    audit,
		Logger:   logger,
		clock:    time.Now,
		sessions: make(map[string]*sessionEntry),
	}
}

// =============================================================================
// CLASSIFICATION
// =============================================================================

// Classify ingests a raw daily cash-position upload, runs the classifier,
// and opens a session holding the resulting envelope.
// POST /api/classify  (multipart field "file")
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	grid, filename, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	result, err := risk.ClassifyGrid(grid)
	if err != nil {
		var schemaErr *risk.SchemaError
		if errors.As(err, &schemaErr) {
			writeErrorCode(w, http.StatusBadRequest, "Missing required columns",
				"missing_columns", schemaErr.Missing)
			return
		}
		if risk.IsClientError(err) {
			writeError(w, http.StatusBadRequest, "Invalid input file", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Classification failed", err)
		return
	}

	env := envelope.FromResult(result)
	id := uuid.NewString()
	entry := &sessionEntry{
		kind:     kindClassification,
		session:  tracker.New(id, env, tracker.WithNotifier(h.notifier()), tracker.WithClock(h.clock)),
		filename: env.ExportFilename(),
	}

	h.mu.Lock()
	h.sessions[id] = entry
	h.mu.Unlock()

	h.recordRun(r.Context(), id, result)
	h.Logger.Info("classified upload",
		"session_id", id,
		"file", filename,
		"working_days", result.WorkingDays,
		"branch_flags", len(result.Flags[risk.OfficeBranch]),
		"sub_flags", len(result.Flags[risk.OfficeSub]),
	)

	writeJSON(w, http.StatusCreated, ClassifyResponse{
		SessionID:      id,
		WorkingDays:    result.WorkingDays,
		FromDate:       displayDate(result.FromDate),
		ToDate:         displayDate(result.ToDate),
		BranchSummary:  toTypeSummaryDTO(result.Summary[risk.OfficeBranch]),
		SubSummary:     toTypeSummaryDTO(result.Summary[risk.OfficeSub]),
		BranchFlags:    toRowDTOs(entry.session.Branch()),
		SubFlags:       toRowDTOs(entry.session.Sub()),
		ExportFilename: entry.filename,
	})
}

func (h *Handler) recordRun(ctx context.Context, sessionID string, result *risk.Result) {
	if h.Audit == nil {
		return
	}
	run := store.RunRecord{
		ID:            sessionID,
		WorkingDays:   result.WorkingDays,
		FromDate:      displayDate(result.FromDate),
		ToDate:        displayDate(result.ToDate),
		BranchFlagged: len(result.Flags[risk.OfficeBranch]),
		SubFlagged:    len(result.Flags[risk.OfficeSub]),
		CreatedAt:     h.clock(),
	}
	if err := h.Audit.RecordRun(ctx, run); err != nil {
		h.Logger.Warn("failed to record classification run", "error", err)
	}
}

// =============================================================================
// SESSIONS
// =============================================================================

// CreateSession ingests a previously exported envelope for remark tracking.
// POST /api/sessions  (multipart field "file")
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	grid, filename, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	env, err := envelope.Decode(grid)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid envelope file", err)
		return
	}

	id := uuid.NewString()
	session := tracker.New(id, env, tracker.WithNotifier(h.notifier()), tracker.WithClock(h.clock))
	entry := &sessionEntry{
		kind:     kindTracking,
		session:  session,
		filename: session.ExportFilename(),
	}

	h.mu.Lock()
	h.sessions[id] = entry
	h.mu.Unlock()

	h.Logger.Info("opened tracking session",
		"session_id", id,
		"file", filename,
		"branch_rows", len(session.Branch()),
		"sub_rows", len(session.Sub()),
	)

	writeJSON(w, http.StatusCreated, h.toSessionDTO(id, entry))
}

// GetSession returns a session view.
// GET /api/sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entry, ok := h.lookup(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Session not found", risk.ErrSessionNotFound)
		return
	}
	writeJSON(w, http.StatusOK, h.toSessionDTO(id, entry))
}

// UpdateRemark sets the remark for one office in a session.
// POST /api/sessions/{id}/remarks
func (h *Handler) UpdateRemark(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entry, ok := h.lookup(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Session not found", risk.ErrSessionNotFound)
		return
	}

	var req UpdateRemarkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	officeType := risk.OfficeType(req.OfficeType)
	if !officeType.Valid() {
		writeError(w, http.StatusBadRequest, "Unknown office type", nil)
		return
	}
	state := risk.RemarkState(req.Remark)

	var (
		row     envelope.Row
		changed bool
		err     error
	)
	if req.OfficeName != "" {
		key := risk.OfficeKey{Type: officeType, Name: req.OfficeName, Division: req.Division}
		row, changed, err = entry.session.Apply(key, state)
	} else if req.Index != nil {
		row, changed, err = entry.session.ApplyAt(officeType, *req.Index, state)
	} else {
		writeError(w, http.StatusBadRequest, "Provide office_name or index", nil)
		return
	}

	if err != nil {
		switch {
		case risk.IsNotFound(err):
			writeError(w, http.StatusNotFound, "Office not found in session", err)
		case risk.IsClientError(err):
			writeError(w, http.StatusBadRequest, "Invalid remark", err)
		default:
			writeError(w, http.StatusInternalServerError, "Failed to update remark", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, UpdateRemarkResponse{Row: toRowDTO(row), Notify: changed})
}

// ExportSession streams the session's current state as an xlsx download.
// GET /api/sessions/{id}/export
func (h *Handler) ExportSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entry, ok := h.lookup(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Session not found", risk.ErrSessionNotFound)
		return
	}

	sheet := "Updated"
	if entry.kind == kindClassification {
		sheet = "High_Risk_Offices"
	}
	grid := entry.session.Export().Encode(h.clock())

	w.Header().Set("Content-Type", tabular.XLSXContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+entry.filename+`"`)
	if err := tabular.WriteXLSX(w, sheet, grid); err != nil {
		// Headers are out; all we can do is log.
		h.Logger.Error("failed to stream export", "session_id", id, "error", err)
	}
}

// =============================================================================
// AUDIT
// =============================================================================

// ListRuns returns recorded classification runs, newest first.
// GET /api/audit/runs
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Audit.ListRuns(r.Context(), auditLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}
	dtos := make([]RunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toRunDTO(run)
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": dtos})
}

// ListRemarkEvents returns recorded remark transitions, newest first.
// GET /api/audit/events
func (h *Handler) ListRemarkEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.Audit.ListRemarkEvents(r.Context(), auditLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list remark events", err)
		return
	}
	dtos := make([]RemarkEventDTO, len(events))
	for i, event := range events {
		dtos[i] = toRemarkEventDTO(event)
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": dtos})
}

func auditLimit(r *http.Request) int {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}
	return limit
}

// Healthz is the ungated liveness probe.
// GET /api/healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

// auditNotifier forwards remark change events to the audit store and the
// log. The alert sound itself belongs to the UI; this is the event that
// drives it.
type auditNotifier struct {
	h *Handler
}

func (h *Handler) notifier() tracker.Notifier { return auditNotifier{h: h} }

func (n auditNotifier) RemarkChanged(event tracker.ChangeEvent) {
	n.h.Logger.Info("remark changed",
		"session_id", event.SessionID,
		"office", event.Key.Name,
		"division", event.Key.Division,
		"office_type", string(event.Key.Type),
		"from", string(event.Previous),
		"to", string(event.Current),
	)
	if n.h.Audit == nil {
		return
	}
	record := store.RemarkEvent{
		ID:         uuid.NewString(),
		SessionID:  event.SessionID,
		OfficeType: string(event.Key.Type),
		OfficeName: event.Key.Name,
		Division:   event.Key.Division,
		Previous:   string(event.Previous),
		Current:    string(event.Current),
		CreatedAt:  event.At,
	}
	if err := n.h.Audit.RecordRemarkEvent(context.Background(), record); err != nil {
		n.h.Logger.Warn("failed to record remark event", "error", err)
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// readUpload parses the multipart "file" field into a grid. On failure it
// writes the error response and returns ok=false.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (grid [][]string, filename string, ok bool) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart upload", err)
		return nil, "", false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing file field", err)
		return nil, "", false
	}
	defer file.Close()

	grid, err = tabular.ReadGrid(file, header.Filename)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unreadable file", err)
		return nil, "", false
	}
	return grid, header.Filename, true
}

func (h *Handler) lookup(id string) (*sessionEntry, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	entry, ok := h.sessions[id]
	return entry, ok
}

func (h *Handler) toSessionDTO(id string, entry *sessionEntry) SessionDTO {
	from, to := entry.session.Window()
	return SessionDTO{
		ID:             id,
		Kind:           entry.kind,
		FromDate:       displayDate(from),
		ToDate:         displayDate(to),
		BranchRows:     toRowDTOs(entry.session.Branch()),
		SubRows:        toRowDTOs(entry.session.Sub()),
		RemarkOptions:  remarkOptionStrings(),
		ExportFilename: entry.filename,
	}
}

func displayDate(d risk.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.Display()
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func writeErrorCode(w http.ResponseWriter, status int, message, code string, details any) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code, Details: details})
}

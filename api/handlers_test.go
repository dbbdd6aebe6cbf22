/*
handlers_test.go - Unit tests for API handlers

Tests for:
- Classification uploads (happy path and schema failures)
- Tracking sessions: ingest, remark updates, exports
- Audit endpoints
- The token gate
*/
package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postnet/cashwatch/risk"
	"github.com/postnet/cashwatch/store"
	"github.com/postnet/cashwatch/tabular"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestServer(t *testing.T, token string) (http.Handler, *store.Memory) {
	t.Helper()
	audit := store.NewMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(audit, logger)
	return NewRouter(h, token), audit
}

// uploadRequest builds a multipart POST carrying grid as a csv file.
func uploadRequest(t *testing.T, target, filename string, grid [][]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	require.NoError(t, tabular.WriteCSV(fw, grid))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func rawPositionsGrid() [][]string {
	return [][]string{
		append([]string{}, risk.RequiredColumns...),
		{"01092026", "Jabalpur", "BPO", "Sihora", "S1", "500000", "241000", "741000"},
		{"02092026", "Jabalpur", "BPO", "Sihora", "S1", "500000", "241000", "741000"},
		{"01092026", "Katni", "SPO", "Kundam", "K1", "900000", "675000", "1575000"},
		{"02092026", "Katni", "SPO", "Kundam", "K1", "900000", "675000", "1575000"},
	}
}

func classify(t *testing.T, srv http.Handler) ClassifyResponse {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, uploadRequest(t, "/api/classify", "daily.csv", rawPositionsGrid()))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp ClassifyResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func postJSON(t *testing.T, srv http.Handler, target string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

// =============================================================================
// CLASSIFICATION
// =============================================================================

func TestClassify_HappyPath(t *testing.T) {
	srv, audit := newTestServer(t, "")

	resp := classify(t, srv)

	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, 2, resp.WorkingDays)
	assert.Equal(t, "01-09-2026", resp.FromDate)
	assert.Equal(t, "02-09-2026", resp.ToDate)
	require.Len(t, resp.BranchFlags, 1)
	assert.Equal(t, "Sihora", resp.BranchFlags[0].OfficeName)
	assert.Equal(t, "2.41 L", resp.BranchFlags[0].AvgExcess)
	assert.Equal(t, "Pending", resp.BranchFlags[0].Remark)
	require.Len(t, resp.SubFlags, 1)
	assert.Equal(t, "Kundam", resp.SubFlags[0].OfficeName)
	assert.Equal(t, "High_Risk_Offices_01092026_to_02092026.xlsx", resp.ExportFilename)

	// The run lands in the audit trail
	runs, err := audit.ListRuns(nil, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, resp.SessionID, runs[0].ID)
	assert.Equal(t, 1, runs[0].BranchFlagged)
}

func TestClassify_MissingColumn_400WithExactName(t *testing.T) {
	srv, _ := newTestServer(t, "")

	grid := [][]string{
		{"Date", "Division", "Office Type", "Office Name", "Office ID", "Max Amount", "Closing Balance"},
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, uploadRequest(t, "/api/classify", "daily.csv", grid))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "missing_columns", resp.Code)
	details, ok := resp.Details.([]any)
	require.True(t, ok)
	assert.Equal(t, []any{"Excess Amount"}, details)
}

func TestClassify_MissingFileField_400(t *testing.T) {
	srv, _ := newTestServer(t, "")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/classify", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// EXPORT
// =============================================================================

func TestExportSession_StreamsWorkbook(t *testing.T) {
	srv, _ := newTestServer(t, "")
	resp := classify(t, srv)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/"+resp.SessionID+"/export", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, tabular.XLSXContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), resp.ExportFilename)

	grid, err := tabular.ReadXLSX(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	// header + 2 flags + 2 footer rows
	require.Len(t, grid, 5)
	assert.Equal(t, "Sihora", grid[1][0])
	assert.True(t, strings.HasPrefix(grid[3][0], "From Date: 01-09-2026"))
	assert.True(t, strings.HasPrefix(grid[4][0], "Last Updated (IST): "))
}

func TestExportSession_Unknown_404(t *testing.T) {
	srv, _ := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/nope/export", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// TRACKING SESSIONS
// =============================================================================

// exportedEnvelopeGrid mimics a file previously downloaded from the
// classifier, footers included.
func exportedEnvelopeGrid() [][]string {
	return [][]string{
		{"Office Name", "Division", "Days_Exceeding_Threshold", "Avg_Excess_Above_Threshold", "Office Type", "Remark"},
		{"Sihora", "Jabalpur", "2", "2.41 L", "BPO", "Pending"},
		{"Kundam", "Katni", "2", "6.75 L", "SPO", "Pending"},
		{"From Date: 01-09-2026", "To Date: 02-09-2026", "", "", "", ""},
		{"Last Updated (IST): 02-09-2026 18:00:00", "", "", "", "", ""},
	}
}

func openSession(t *testing.T, srv http.Handler) SessionDTO {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, uploadRequest(t, "/api/sessions", "High_Risk_Offices.csv", exportedEnvelopeGrid()))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var dto SessionDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&dto))
	return dto
}

func TestCreateSession_FromExportedEnvelope(t *testing.T) {
	srv, _ := newTestServer(t, "")

	dto := openSession(t, srv)

	assert.Equal(t, kindTracking, dto.Kind)
	assert.Equal(t, "01-09-2026", dto.FromDate)
	assert.Equal(t, "02-09-2026", dto.ToDate)
	require.Len(t, dto.BranchRows, 1)
	require.Len(t, dto.SubRows, 1)
	assert.Equal(t, "High_Risk_Updated.xlsx", dto.ExportFilename)
	assert.Equal(t, []string{"Pending", "Cash Remitted",
		"Balance lowered but cash not remitted"}, dto.RemarkOptions)
}

func TestCreateSession_InvalidEnvelope_400(t *testing.T) {
	srv, _ := newTestServer(t, "")

	grid := [][]string{{"Totally", "Different"}, {"a", "b"}}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, uploadRequest(t, "/api/sessions", "bad.csv", grid))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateRemark_NotifyOnChangeOnly(t *testing.T) {
	srv, audit := newTestServer(t, "")
	dto := openSession(t, srv)

	payload := UpdateRemarkRequest{
		OfficeType: "BPO", OfficeName: "Sihora", Division: "Jabalpur",
		Remark: "Cash Remitted",
	}

	// WHEN: First change
	rec := postJSON(t, srv, "/api/sessions/"+dto.ID+"/remarks", payload)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp UpdateRemarkResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Notify)
	assert.Equal(t, "Cash Remitted", resp.Row.Remark)

	// AND: The same change again
	rec = postJSON(t, srv, "/api/sessions/"+dto.ID+"/remarks", payload)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Notify)

	// THEN: Exactly one audit event exists
	events, err := audit.ListRemarkEvents(nil, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Sihora", events[0].OfficeName)
	assert.Equal(t, "Pending", events[0].Previous)
	assert.Equal(t, "Cash Remitted", events[0].Current)
}

func TestUpdateRemark_PositionalIndex(t *testing.T) {
	srv, _ := newTestServer(t, "")
	dto := openSession(t, srv)

	idx := 0
	rec := postJSON(t, srv, "/api/sessions/"+dto.ID+"/remarks", UpdateRemarkRequest{
		OfficeType: "SPO", Index: &idx, Remark: "Balance lowered but cash not remitted",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp UpdateRemarkResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "Kundam", resp.Row.OfficeName)
	assert.True(t, resp.Notify)
}

func TestUpdateRemark_Failures(t *testing.T) {
	srv, _ := newTestServer(t, "")
	dto := openSession(t, srv)

	// Invalid remark value
	rec := postJSON(t, srv, "/api/sessions/"+dto.ID+"/remarks", UpdateRemarkRequest{
		OfficeType: "BPO", OfficeName: "Sihora", Division: "Jabalpur", Remark: "All good",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown office
	rec = postJSON(t, srv, "/api/sessions/"+dto.ID+"/remarks", UpdateRemarkRequest{
		OfficeType: "BPO", OfficeName: "Nowhere", Division: "Jabalpur", Remark: "Pending",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Unknown session
	rec = postJSON(t, srv, "/api/sessions/missing/remarks", UpdateRemarkRequest{
		OfficeType: "BPO", OfficeName: "Sihora", Remark: "Pending",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Neither name nor index
	rec = postJSON(t, srv, "/api/sessions/"+dto.ID+"/remarks", UpdateRemarkRequest{
		OfficeType: "BPO", Remark: "Pending",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrackingExport_CarriesRemarkEdits(t *testing.T) {
	srv, _ := newTestServer(t, "")
	dto := openSession(t, srv)

	rec := postJSON(t, srv, "/api/sessions/"+dto.ID+"/remarks", UpdateRemarkRequest{
		OfficeType: "BPO", OfficeName: "Sihora", Division: "Jabalpur", Remark: "Cash Remitted",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/"+dto.ID+"/export", nil)
	rec2 := httptest.NewRecorder()
	srv.ServeHTTP(rec2, req)
	require.Equal(t, http.StatusOK, rec2.Code)

	grid, err := tabular.ReadXLSX(bytes.NewReader(rec2.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "Cash Remitted", grid[1][5])
	// The window survives the round trip
	assert.True(t, strings.HasPrefix(grid[3][0], "From Date: 01-09-2026"))
}

// =============================================================================
// AUDIT ENDPOINTS
// =============================================================================

func TestAuditEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, "")
	resp := classify(t, srv)

	req := httptest.NewRequest(http.MethodGet, "/api/audit/runs", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var runsResp struct {
		Runs []RunDTO `json:"runs"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&runsResp))
	require.Len(t, runsResp.Runs, 1)
	assert.Equal(t, resp.SessionID, runsResp.Runs[0].ID)

	req = httptest.NewRequest(http.MethodGet, "/api/audit/events?limit=5", nil)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// =============================================================================
// TOKEN GATE
// =============================================================================

func TestTokenGate(t *testing.T) {
	srv, _ := newTestServer(t, "sekrit")

	// Gated endpoint without a token
	req := httptest.NewRequest(http.MethodGet, "/api/audit/runs", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// With the bearer token
	req = httptest.NewRequest(http.MethodGet, "/api/audit/runs", nil)
	req.Header.Set("Authorization", "Bearer sekrit")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// With the header token
	req = httptest.NewRequest(http.MethodGet, "/api/audit/runs", nil)
	req.Header.Set("X-Api-Token", "sekrit")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Healthz stays open
	req = httptest.NewRequest(http.MethodGet, "/api/healthz", nil)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

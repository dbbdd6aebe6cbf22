/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - envelope/envelope.go: The Row type these mirror
*/
package api

import (
	"time"

	"github.com/postnet/cashwatch/envelope"
	"github.com/postnet/cashwatch/risk"
	"github.com/postnet/cashwatch/store"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// RowDTO is one flagged office as the API presents it.
type RowDTO struct {
	OfficeName    string `json:"office_name"`
	Division      string `json:"division"`
	DaysExceeding int    `json:"days_exceeding"`
	AvgExcess     string `json:"avg_excess"`
	OfficeType    string `json:"office_type"`
	Remark        string `json:"remark"`
}

// TypeSummaryDTO is the per-type headline count.
type TypeSummaryDTO struct {
	OfficesWithExcess int    `json:"offices_with_excess"`
	NetworkTotal      int    `json:"network_total"`
	Percent           string `json:"percent"`
}

// ClassifyResponse is the result of a classification upload.
type ClassifyResponse struct {
	SessionID      string          `json:"session_id"`
	WorkingDays    int             `json:"working_days"`
	FromDate       string          `json:"from_date,omitempty"`
	ToDate         string          `json:"to_date,omitempty"`
	BranchSummary  TypeSummaryDTO  `json:"branch_summary"`
	SubSummary     TypeSummaryDTO  `json:"sub_summary"`
	BranchFlags    []RowDTO        `json:"branch_flags"`
	SubFlags       []RowDTO        `json:"sub_flags"`
	ExportFilename string          `json:"export_filename"`
}

// SessionDTO is a session view.
type SessionDTO struct {
	ID             string   `json:"id"`
	Kind           string   `json:"kind"` // "classification" or "tracking"
	FromDate       string   `json:"from_date,omitempty"`
	ToDate         string   `json:"to_date,omitempty"`
	BranchRows     []RowDTO `json:"branch_rows"`
	SubRows        []RowDTO `json:"sub_rows"`
	RemarkOptions  []string `json:"remark_options"`
	ExportFilename string   `json:"export_filename"`
}

// UpdateRemarkRequest sets the remark for one office. The office is
// identified by name+division, or positionally by index as a fallback for
// clients that still speak row positions.
type UpdateRemarkRequest struct {
	OfficeType string `json:"office_type"`
	OfficeName string `json:"office_name,omitempty"`
	Division   string `json:"division,omitempty"`
	Index      *int   `json:"index,omitempty"`
	Remark     string `json:"remark"`
}

// UpdateRemarkResponse returns the updated row. Notify is true only when
// the state actually changed; the UI plays its alert off this flag.
type UpdateRemarkResponse struct {
	Row    RowDTO `json:"row"`
	Notify bool   `json:"notify"`
}

// RunDTO is one recorded classification run.
type RunDTO struct {
	ID            string `json:"id"`
	WorkingDays   int    `json:"working_days"`
	FromDate      string `json:"from_date,omitempty"`
	ToDate        string `json:"to_date,omitempty"`
	BranchFlagged int    `json:"branch_flagged"`
	SubFlagged    int    `json:"sub_flagged"`
	CreatedAt     string `json:"created_at"`
}

// RemarkEventDTO is one recorded remark transition.
type RemarkEventDTO struct {
	ID         string `json:"id"`
	SessionID  string `json:"session_id"`
	OfficeType string `json:"office_type"`
	OfficeName string `json:"office_name"`
	Division   string `json:"division"`
	Previous   string `json:"previous"`
	Current    string `json:"current"`
	CreatedAt  string `json:"created_at"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toRowDTO(row envelope.Row) RowDTO {
	return RowDTO{
		OfficeName:    row.OfficeName,
		Division:      row.Division,
		DaysExceeding: row.DaysExceeding,
		AvgExcess:     row.AvgExcess,
		OfficeType:    string(row.OfficeType),
		Remark:        string(row.Remark),
	}
}

func toRowDTOs(rows []envelope.Row) []RowDTO {
	dtos := make([]RowDTO, len(rows))
	for i, row := range rows {
		dtos[i] = toRowDTO(row)
	}
	return dtos
}

func toTypeSummaryDTO(s risk.TypeSummary) TypeSummaryDTO {
	return TypeSummaryDTO{
		OfficesWithExcess: s.OfficesWithExcess,
		NetworkTotal:      s.NetworkTotal,
		Percent:           s.Percent().String(),
	}
}

func toRunDTO(run store.RunRecord) RunDTO {
	return RunDTO{
		ID:            run.ID,
		WorkingDays:   run.WorkingDays,
		FromDate:      run.FromDate,
		ToDate:        run.ToDate,
		BranchFlagged: run.BranchFlagged,
		SubFlagged:    run.SubFlagged,
		CreatedAt:     run.CreatedAt.Format(time.RFC3339),
	}
}

func toRemarkEventDTO(event store.RemarkEvent) RemarkEventDTO {
	return RemarkEventDTO{
		ID:         event.ID,
		SessionID:  event.SessionID,
		OfficeType: event.OfficeType,
		OfficeName: event.OfficeName,
		Division:   event.Division,
		Previous:   event.Previous,
		Current:    event.Current,
		CreatedAt:  event.CreatedAt.Format(time.RFC3339),
	}
}

func remarkOptionStrings() []string {
	options := make([]string, len(risk.RemarkStates))
	for i, s := range risk.RemarkStates {
		options[i] = string(s)
	}
	return options
}

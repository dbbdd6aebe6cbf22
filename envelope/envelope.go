/*
Package envelope defines the report envelope: the tabular artifact the
classifier exports and the remark tracker re-ingests.

PURPOSE:
  The two pipeline stages communicate only through this format. An
  envelope is the ordered flag rows (branch first, then sub) plus footer
  metadata rows that ride inside the table itself, marked by sentinel
  text prefixes in the Office Name / Division cells:

    From Date: DD-MM-YYYY   |  To Date: DD-MM-YYYY
    Last Updated (IST): DD-MM-YYYY HH:MM:SS

  Older exports sometimes split From/To across two rows; Decode accepts
  either layout. Decode is forgiving everywhere recovery is possible
  (missing Remark -> Pending, blank day counts -> 0, absent footer dates
  recovered later as "now"), and strict only about the two columns nothing
  can be recovered without: Office Name and Office Type.

ROUND-TRIP:
  Decode then Encode reproduces the data rows byte for byte, modulo
  remark edits and the refreshed Last Updated stamp. Averages are carried
  as the printed lakh strings ("12.34 L") rather than re-derived numbers
  so that re-uploads of old files survive unchanged.

SEE ALSO:
  - risk/classify.go: Produces the flags an envelope is built from
  - tracker/session.go: Edits remarks between Decode and Encode
*/
package envelope

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/postnet/cashwatch/risk"
)

// Columns is the envelope schema, in file order.
var Columns = []string{
	"Office Name", "Division", "Days_Exceeding_Threshold",
	"Avg_Excess_Above_Threshold", "Office Type", "Remark",
}

// Footer sentinel prefixes. Matching is prefix-based on the Office Name
// cell (and the Division cell for the combined From/To layout).
const (
	fromDatePrefix    = "From Date"
	toDatePrefix      = "To Date"
	lastUpdatedPrefix = "Last Updated"
)

// Row is one flagged office in the envelope.
type Row struct {
	OfficeName    string
	Division      string
	DaysExceeding int
	// AvgExcess is the printed lakh value, e.g. "12.34 L" or "0 L".
	AvgExcess  string
	OfficeType risk.OfficeType
	Remark     risk.RemarkState
}

// Key returns the stable office identity for this row.
func (r Row) Key() risk.OfficeKey {
	return risk.OfficeKey{Type: r.OfficeType, Name: r.OfficeName, Division: r.Division}
}

// AvgExcessLakh parses the printed lakh value back to a number. Rows with
// "0 L" or unparseable text read as zero.
func (r Row) AvgExcessLakh() decimal.Decimal {
	s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(r.AvgExcess), "L"))
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Envelope is a decoded report: data rows plus whatever footer metadata
// the file carried. FromDate/ToDate are zero when the file had no footer,
// in which case Encode falls back to the encoding time.
type Envelope struct {
	Rows     []Row
	FromDate risk.Date
	ToDate   risk.Date
}

// =============================================================================
// BUILDING FROM A CLASSIFICATION RESULT
// =============================================================================

// FromResult builds a fresh envelope from a classification run: branch
// flags first, then sub flags, every remark Pending.
func FromResult(res *risk.Result) *Envelope {
	env := &Envelope{FromDate: res.FromDate, ToDate: res.ToDate}
	for _, flag := range res.AllFlags() {
		env.Rows = append(env.Rows, Row{
			OfficeName:    flag.OfficeName,
			Division:      flag.Division,
			DaysExceeding: flag.DaysExceeding,
			AvgExcess:     FormatLakh(flag.OfficeAggregate),
			OfficeType:    flag.OfficeType,
			Remark:        flag.Remark,
		})
	}
	return env
}

// FormatLakh renders an aggregate's average excess the way the envelope
// prints it: lakhs rounded to two decimals, "0 L" when nothing exceeded.
func FormatLakh(agg risk.OfficeAggregate) string {
	if !agg.HasExcess {
		return "0 L"
	}
	return fmt.Sprintf("%s L", agg.AvgExcessLakh().String())
}

// =============================================================================
// DECODE - Re-ingest an exported file
// =============================================================================

// Decode parses an exported envelope grid. The first row is the header.
// Footer rows are stripped by sentinel prefix and their dates recovered
// when present. Rows missing a Remark default to Pending; remark strings
// outside the known set are preserved verbatim.
func Decode(grid [][]string) (*Envelope, error) {
	if len(grid) == 0 {
		return nil, &risk.EnvelopeFormatError{Reason: "file is empty"}
	}

	index := map[string]int{}
	for i, name := range grid[0] {
		index[strings.TrimSpace(name)] = i
	}
	nameCol, hasName := index["Office Name"]
	typeCol, hasType := index["Office Type"]
	if !hasName || !hasType {
		return nil, &risk.EnvelopeFormatError{Reason: "missing Office Name or Office Type column"}
	}

	env := &Envelope{}
	for _, row := range grid[1:] {
		name := strings.TrimSpace(cell(row, nameCol))
		division := strings.TrimSpace(cell(row, column(index, "Division")))

		if isFooter(name) {
			env.absorbFooter(name, division)
			continue
		}
		if name == "" && division == "" {
			continue
		}

		remark := risk.RemarkState(strings.TrimSpace(cell(row, column(index, "Remark"))))
		if remark == "" {
			remark = risk.RemarkPending
		}

		env.Rows = append(env.Rows, Row{
			OfficeName:    name,
			Division:      division,
			DaysExceeding: coerceDays(cell(row, column(index, "Days_Exceeding_Threshold"))),
			AvgExcess:     strings.TrimSpace(cell(row, column(index, "Avg_Excess_Above_Threshold"))),
			OfficeType:    risk.OfficeType(strings.TrimSpace(cell(row, typeCol))),
			Remark:        remark,
		})
	}

	return env, nil
}

func isFooter(officeName string) bool {
	return strings.HasPrefix(officeName, fromDatePrefix) ||
		strings.HasPrefix(officeName, toDatePrefix) ||
		strings.HasPrefix(officeName, lastUpdatedPrefix)
}

// absorbFooter recovers dates from a footer row. Handles both the
// combined layout (From Date in Office Name, To Date in Division) and the
// two-row layout where To Date got its own row.
func (env *Envelope) absorbFooter(officeName, division string) {
	if strings.HasPrefix(officeName, fromDatePrefix) {
		if d, err := parseFooterDate(officeName); err == nil {
			env.FromDate = d
		}
	}
	if strings.HasPrefix(officeName, toDatePrefix) {
		if d, err := parseFooterDate(officeName); err == nil {
			env.ToDate = d
		}
	}
	if strings.HasPrefix(division, toDatePrefix) {
		if d, err := parseFooterDate(division); err == nil {
			env.ToDate = d
		}
	}
	// Last Updated is never recovered: Encode always stamps fresh.
}

// parseFooterDate reads the date after the sentinel's colon.
func parseFooterDate(s string) (risk.Date, error) {
	_, value, found := strings.Cut(s, ":")
	if !found {
		return risk.Date{}, fmt.Errorf("no date in footer cell %q", s)
	}
	return risk.ParseDisplayDate(strings.TrimSpace(value))
}

// coerceDays reads the day-count cell, coercing blanks and junk to zero
// and clamping negatives.
func coerceDays(s string) int {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || d.IsNegative() {
		return 0
	}
	return int(d.IntPart())
}

// =============================================================================
// ENCODE - Produce the export grid
// =============================================================================

// Encode renders the envelope as a grid: header, data rows, then a
// combined From/To footer row and a fresh Last Updated row stamped at the
// given instant in IST. Missing from/to dates fall back to that instant's
// IST calendar day.
func (env *Envelope) Encode(now time.Time) [][]string {
	from, to := env.FromDate, env.ToDate
	today := risk.Date{Time: now.In(risk.IST)}
	if from.IsZero() {
		from = today
	}
	if to.IsZero() {
		to = today
	}

	grid := make([][]string, 0, len(env.Rows)+3)
	grid = append(grid, append([]string{}, Columns...))
	for _, row := range env.Rows {
		grid = append(grid, []string{
			row.OfficeName,
			row.Division,
			fmt.Sprintf("%d", row.DaysExceeding),
			row.AvgExcess,
			string(row.OfficeType),
			string(row.Remark),
		})
	}
	grid = append(grid, []string{
		fmt.Sprintf("%s: %s", fromDatePrefix, from.Display()),
		fmt.Sprintf("%s: %s", toDatePrefix, to.Display()),
		"", "", "", "",
	})
	grid = append(grid, []string{
		fmt.Sprintf("%s (IST): %s", lastUpdatedPrefix, risk.FormatTimestamp(now)),
		"", "", "", "", "",
	})
	return grid
}

// ExportFilename names a fresh classifier export after its date window,
// matching the original dashboard's convention.
func (env *Envelope) ExportFilename() string {
	if env.FromDate.IsZero() || env.ToDate.IsZero() {
		return "High_Risk_Offices.xlsx"
	}
	return fmt.Sprintf("High_Risk_Offices_%s_to_%s.xlsx",
		env.FromDate.Compact(), env.ToDate.Compact())
}

func column(index map[string]int, name string) int {
	if i, ok := index[name]; ok {
		return i
	}
	return -1
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

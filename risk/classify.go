/*
classify.go - The risk classification algorithm

PURPOSE:
  Turns raw daily cash-position rows into per-type lists of "very high
  risk" offices: offices whose excess amount cleared the type threshold on
  at least 90% of the working days in the reporting window.

ALGORITHM:
  1. Validate required columns (grid input only); abort with a SchemaError
     naming every missing column.
  2. Parse dates strictly as DDMMYYYY; drop rows that fail to parse.
  3. Drop Sundays (non-working day convention).
  4. working_days = count of distinct surviving dates; from/to = min/max.
  5. Partition by office type, group by (office name, division), count
     strict threshold exceedances and average the exceeding amounts.
  6. Keep groups with days_exceeding >= 0.9 * working_days. The bar is an
     exact decimal comparison; 9 days out of 10 passes, 8 does not.
  7. Sort by days exceeding desc, then average (in rounded lakhs, the
     value the envelope prints) desc. Stable, so equal pairs keep their
     input order.

The function is pure: same rows in, same Result out, nothing else touched.
*/
package risk

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// RequiredColumns is the input schema for the daily position upload, in
// the order the file carries them.
var RequiredColumns = []string{
	"Date", "Division", "Office Type", "Office Name",
	"Office ID", "Max Amount", "Excess Amount", "Closing Balance",
}

// persistenceBar is the share of working days an office must exceed its
// threshold to be flagged.
var persistenceBar = decimal.RequireFromString("0.9")

// Result is the output of one classification run.
type Result struct {
	WorkingDays int
	FromDate    Date
	ToDate      Date
	// Flags holds the very-high-risk offices per type, sorted.
	Flags map[OfficeType][]RiskFlag
	// Summary holds the display-level distinct-office counts per type.
	Summary map[OfficeType]TypeSummary
}

// Empty reports whether no office was flagged in either partition.
func (r *Result) Empty() bool {
	return len(r.Flags[OfficeBranch]) == 0 && len(r.Flags[OfficeSub]) == 0
}

// AllFlags returns branch flags followed by sub flags, the order the
// exported envelope uses.
func (r *Result) AllFlags() []RiskFlag {
	out := make([]RiskFlag, 0, len(r.Flags[OfficeBranch])+len(r.Flags[OfficeSub]))
	out = append(out, r.Flags[OfficeBranch]...)
	out = append(out, r.Flags[OfficeSub]...)
	return out
}

// =============================================================================
// CLASSIFY - Pure aggregation over parsed records
// =============================================================================

// Classify computes the risk classification over raw records. Rows dated
// on a Sunday are excluded before anything is counted. An empty survivor
// set yields a valid empty Result, never a failure.
func Classify(records []CashPositionRecord) *Result {
	kept := make([]CashPositionRecord, 0, len(records))
	for _, rec := range records {
		if rec.Date.IsZero() || rec.Date.IsSunday() {
			continue
		}
		kept = append(kept, rec)
	}

	res := &Result{
		Flags:   map[OfficeType][]RiskFlag{OfficeBranch: {}, OfficeSub: {}},
		Summary: map[OfficeType]TypeSummary{},
	}

	// Working-day window over the cleaned rows.
	seen := map[string]bool{}
	for _, rec := range kept {
		if !seen[rec.Date.Key()] {
			seen[rec.Date.Key()] = true
			res.WorkingDays++
		}
		if res.FromDate.IsZero() || rec.Date.Before(res.FromDate) {
			res.FromDate = rec.Date
		}
		if res.ToDate.IsZero() || rec.Date.After(res.ToDate) {
			res.ToDate = rec.Date
		}
	}

	minDays := persistenceBar.Mul(decimal.NewFromInt(int64(res.WorkingDays)))

	for _, officeType := range []OfficeType{OfficeBranch, OfficeSub} {
		aggs := aggregate(kept, officeType)

		flags := make([]RiskFlag, 0)
		for _, agg := range aggs {
			if decimal.NewFromInt(int64(agg.DaysExceeding)).GreaterThanOrEqual(minDays) {
				flags = append(flags, RiskFlag{
					OfficeAggregate: agg,
					OfficeType:      officeType,
					Remark:          RemarkPending,
				})
			}
		}

		sort.SliceStable(flags, func(i, j int) bool {
			if flags[i].DaysExceeding != flags[j].DaysExceeding {
				return flags[i].DaysExceeding > flags[j].DaysExceeding
			}
			return flags[i].AvgExcessLakh().GreaterThan(flags[j].AvgExcessLakh())
		})

		res.Flags[officeType] = flags
		res.Summary[officeType] = summarize(kept, officeType)
	}

	return res
}

// aggregate groups one type partition by (office name, division) and
// computes exceedance statistics. Group order follows first appearance in
// the input, which is what makes the final sort deterministic on ties.
func aggregate(records []CashPositionRecord, officeType OfficeType) []OfficeAggregate {
	type group struct {
		agg   OfficeAggregate
		sum   decimal.Decimal
		count int
	}

	threshold := officeType.Threshold()
	byOffice := map[OfficeKey]*group{}
	var order []OfficeKey

	for _, rec := range records {
		if rec.OfficeType != officeType {
			continue
		}
		key := OfficeKey{Type: officeType, Name: rec.OfficeName, Division: rec.Division}
		g, ok := byOffice[key]
		if !ok {
			g = &group{agg: OfficeAggregate{OfficeName: rec.OfficeName, Division: rec.Division}}
			byOffice[key] = g
			order = append(order, key)
		}
		if rec.ExcessAmount.GreaterThan(threshold) {
			g.agg.DaysExceeding++
			g.sum = g.sum.Add(rec.ExcessAmount)
			g.count++
		}
	}

	aggs := make([]OfficeAggregate, 0, len(order))
	for _, key := range order {
		g := byOffice[key]
		if g.count > 0 {
			g.agg.AvgExcess = g.sum.Div(decimal.NewFromInt(int64(g.count)))
			g.agg.HasExcess = true
		}
		aggs = append(aggs, g.agg)
	}
	return aggs
}

// summarize counts distinct office names of the given type in the cleaned
// input, against the fixed network totals.
func summarize(records []CashPositionRecord, officeType OfficeType) TypeSummary {
	names := map[string]bool{}
	for _, rec := range records {
		if rec.OfficeType == officeType {
			names[rec.OfficeName] = true
		}
	}
	total := TotalBranchOffices
	if officeType == OfficeSub {
		total = TotalSubOffices
	}
	return TypeSummary{OfficesWithExcess: len(names), NetworkTotal: total}
}

// =============================================================================
// CLASSIFY GRID - Raw tabular input
// =============================================================================

// ClassifyGrid validates and classifies a raw tabular upload. The first
// row is the header. Missing required columns abort with a *SchemaError
// listing exactly the absent set; nothing is partially processed.
// Individual rows with unparseable dates are dropped silently.
func ClassifyGrid(grid [][]string) (*Result, error) {
	if len(grid) == 0 {
		return nil, ErrEmptyInput
	}

	index, err := columnIndex(grid[0], RequiredColumns)
	if err != nil {
		return nil, err
	}

	var records []CashPositionRecord
	for _, row := range grid[1:] {
		date, err := ParseRawDate(cell(row, index["Date"]))
		if err != nil {
			continue
		}
		records = append(records, CashPositionRecord{
			Date:           date,
			Division:       strings.TrimSpace(cell(row, index["Division"])),
			OfficeType:     OfficeType(strings.TrimSpace(cell(row, index["Office Type"]))),
			OfficeName:     strings.TrimSpace(cell(row, index["Office Name"])),
			OfficeID:       strings.TrimSpace(cell(row, index["Office ID"])),
			MaxAmount:      parseAmount(cell(row, index["Max Amount"])),
			ExcessAmount:   parseAmount(cell(row, index["Excess Amount"])),
			ClosingBalance: parseAmount(cell(row, index["Closing Balance"])),
		})
	}

	return Classify(records), nil
}

// columnIndex maps required column names to their positions in the header
// row, or fails with a SchemaError naming every absent column.
func columnIndex(header []string, required []string) (map[string]int, error) {
	index := map[string]int{}
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}

	var missing []string
	for _, name := range required {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}
	return index, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// parseAmount reads a spreadsheet number cell. Blank or malformed cells
// read as zero, which can never exceed a threshold.
func parseAmount(s string) decimal.Decimal {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

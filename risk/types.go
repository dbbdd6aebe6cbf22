/*
Package risk provides the core cash-position risk classification engine.

PURPOSE:
  This package contains the domain types and the pure aggregation algorithm
  that turns raw daily cash-position rows into the set of offices that
  persistently exceed their cash-holding limits. It knows nothing about
  spreadsheets, HTTP, or sessions — callers feed it rows (or a raw tabular
  grid) and get back a deterministic Result.

KEY CONCEPTS IN THIS FILE (types.go):
  - CashPositionRecord: One office's position for one business day
  - OfficeType: BPO (branch) vs SPO (sub office), each with its own
    excess threshold
  - OfficeAggregate: Exceedance statistics for one (office, division)
  - RiskFlag: An aggregate that cleared the persistence bar, plus the
    operator remark attached to it downstream
  - RemarkState: The operator-assigned remediation status

DESIGN PRINCIPLES:
  1. Purity: classification has no side effects and no hidden state
  2. Precision: decimal.Decimal for every amount, never float64
  3. Determinism: stable sort order, explicit tie-breaking

SEE ALSO:
  - classify.go: The aggregation and flagging algorithm
  - date.go: Strict DDMMYYYY parsing and the IST clock
  - errors.go: SchemaError and friends
*/
package risk

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// OFFICE TYPES AND THRESHOLDS
// =============================================================================

// OfficeType distinguishes branch post offices from sub post offices.
// The two carry different regulatory excess thresholds.
type OfficeType string

const (
	OfficeBranch OfficeType = "BPO"
	OfficeSub    OfficeType = "SPO"
)

// Excess thresholds per office type, in rupees.
var (
	branchThreshold = decimal.NewFromInt(100_000)
	subThreshold    = decimal.NewFromInt(500_000)
)

// Threshold returns the daily excess-amount threshold for the office type.
func (t OfficeType) Threshold() decimal.Decimal {
	if t == OfficeSub {
		return subThreshold
	}
	return branchThreshold
}

// Valid reports whether t is one of the two known office types.
func (t OfficeType) Valid() bool {
	return t == OfficeBranch || t == OfficeSub
}

// Network-wide office counts, used only for the display summary.
const (
	TotalBranchOffices = 4466
	TotalSubOffices    = 411
)

// =============================================================================
// RAW INPUT ROW
// =============================================================================

// CashPositionRecord is one office's cash position for one business day,
// as read from the daily upload.
type CashPositionRecord struct {
	Date           Date
	Division       string
	OfficeType     OfficeType
	OfficeName     string
	OfficeID       string
	MaxAmount      decimal.Decimal
	ExcessAmount   decimal.Decimal
	ClosingBalance decimal.Decimal
}

// =============================================================================
// OFFICE KEY - Synthetic stable identity
// =============================================================================

// OfficeKey identifies an office across uploads. Raw rows carry an Office ID
// but exported envelopes do not, so identity everywhere downstream is the
// (type, name, division) triple.
type OfficeKey struct {
	Type     OfficeType
	Name     string
	Division string
}

// =============================================================================
// AGGREGATES AND FLAGS
// =============================================================================

// OfficeAggregate holds exceedance statistics for one (office, division)
// pair within a type partition.
type OfficeAggregate struct {
	OfficeName string
	Division   string
	// DaysExceeding counts days where the excess amount strictly exceeded
	// the type threshold.
	DaysExceeding int
	// AvgExcess is the mean excess over exactly the exceeding days.
	// Zero when no day exceeded.
	AvgExcess decimal.Decimal
	// HasExcess is false when no day exceeded (AvgExcess is then a
	// placeholder zero, printed as "0 L").
	HasExcess bool
}

// AvgExcessLakh returns the average excess in lakhs, rounded to two
// decimals. This is the value the envelope prints and the sort key used
// for ordering flags.
func (a OfficeAggregate) AvgExcessLakh() decimal.Decimal {
	return a.AvgExcess.Div(decimal.NewFromInt(100_000)).Round(2)
}

// RiskFlag is an OfficeAggregate that cleared the persistence bar,
// tagged with its office type and the operator remark.
type RiskFlag struct {
	OfficeAggregate
	OfficeType OfficeType
	Remark     RemarkState
}

// Key returns the stable identity for this flag.
func (f RiskFlag) Key() OfficeKey {
	return OfficeKey{Type: f.OfficeType, Name: f.OfficeName, Division: f.Division}
}

// =============================================================================
// REMARK STATE
// =============================================================================

// RemarkState is the operator-assigned remediation status for a flagged
// office. The string values are the exact labels the exported file carries.
type RemarkState string

const (
	RemarkPending        RemarkState = "Pending"
	RemarkCashRemitted   RemarkState = "Cash Remitted"
	RemarkBalanceLowered RemarkState = "Balance lowered but cash not remitted"
)

// RemarkStates lists the states an operator may assign, in display order.
var RemarkStates = []RemarkState{RemarkPending, RemarkCashRemitted, RemarkBalanceLowered}

// Valid reports whether s is one of the three assignable states.
// Files re-uploaded from older exports may carry other strings; those are
// preserved as-is but may not be assigned anew.
func (s RemarkState) Valid() bool {
	return s == RemarkPending || s == RemarkCashRemitted || s == RemarkBalanceLowered
}

// =============================================================================
// TYPE SUMMARY - Display-level counts
// =============================================================================

// TypeSummary is the per-type headline the dashboard shows: how many
// distinct offices reported any excess, against the network total.
type TypeSummary struct {
	OfficesWithExcess int
	NetworkTotal      int
}

// Percent returns the share of the network reporting excess, rounded to
// two decimals.
func (s TypeSummary) Percent() decimal.Decimal {
	if s.NetworkTotal == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(s.OfficesWithExcess)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(s.NetworkTotal))).
		Round(2)
}

package risk_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postnet/cashwatch/risk"
)

func TestParseRawDate_StrictDDMMYYYY(t *testing.T) {
	d, err := risk.ParseRawDate("05092026")
	require.NoError(t, err)
	assert.Equal(t, "05-09-2026", d.Display())
	assert.Equal(t, "05092026", d.Compact())

	for _, bad := range []string{"", "2026-09-05", "05/09/2026", "5092026", "32092026"} {
		_, err := risk.ParseRawDate(bad)
		assert.Error(t, err, "input %q should not parse", bad)
	}
}

func TestParseDisplayDate_FooterFormat(t *testing.T) {
	d, err := risk.ParseDisplayDate("28-02-2026")
	require.NoError(t, err)
	assert.Equal(t, "28-02-2026", d.Display())
}

func TestDate_IsSunday(t *testing.T) {
	assert.True(t, risk.NewDate(2026, time.September, 6).IsSunday())
	assert.False(t, risk.NewDate(2026, time.September, 7).IsSunday())
}

func TestFormatTimestamp_AlwaysIST(t *testing.T) {
	// GIVEN: An instant expressed in UTC
	utc := time.Date(2026, time.September, 1, 12, 0, 0, 0, time.UTC)

	// THEN: The stamp renders shifted by +5:30
	assert.Equal(t, "01-09-2026 17:30:00", risk.FormatTimestamp(utc))
}

func TestOfficeType_Thresholds(t *testing.T) {
	assert.Equal(t, "100000", risk.OfficeBranch.Threshold().String())
	assert.Equal(t, "500000", risk.OfficeSub.Threshold().String())
	assert.True(t, risk.OfficeBranch.Valid())
	assert.False(t, risk.OfficeType("HPO").Valid())
}

func TestRemarkState_Valid(t *testing.T) {
	for _, s := range risk.RemarkStates {
		assert.True(t, s.Valid())
	}
	assert.False(t, risk.RemarkState("Resolved somehow").Valid())
}

package risk

import (
	"time"
)

// =============================================================================
// DATE - Day-granularity date for daily position rows
// =============================================================================

// Date is a calendar day. Raw uploads carry dates as DDMMYYYY digit runs;
// exported envelopes print them as DD-MM-YYYY.
type Date struct {
	Time time.Time
}

const (
	// rawDateLayout is the strict upload format: 8 digits, day first.
	rawDateLayout = "02012006"
	// displayDateLayout is the format used in envelope footers and filenames.
	displayDateLayout = "02-01-2006"
	// timestampLayout is the Last Updated stamp format.
	timestampLayout = "02-01-2006 15:04:05"
)

// IST is the single timezone every timestamp in the system uses.
var IST = time.FixedZone("IST", 5*3600+30*60)

// ParseRawDate parses the strict DDMMYYYY upload format. Anything else is
// an error; callers drop the row rather than guessing.
func ParseRawDate(s string) (Date, error) {
	t, err := time.ParseInLocation(rawDateLayout, s, time.UTC)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// ParseDisplayDate parses the DD-MM-YYYY form used in envelope footers.
func ParseDisplayDate(s string) (Date, error) {
	t, err := time.ParseInLocation(displayDateLayout, s, time.UTC)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// NewDate builds a Date from components.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current day in IST.
func Today() Date {
	now := time.Now().In(IST)
	return NewDate(now.Year(), now.Month(), now.Day())
}

// Comparison
func (d Date) Before(other Date) bool { return d.normalize().Before(other.normalize()) }
func (d Date) After(other Date) bool  { return d.normalize().After(other.normalize()) }
func (d Date) Equal(other Date) bool  { return d.normalize().Equal(other.normalize()) }
func (d Date) IsZero() bool           { return d.Time.IsZero() }

func (d Date) normalize() time.Time {
	return time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// IsSunday reports whether the date falls on a Sunday, the network's
// non-working day.
func (d Date) IsSunday() bool { return d.Time.Weekday() == time.Sunday }

// Key returns a map-friendly day key.
func (d Date) Key() string { return d.normalize().Format("20060102") }

// Display formats the date as DD-MM-YYYY.
func (d Date) Display() string { return d.normalize().Format(displayDateLayout) }

// Compact formats the date as DDMMYYYY (used in export filenames).
func (d Date) Compact() string { return d.normalize().Format(rawDateLayout) }

func (d Date) String() string { return d.Display() }

// FormatTimestamp renders a wall-clock instant in IST for the
// Last Updated footer.
func FormatTimestamp(t time.Time) string {
	return t.In(IST).Format(timestampLayout)
}

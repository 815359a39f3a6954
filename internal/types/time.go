package types

import "time"

// TimestampLayout matches the millisecond UTC form written by existing clients.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

var parseLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Now returns the current time as a stored timestamp.
func Now() string {
	return FormatTime(time.Now())
}

// FormatTime renders t in the stored timestamp form (UTC, millisecond precision).
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTime parses a stored timestamp or date.
// The second result is false when s is empty or in no known layout.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range parseLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Newer reports whether timestamp a is strictly later than b.
// Unparsable timestamps never win.
func Newer(a, b string) bool {
	ta, okA := ParseTime(a)
	if !okA {
		return false
	}
	tb, okB := ParseTime(b)
	if !okB {
		return true
	}
	return ta.After(tb)
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}

// FloatPtr returns a pointer to v.
func FloatPtr(v float64) *float64 {
	return &v
}

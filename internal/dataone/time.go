package dataone

import (
	"fmt"
	"strings"
	"time"
)

// timeLayouts covers the timestamp shapes DataONE nodes emit: RFC3339
// with and without fractional seconds, numeric zones without a colon,
// and naive timestamps (treated as UTC by convention).
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTime parses a DataONE timestamp, normalizing to UTC.
func ParseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}

// FormatTime renders a timestamp in the format DataONE query
// parameters expect (UTC, second precision, trailing Z).
func FormatTime(ts time.Time) string {
	return ts.UTC().Format("2006-01-02T15:04:05Z")
}

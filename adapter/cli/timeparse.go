package cli

import (
	"fmt"
	"strings"
	"time"
)

var dateTimeLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// ParseDateTime reads a flag value as RFC 3339, a local date-time in loc
// ("2006-01-02 15:04") or a bare date at midnight in loc.
func ParseDateTime(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	if t, err := time.ParseInLocation("2006-01-02", value, loc); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid date-time %q, use YYYY-MM-DD HH:MM or RFC 3339", value)
}

// ParseRange returns [from, from+days) starting at the local midnight of
// from, or of today when from is empty.
func ParseRange(from string, days int, loc *time.Location, now time.Time) (time.Time, time.Time, error) {
	if days <= 0 {
		return time.Time{}, time.Time{}, fmt.Errorf("days must be positive, got %d", days)
	}
	var start time.Time
	if from == "" {
		n := now.In(loc)
		start = time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc)
	} else {
		t, err := ParseDateTime(from, loc)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		start = t
	}
	return start, start.AddDate(0, 0, days), nil
}

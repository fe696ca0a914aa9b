package mcp

import (
	"errors"
	"fmt"
	"time"

	"github.com/Owl23007/synapse-android-sub000/adapter/cli"
)

const (
	defaultCalendarID = "default"
	defaultDuration   = time.Hour
)

var errNoStore = errors.New("synapse store is not available")

// dateRange resolves an optional start day and day count, defaulting to
// seven days from today.
func dateRange(app *cli.App, from string, days int) (time.Time, time.Time, error) {
	if days == 0 {
		days = 7
	}
	start, end, err := cli.ParseRange(from, days, app.Zone(), time.Now())
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid range: %w", err)
	}
	return start, end, nil
}

func parseOptionalTime(app *cli.App, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := cli.ParseDateTime(value, app.Zone())
	if err != nil {
		return nil, err
	}
	return &t, nil
}

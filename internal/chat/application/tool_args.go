package application

import (
	"fmt"
	"strings"
	"time"

	"github.com/Owl23007/synapse-android-sub000/internal/calendar/application/commands"
	calendarDomain "github.com/Owl23007/synapse-android-sub000/internal/calendar/domain"
	"github.com/Owl23007/synapse-android-sub000/internal/chat/domain"
)

const (
	// DefaultToolTitle names schedules the model created without a summary.
	DefaultToolTitle = "Untitled schedule"
	// DefaultToolCalendarID is the calendar tool-created schedules land in.
	DefaultToolCalendarID = "default"
	defaultToolDuration   = time.Hour
)

var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ToolArgsParser turns create_schedule arguments into a command.
type ToolArgsParser struct {
	loc *time.Location
	now func() time.Time
}

// NewToolArgsParser reads local timestamps in loc (UTC when nil).
func NewToolArgsParser(loc *time.Location, now func() time.Time) *ToolArgsParser {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &ToolArgsParser{loc: loc, now: now}
}

// CreateScheduleCommand maps summary, startTime, endTime, location and
// description. A missing start means now and a missing end means one hour
// after the start.
func (p *ToolArgsParser) CreateScheduleCommand(call domain.ToolCall) (commands.CreateScheduleCommand, error) {
	if call.Err != nil {
		return commands.CreateScheduleCommand{}, call.Err
	}
	args := call.Arguments

	title := strings.TrimSpace(args["summary"])
	if title == "" {
		title = DefaultToolTitle
	}

	start := p.now().In(p.loc)
	if v := strings.TrimSpace(args["startTime"]); v != "" {
		t, err := p.parseTime(v)
		if err != nil {
			return commands.CreateScheduleCommand{}, fmt.Errorf("invalid startTime: %w", err)
		}
		start = t
	}
	end := start.Add(defaultToolDuration)
	if v := strings.TrimSpace(args["endTime"]); v != "" {
		t, err := p.parseTime(v)
		if err != nil {
			return commands.CreateScheduleCommand{}, fmt.Errorf("invalid endTime: %w", err)
		}
		end = t
	}

	return commands.CreateScheduleCommand{
		Title:       title,
		Description: args["description"],
		Location:    args["location"],
		Start:       start,
		End:         end,
		TimezoneID:  p.loc.String(),
		Type:        calendarDomain.ScheduleTypeWork,
		CalendarID:  DefaultToolCalendarID,
	}, nil
}

// parseTime accepts ISO-8601 local date-times in the parser's zone, or
// RFC 3339 with an explicit offset.
func (p *ToolArgsParser) parseTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t, nil
	}
	var firstErr error
	for _, layout := range localLayouts {
		t, err := time.ParseInLocation(layout, v, p.loc)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

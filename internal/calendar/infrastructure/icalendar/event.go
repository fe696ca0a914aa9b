package icalendar

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"

	"github.com/Owl23007/synapse-android-sub000/internal/calendar/domain"
)

const (
	dateLayout        = "20060102"
	dateTimeLayout    = "20060102T150405"
	utcDateTimeLayout = "20060102T150405Z"

	paramValue = "VALUE"
	paramTZID  = "TZID"

	compAlarm  = "VALARM"
	propAction = "ACTION"

	propRecurrenceID = "RECURRENCE-ID"

	// PropTimezone carries the schedule's IANA zone so date-only values
	// decode on the same calendar day they were written.
	PropTimezone = "X-SYNAPSE-TIMEZONE"

	// UntitledEvent replaces a missing SUMMARY.
	UntitledEvent = "Untitled Event"
)

var errMissingStart = errors.New("event has no DTSTART")

// EventFromSchedule builds the VEVENT for s. stamp becomes DTSTAMP.
func EventFromSchedule(s *domain.Schedule, stamp time.Time) *ical.Event {
	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, s.ID())
	event.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
	event.Props.SetText(ical.PropSummary, s.Title())
	if s.Description() != "" {
		event.Props.SetText(ical.PropDescription, s.Description())
	}
	if s.Location() != "" {
		event.Props.SetText(ical.PropLocation, s.Location())
	}
	event.Props.SetText(PropTimezone, s.TimezoneID())

	if s.IsAllDay() {
		zone := s.Zone()
		start := s.StartTime().In(zone)
		end := s.EndTime().In(zone)
		if !end.After(start) || sameDate(start, end) {
			end = start.AddDate(0, 0, 1)
		}
		event.Props.SetDate(ical.PropDateTimeStart, start)
		event.Props.SetDate(ical.PropDateTimeEnd, end)
	} else {
		event.Props.SetDateTime(ical.PropDateTimeStart, s.StartTime().UTC())
		event.Props.SetDateTime(ical.PropDateTimeEnd, s.EndTime().UTC())
	}

	event.Props.SetDateTime(ical.PropCreated, s.CreatedAt().UTC())
	event.Props.SetDateTime(ical.PropLastModified, s.UpdatedAt().UTC())
	event.Props.SetText(ical.PropCategories, s.Type().String())

	if rule := s.RepeatRule(); rule != "" {
		prop := ical.NewProp(ical.PropRecurrenceRule)
		prop.Value = rule
		event.Props[ical.PropRecurrenceRule] = []ical.Prop{*prop}
	}

	for _, minutes := range s.ReminderMinutes() {
		event.Children = append(event.Children, alarmComponent(s.Title(), minutes))
	}

	return event
}

func alarmComponent(title string, minutes int) *ical.Component {
	alarm := ical.NewComponent(compAlarm)
	alarm.Props.SetText(propAction, "DISPLAY")
	alarm.Props.SetText(ical.PropDescription, title)

	trigger := ical.NewProp(ical.PropTrigger)
	trigger.SetDuration(-time.Duration(minutes) * time.Minute)
	alarm.Props.Set(trigger)
	return alarm
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// ScheduleFromEvent maps one VEVENT. Missing UID, SUMMARY, DTEND and
// timestamps are defaulted; a missing or malformed DTSTART is an error.
func (c *Codec) ScheduleFromEvent(event *ical.Component, calendarID, subscriptionID string) (*domain.Schedule, error) {
	startProp := event.Props.Get(ical.PropDateTimeStart)
	if startProp == nil || strings.TrimSpace(startProp.Value) == "" {
		return nil, errMissingStart
	}
	start, allDay, zone, err := parseDate(startProp, c.eventZone(event))
	if err != nil {
		return nil, fmt.Errorf("invalid DTSTART: %w", err)
	}

	end, err := c.eventEnd(event, start, allDay, zone)
	if err != nil {
		return nil, err
	}

	id := propValue(event, ical.PropUID)
	if id == "" {
		id = uuid.NewString()
	} else if rid := event.Props.Get(propRecurrenceID); rid != nil && rid.Value != "" {
		// Overrides of a recurring event share its UID.
		id = id + "#" + rid.Value
	}

	title := strings.TrimSpace(textValue(event, ical.PropSummary))
	if title == "" {
		title = UntitledEvent
	}

	now := c.now().UTC()
	created := c.timestamp(event, ical.PropCreated, now)
	updated := c.timestamp(event, ical.PropLastModified, created)

	return domain.NewSchedule(domain.ScheduleParams{
		ID:              id,
		Title:           title,
		Description:     textValue(event, ical.PropDescription),
		Location:        textValue(event, ical.PropLocation),
		Start:           start,
		End:             end,
		TimezoneID:      zone.String(),
		IsAllDay:        allDay,
		Type:            domain.ScheduleTypeEvent,
		CalendarID:      calendarID,
		ReminderMinutes: alarmMinutes(event),
		RepeatRule:      propValue(event, ical.PropRecurrenceRule),
		SubscriptionID:  subscriptionID,
		CreatedAt:       created,
		UpdatedAt:       updated,
	})
}

func (c *Codec) eventEnd(event *ical.Component, start time.Time, allDay bool, zone *time.Location) (time.Time, error) {
	if endProp := event.Props.Get(ical.PropDateTimeEnd); endProp != nil && strings.TrimSpace(endProp.Value) != "" {
		end, _, _, err := parseDate(endProp, zone)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid DTEND: %w", err)
		}
		return end, nil
	}
	if durProp := event.Props.Get(ical.PropDuration); durProp != nil {
		d, err := durProp.Duration()
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid DURATION: %w", err)
		}
		return start.Add(d), nil
	}
	if allDay {
		return start.AddDate(0, 0, 1), nil
	}
	return start.Add(time.Hour), nil
}

// eventZone is the zone named by X-SYNAPSE-TIMEZONE, else the codec default.
func (c *Codec) eventZone(event *ical.Component) *time.Location {
	if name := propValue(event, PropTimezone); name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return c.loc
}

// parseDate reads a DATE or DATE-TIME property. Date-only values are all-day
// and anchored at midnight in the event zone. The zone comes from TZID when
// it names a known location, else fallback.
func parseDate(prop *ical.Prop, fallback *time.Location) (time.Time, bool, *time.Location, error) {
	value := strings.TrimSpace(prop.Value)

	zone := fallback
	if tzid := firstParam(prop, paramTZID); tzid != "" {
		if loc, err := time.LoadLocation(tzid); err == nil {
			zone = loc
		}
	}

	if strings.EqualFold(firstParam(prop, paramValue), "DATE") || len(value) == len(dateLayout) {
		t, err := time.ParseInLocation(dateLayout, value, zone)
		return t, true, zone, err
	}

	if strings.HasSuffix(value, "Z") {
		t, err := time.Parse(utcDateTimeLayout, value)
		if err != nil {
			return time.Time{}, false, nil, err
		}
		return t, false, zone, nil
	}

	t, err := time.ParseInLocation(dateTimeLayout, value, zone)
	return t, false, zone, err
}

func (c *Codec) timestamp(event *ical.Component, name string, fallback time.Time) time.Time {
	prop := event.Props.Get(name)
	if prop == nil {
		return fallback
	}
	t, _, _, err := parseDate(prop, c.loc)
	if err != nil {
		return fallback
	}
	return t
}

func alarmMinutes(event *ical.Component) []int {
	var minutes []int
	for _, child := range event.Children {
		if child.Name != compAlarm {
			continue
		}
		trigger := child.Props.Get(ical.PropTrigger)
		if trigger == nil {
			continue
		}
		// Only start-relative triggers map to reminder offsets.
		if strings.EqualFold(firstParam(trigger, "RELATED"), "END") || strings.EqualFold(firstParam(trigger, paramValue), "DATE-TIME") {
			continue
		}
		d, err := trigger.Duration()
		if err != nil || d > 0 {
			continue
		}
		minutes = append(minutes, int(-d/time.Minute))
	}
	return minutes
}

func firstParam(prop *ical.Prop, name string) string {
	if prop.Params == nil {
		return ""
	}
	if values := prop.Params[name]; len(values) > 0 {
		return values[0]
	}
	return ""
}

func propValue(comp *ical.Component, name string) string {
	if prop := comp.Props.Get(name); prop != nil {
		return strings.TrimSpace(prop.Value)
	}
	return ""
}

// textValue unescapes a TEXT property, falling back to the raw value.
func textValue(comp *ical.Component, name string) string {
	text, err := comp.Props.Text(name)
	if err != nil {
		return propValue(comp, name)
	}
	return text
}

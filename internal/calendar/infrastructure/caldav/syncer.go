package caldav

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"

	"github.com/Owl23007/synapse-android-sub000/internal/calendar/domain"
	"github.com/Owl23007/synapse-android-sub000/internal/calendar/infrastructure/icalendar"
)

// Common CalDAV server URLs
const (
	AppleCalDAVURL    = "https://caldav.icloud.com"
	FastmailCalDAVURL = "https://caldav.fastmail.com"
)

// PropXSynapse marks events pushed by this app so they can be told apart
// from events created elsewhere.
const PropXSynapse = "X-SYNAPSE"

// ErrNoCalendars is returned when the account exposes no calendar.
var ErrNoCalendars = errors.New("no calendars found")

// Config holds the CalDAV account settings.
type Config struct {
	BaseURL  string
	Username string
	// Password is an app-specific password for providers such as iCloud.
	Password string
	// CalendarPath selects a calendar; empty means the first one found.
	CalendarPath string
	Timeout      time.Duration
}

// Calendar is a remote calendar collection.
type Calendar struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

// PushResult counts the outcome of a push.
type PushResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

// Syncer pushes schedules to a CalDAV calendar (Apple Calendar, Fastmail,
// Nextcloud, etc.) and pulls events back as schedules.
type Syncer struct {
	cfg           Config
	codec         *icalendar.Codec
	logger        *slog.Logger
	deleteMissing bool
	now           func() time.Time
}

// NewSyncer creates a CalDAV syncer. Events are decoded with codec.
func NewSyncer(cfg Config, codec *icalendar.Codec, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if codec == nil {
		codec = icalendar.NewCodec(time.UTC, logger)
	}
	return &Syncer{
		cfg:    cfg,
		codec:  codec,
		logger: logger,
		now:    time.Now,
	}
}

// WithDeleteMissing makes Push remove previously pushed events that are not
// part of the pushed set.
func (s *Syncer) WithDeleteMissing(enabled bool) *Syncer {
	s.deleteMissing = enabled
	return s
}

// Push uploads each schedule as <calendar>/<id>.ics.
func (s *Syncer) Push(ctx context.Context, schedules []*domain.Schedule) (PushResult, error) {
	client, err := s.client()
	if err != nil {
		return PushResult{}, err
	}
	calPath, err := s.findCalendarPath(ctx, client)
	if err != nil {
		return PushResult{}, fmt.Errorf("failed to find calendar: %w", err)
	}

	var result PushResult
	keep := make(map[string]struct{}, len(schedules))
	for _, sched := range schedules {
		path := objectPath(calPath, sched.ID())
		keep[path] = struct{}{}

		_, getErr := client.GetCalendarObject(ctx, path)
		if _, err := client.PutCalendarObject(ctx, path, s.toCalendar(sched)); err != nil {
			s.logger.Warn("caldav push failed", "event_path", path, "error", err)
			result.Failed++
			continue
		}
		if getErr == nil {
			result.Updated++
		} else {
			result.Created++
		}
	}

	if s.deleteMissing {
		deleted, err := s.deleteMissingEvents(ctx, client, calPath, keep)
		if err != nil {
			s.logger.Warn("caldav delete missing failed", "error", err)
		}
		result.Deleted = deleted
	}
	return result, nil
}

// Pull returns the events between start and end as schedules in
// calendarID. Events this app pushed are skipped unless includeOwn is set.
func (s *Syncer) Pull(ctx context.Context, start, end time.Time, calendarID string, includeOwn bool) ([]*domain.Schedule, error) {
	client, err := s.client()
	if err != nil {
		return nil, err
	}
	calPath, err := s.findCalendarPath(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("failed to find calendar: %w", err)
	}

	objects, err := client.QueryCalendar(ctx, calPath, eventQuery(start, end))
	if err != nil {
		return nil, fmt.Errorf("failed to query calendar: %w", err)
	}

	var schedules []*domain.Schedule
	for i := range objects {
		obj := &objects[i]
		if !includeOwn && isOwnEvent(obj) {
			continue
		}
		schedules = append(schedules, s.fromObject(obj, calendarID)...)
	}
	return schedules, nil
}

// ListCalendars returns calendars accessible to the account.
func (s *Syncer) ListCalendars(ctx context.Context) ([]Calendar, error) {
	client, err := s.client()
	if err != nil {
		return nil, err
	}
	cals, err := s.discover(ctx, client)
	if err != nil {
		return nil, err
	}
	out := make([]Calendar, 0, len(cals))
	for _, c := range cals {
		out = append(out, Calendar{Path: c.Path, Name: c.Name})
	}
	return out, nil
}

// Delete removes the pushed copy of a schedule.
func (s *Syncer) Delete(ctx context.Context, scheduleID string) error {
	client, err := s.client()
	if err != nil {
		return err
	}
	calPath, err := s.findCalendarPath(ctx, client)
	if err != nil {
		return fmt.Errorf("failed to find calendar: %w", err)
	}
	return client.RemoveAll(ctx, objectPath(calPath, scheduleID))
}

func (s *Syncer) client() (*caldav.Client, error) {
	httpClient := webdav.HTTPClientWithBasicAuth(&http.Client{Timeout: s.cfg.Timeout}, s.cfg.Username, s.cfg.Password)
	client, err := caldav.NewClient(httpClient, s.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}
	return client, nil
}

func (s *Syncer) discover(ctx context.Context, client *caldav.Client) ([]caldav.Calendar, error) {
	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to find principal: %w", err)
	}
	homeSet, err := client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("failed to find calendar home set: %w", err)
	}
	cals, err := client.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, fmt.Errorf("failed to find calendars: %w", err)
	}
	return cals, nil
}

func (s *Syncer) findCalendarPath(ctx context.Context, client *caldav.Client) (string, error) {
	if s.cfg.CalendarPath != "" {
		return s.cfg.CalendarPath, nil
	}
	cals, err := s.discover(ctx, client)
	if err != nil {
		return "", err
	}
	if len(cals) == 0 {
		return "", ErrNoCalendars
	}
	return cals[0].Path, nil
}

func (s *Syncer) deleteMissingEvents(ctx context.Context, client *caldav.Client, calPath string, keep map[string]struct{}) (int, error) {
	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:  ical.CompCalendar,
			Comps: []caldav.CalendarCompRequest{{Name: ical.CompEvent, Props: []string{ical.PropUID, PropXSynapse}}},
		},
		CompFilter: caldav.CompFilter{
			Name:  ical.CompCalendar,
			Comps: []caldav.CompFilter{{Name: ical.CompEvent}},
		},
	}
	objects, err := client.QueryCalendar(ctx, calPath, query)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for i := range objects {
		obj := &objects[i]
		if !isOwnEvent(obj) {
			continue
		}
		if _, ok := keep[obj.Path]; ok {
			continue
		}
		if err := client.RemoveAll(ctx, obj.Path); err != nil {
			s.logger.Warn("failed to delete caldav event", "path", obj.Path, "error", err)
			continue
		}
		deleted++
	}
	return deleted, nil
}

// toCalendar wraps one schedule in a VCALENDAR and marks it as ours.
func (s *Syncer) toCalendar(sched *domain.Schedule) *ical.Calendar {
	cal := icalendar.NewCalendar()
	event := icalendar.EventFromSchedule(sched, s.now())
	mark := ical.NewProp(PropXSynapse)
	mark.Value = "1"
	event.Props.Set(mark)
	cal.Children = append(cal.Children, event.Component)
	return cal
}

// fromObject decodes every VEVENT of obj. Broken events are logged and skipped.
func (s *Syncer) fromObject(obj *caldav.CalendarObject, calendarID string) []*domain.Schedule {
	if obj == nil || obj.Data == nil {
		return nil
	}
	var out []*domain.Schedule
	for _, child := range obj.Data.Children {
		if child.Name != ical.CompEvent {
			continue
		}
		sched, err := s.codec.ScheduleFromEvent(child, calendarID, "")
		if err != nil {
			s.logger.Warn("skipping caldav event", "path", obj.Path, "error", err)
			continue
		}
		out = append(out, sched)
	}
	return out
}

func eventQuery(start, end time.Time) *caldav.CalendarQuery {
	return &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:     ical.CompCalendar,
			AllProps: true,
			AllComps: true,
		},
		CompFilter: caldav.CompFilter{
			Name:  ical.CompCalendar,
			Comps: []caldav.CompFilter{{Name: ical.CompEvent, Start: start, End: end}},
		},
	}
}

// isOwnEvent reports whether any VEVENT in obj carries X-SYNAPSE:1.
func isOwnEvent(obj *caldav.CalendarObject) bool {
	if obj == nil || obj.Data == nil {
		return false
	}
	for _, child := range obj.Data.Children {
		if child.Name != ical.CompEvent {
			continue
		}
		if prop := child.Props.Get(PropXSynapse); prop != nil && prop.Value == "1" {
			return true
		}
	}
	return false
}

func objectPath(calPath, id string) string {
	if !strings.HasSuffix(calPath, "/") {
		calPath += "/"
	}
	return calPath + id + ".ics"
}

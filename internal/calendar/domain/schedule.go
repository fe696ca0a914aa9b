package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	sharedDomain "github.com/Owl23007/synapse-android-sub000/internal/shared/domain"
)

// Domain errors for Schedule validation.
var (
	ErrEmptyTitle         = errors.New("schedule title cannot be empty")
	ErrEmptyCalendarID    = errors.New("calendar ID cannot be empty")
	ErrEndBeforeStart     = errors.New("schedule end time cannot be before start time")
	ErrNegativeReminder   = errors.New("reminder minutes cannot be negative")
	ErrInvalidTimezone    = errors.New("invalid timezone")
	ErrInvalidType        = errors.New("invalid schedule type")
	ErrScheduleNotFound   = errors.New("schedule not found")
	ErrScheduleIDRequired = errors.New("schedule ID is required")
)

// ScheduleParams carries the fields needed to build a Schedule. Zero
// CreatedAt/UpdatedAt mean now; an empty ID generates one.
type ScheduleParams struct {
	ID              string
	Title           string
	Description     string
	Location        string
	Start           time.Time
	End             time.Time
	TimezoneID      string
	IsAllDay        bool
	Type            ScheduleType
	CalendarID      string
	Color           string
	ReminderMinutes []int
	IsAlarm         bool
	RepeatRule      string
	SubscriptionID  string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Schedule is a calendar entry owned by one calendar.
type Schedule struct {
	sharedDomain.BaseAggregateRoot
	title           string
	description     string
	location        string
	start           time.Time
	end             time.Time
	timezoneID      string
	isAllDay        bool
	scheduleType    ScheduleType
	calendarID      string
	color           string
	reminderMinutes []int
	isAlarm         bool
	repeatRule      string
	subscriptionID  string
}

// NewSchedule validates p and records a ScheduleCreatedEvent.
func NewSchedule(p ScheduleParams) (*Schedule, error) {
	s, err := build(p)
	if err != nil {
		return nil, err
	}
	s.AddDomainEvent(NewScheduleCreatedEvent(s))
	return s, nil
}

// RehydrateSchedule rebuilds a persisted schedule without recording events.
func RehydrateSchedule(p ScheduleParams) (*Schedule, error) {
	if p.ID == "" {
		return nil, ErrScheduleIDRequired
	}
	return build(p)
}

func build(p ScheduleParams) (*Schedule, error) {
	if strings.TrimSpace(p.Title) == "" {
		return nil, ErrEmptyTitle
	}
	if strings.TrimSpace(p.CalendarID) == "" {
		return nil, ErrEmptyCalendarID
	}
	if p.End.Before(p.Start) {
		return nil, ErrEndBeforeStart
	}
	if p.Type == "" {
		p.Type = ScheduleTypeEvent
	}
	if !p.Type.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidType, p.Type)
	}
	if p.TimezoneID == "" {
		p.TimezoneID = "UTC"
	}
	if _, err := time.LoadLocation(p.TimezoneID); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTimezone, p.TimezoneID)
	}
	minutes, err := normalizeReminders(p.ReminderMinutes)
	if err != nil {
		return nil, err
	}

	id := p.ID
	if id == "" {
		id = sharedDomain.NewID()
	}
	created, updated := p.CreatedAt, p.UpdatedAt
	if created.IsZero() {
		created = sharedDomain.Now()
	}
	if updated.IsZero() {
		updated = created
	}

	return &Schedule{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(
			sharedDomain.RehydrateBaseEntity(id, created, updated),
		),
		title:           strings.TrimSpace(p.Title),
		description:     p.Description,
		location:        p.Location,
		start:           p.Start.UTC().Truncate(time.Millisecond),
		end:             p.End.UTC().Truncate(time.Millisecond),
		timezoneID:      p.TimezoneID,
		isAllDay:        p.IsAllDay,
		scheduleType:    p.Type,
		calendarID:      p.CalendarID,
		color:           p.Color,
		reminderMinutes: minutes,
		isAlarm:         p.IsAlarm,
		repeatRule:      strings.TrimSpace(p.RepeatRule),
		subscriptionID:  p.SubscriptionID,
	}, nil
}

// normalizeReminders rejects negative values and drops repeats, keeping the
// first occurrence so firing order follows the caller's order.
func normalizeReminders(in []int) ([]int, error) {
	if len(in) == 0 {
		return nil, nil
	}
	seen := make(map[int]bool, len(in))
	out := make([]int, 0, len(in))
	for _, m := range in {
		if m < 0 {
			return nil, ErrNegativeReminder
		}
		if seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out, nil
}

func (s *Schedule) Title() string          { return s.title }
func (s *Schedule) Description() string    { return s.description }
func (s *Schedule) Location() string       { return s.location }
func (s *Schedule) StartTime() time.Time   { return s.start }
func (s *Schedule) EndTime() time.Time     { return s.end }
func (s *Schedule) TimezoneID() string     { return s.timezoneID }
func (s *Schedule) IsAllDay() bool         { return s.isAllDay }
func (s *Schedule) Type() ScheduleType     { return s.scheduleType }
func (s *Schedule) CalendarID() string     { return s.calendarID }
func (s *Schedule) IsAlarm() bool          { return s.isAlarm }
func (s *Schedule) RepeatRule() string     { return s.repeatRule }
func (s *Schedule) SubscriptionID() string { return s.subscriptionID }
func (s *Schedule) Duration() time.Duration {
	return s.end.Sub(s.start)
}

// IsFromSubscription reports whether the schedule was created by a subscription sync.
func (s *Schedule) IsFromSubscription() bool { return s.subscriptionID != "" }

// IsRecurring reports whether the schedule carries a recurrence rule.
func (s *Schedule) IsRecurring() bool { return s.repeatRule != "" }

// ReminderMinutes returns a copy of the reminder offsets.
func (s *Schedule) ReminderMinutes() []int {
	if s.reminderMinutes == nil {
		return nil
	}
	out := make([]int, len(s.reminderMinutes))
	copy(out, s.reminderMinutes)
	return out
}

// Color returns the override color, or the type's default.
func (s *Schedule) Color() string {
	if s.color != "" {
		return s.color
	}
	return s.scheduleType.DefaultColor()
}

// ColorOverride returns only the explicit color, for persistence.
func (s *Schedule) ColorOverride() string { return s.color }

// Zone returns the schedule's IANA location, falling back to UTC.
func (s *Schedule) Zone() *time.Location {
	loc, err := time.LoadLocation(s.timezoneID)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Overlaps reports whether the schedule intersects the half-open range
// [start, end): existing.start < end && existing.end > start.
func (s *Schedule) Overlaps(start, end time.Time) bool {
	return s.start.Before(end) && s.end.After(start)
}

// Reschedule moves the schedule, keeping end >= start.
func (s *Schedule) Reschedule(start, end time.Time) error {
	if end.Before(start) {
		return ErrEndBeforeStart
	}
	s.start = start.UTC().Truncate(time.Millisecond)
	s.end = end.UTC().Truncate(time.Millisecond)
	s.Touch()
	return nil
}

// ReassignID gives the schedule a fresh identity. Used when an imported
// copy must live alongside a schedule that already owns its UID.
func (s *Schedule) ReassignID() {
	s.SetID(sharedDomain.NewID())
	s.ClearDomainEvents()
	s.AddDomainEvent(NewScheduleCreatedEvent(s))
}

// ScheduleChanges is a partial edit; nil fields are left unchanged.
type ScheduleChanges struct {
	Title           *string
	Description     *string
	Location        *string
	Start           *time.Time
	End             *time.Time
	TimezoneID      *string
	IsAllDay        *bool
	Type            *ScheduleType
	Color           *string
	ReminderMinutes *[]int
	IsAlarm         *bool
	RepeatRule      *string
}

// Apply validates and applies c as one edit and records a ScheduleUpdatedEvent.
// On error the schedule is unchanged.
func (s *Schedule) Apply(c ScheduleChanges) error {
	p := s.params()
	if c.Title != nil {
		p.Title = *c.Title
	}
	if c.Description != nil {
		p.Description = *c.Description
	}
	if c.Location != nil {
		p.Location = *c.Location
	}
	if c.Start != nil {
		p.Start = *c.Start
	}
	if c.End != nil {
		p.End = *c.End
	}
	if c.TimezoneID != nil {
		p.TimezoneID = *c.TimezoneID
	}
	if c.IsAllDay != nil {
		p.IsAllDay = *c.IsAllDay
	}
	if c.Type != nil {
		p.Type = *c.Type
	}
	if c.Color != nil {
		p.Color = *c.Color
	}
	if c.ReminderMinutes != nil {
		p.ReminderMinutes = *c.ReminderMinutes
	}
	if c.IsAlarm != nil {
		p.IsAlarm = *c.IsAlarm
	}
	if c.RepeatRule != nil {
		p.RepeatRule = *c.RepeatRule
	}
	p.UpdatedAt = sharedDomain.Now()

	next, err := build(p)
	if err != nil {
		return err
	}

	events := s.DomainEvents()
	*s = *next
	for _, e := range events {
		s.AddDomainEvent(e)
	}
	s.AddDomainEvent(NewScheduleUpdatedEvent(s))
	return nil
}

// MarkDeleted records a ScheduleDeletedEvent.
func (s *Schedule) MarkDeleted() {
	s.AddDomainEvent(NewScheduleDeletedEvent(s))
}

// Snapshot returns the schedule's fields as params, e.g. for persistence
// or to take a copy before an edit.
func (s *Schedule) Snapshot() ScheduleParams {
	return s.params()
}

func (s *Schedule) params() ScheduleParams {
	return ScheduleParams{
		ID:              s.ID(),
		Title:           s.title,
		Description:     s.description,
		Location:        s.location,
		Start:           s.start,
		End:             s.end,
		TimezoneID:      s.timezoneID,
		IsAllDay:        s.isAllDay,
		Type:            s.scheduleType,
		CalendarID:      s.calendarID,
		Color:           s.color,
		ReminderMinutes: s.ReminderMinutes(),
		IsAlarm:         s.isAlarm,
		RepeatRule:      s.repeatRule,
		SubscriptionID:  s.subscriptionID,
		CreatedAt:       s.CreatedAt(),
		UpdatedAt:       s.UpdatedAt(),
	}
}

package queries

import (
	"context"
	"errors"
	"time"

	"github.com/Owl23007/synapse-android-sub000/internal/calendar/domain"
)

// DefaultListLimit caps ListSchedules when no limit is given.
const DefaultListLimit = 500

// ErrInvalidListRange is returned when To is not after From.
var ErrInvalidListRange = errors.New("list range end must be after start")

// ListSchedulesQuery selects schedules. Zero values match everything.
type ListSchedulesQuery struct {
	From       time.Time
	To         time.Time
	CalendarID string
	Search     string
	Limit      int
}

// ScheduleDTO is the read model returned by schedule queries.
type ScheduleDTO struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	Location        string    `json:"location,omitempty"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	TimezoneID      string    `json:"timezone_id"`
	IsAllDay        bool      `json:"is_all_day"`
	Type            string    `json:"type"`
	TypeName        string    `json:"type_name"`
	CalendarID      string    `json:"calendar_id"`
	Color           string    `json:"color"`
	ReminderMinutes []int     `json:"reminder_minutes"`
	IsAlarm         bool      `json:"is_alarm"`
	RepeatRule      string    `json:"repeat_rule,omitempty"`
	SubscriptionID  string    `json:"subscription_id,omitempty"`
}

// ToScheduleDTO converts a schedule into its read model.
func ToScheduleDTO(s *domain.Schedule) ScheduleDTO {
	return ScheduleDTO{
		ID:              s.ID(),
		Title:           s.Title(),
		Description:     s.Description(),
		Location:        s.Location(),
		StartTime:       s.StartTime(),
		EndTime:         s.EndTime(),
		TimezoneID:      s.TimezoneID(),
		IsAllDay:        s.IsAllDay(),
		Type:            s.Type().String(),
		TypeName:        s.Type().DisplayName(),
		CalendarID:      s.CalendarID(),
		Color:           s.Color(),
		ReminderMinutes: s.ReminderMinutes(),
		IsAlarm:         s.IsAlarm(),
		RepeatRule:      s.RepeatRule(),
		SubscriptionID:  s.SubscriptionID(),
	}
}

// ListSchedulesHandler handles ListSchedulesQuery.
type ListSchedulesHandler struct {
	schedules domain.ScheduleRepository
}

// NewListSchedulesHandler creates a new list schedules handler.
func NewListSchedulesHandler(schedules domain.ScheduleRepository) *ListSchedulesHandler {
	return &ListSchedulesHandler{schedules: schedules}
}

// Handle returns matching schedules ordered by start time.
func (h *ListSchedulesHandler) Handle(ctx context.Context, q ListSchedulesQuery) ([]ScheduleDTO, error) {
	if !q.From.IsZero() && !q.To.IsZero() && !q.To.After(q.From) {
		return nil, ErrInvalidListRange
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	schedules, err := h.schedules.List(ctx, domain.ScheduleFilter{
		From:       q.From,
		To:         q.To,
		CalendarID: q.CalendarID,
		Query:      q.Search,
		Limit:      limit,
	})
	if err != nil {
		return nil, err
	}
	dtos := make([]ScheduleDTO, 0, len(schedules))
	for _, s := range schedules {
		dtos = append(dtos, ToScheduleDTO(s))
	}
	return dtos, nil
}

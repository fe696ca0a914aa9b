package domain

import (
	"time"

	sharedDomain "github.com/Owl23007/synapse-android-sub000/internal/shared/domain"
)

const (
	// AggregateTypeSchedule is the aggregate type for schedules.
	AggregateTypeSchedule = "schedule"

	RoutingKeyScheduleCreated = "calendar.schedule.created"
	RoutingKeyScheduleUpdated = "calendar.schedule.updated"
	RoutingKeyScheduleDeleted = "calendar.schedule.deleted"
)

// ScheduleEventPayload is the body shared by the schedule events.
type ScheduleEventPayload struct {
	Title          string    `json:"title"`
	CalendarID     string    `json:"calendar_id"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	SubscriptionID string    `json:"subscription_id,omitempty"`
}

func payloadOf(s *Schedule) ScheduleEventPayload {
	return ScheduleEventPayload{
		Title:          s.title,
		CalendarID:     s.calendarID,
		Start:          s.start,
		End:            s.end,
		SubscriptionID: s.subscriptionID,
	}
}

// ScheduleCreatedEvent is published when a schedule is created or imported.
type ScheduleCreatedEvent struct {
	sharedDomain.BaseEvent
	ScheduleEventPayload
}

func NewScheduleCreatedEvent(s *Schedule) *ScheduleCreatedEvent {
	return &ScheduleCreatedEvent{
		BaseEvent:            sharedDomain.NewBaseEvent(s.ID(), AggregateTypeSchedule, RoutingKeyScheduleCreated),
		ScheduleEventPayload: payloadOf(s),
	}
}

// ScheduleUpdatedEvent is published after an edit.
type ScheduleUpdatedEvent struct {
	sharedDomain.BaseEvent
	ScheduleEventPayload
}

func NewScheduleUpdatedEvent(s *Schedule) *ScheduleUpdatedEvent {
	return &ScheduleUpdatedEvent{
		BaseEvent:            sharedDomain.NewBaseEvent(s.ID(), AggregateTypeSchedule, RoutingKeyScheduleUpdated),
		ScheduleEventPayload: payloadOf(s),
	}
}

// ScheduleDeletedEvent is published after a schedule is removed.
type ScheduleDeletedEvent struct {
	sharedDomain.BaseEvent
	ScheduleEventPayload
}

func NewScheduleDeletedEvent(s *Schedule) *ScheduleDeletedEvent {
	return &ScheduleDeletedEvent{
		BaseEvent:            sharedDomain.NewBaseEvent(s.ID(), AggregateTypeSchedule, RoutingKeyScheduleDeleted),
		ScheduleEventPayload: payloadOf(s),
	}
}

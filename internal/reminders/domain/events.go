package domain

import (
	"time"

	sharedDomain "github.com/Owl23007/synapse-android-sub000/internal/shared/domain"
)

const (
	AggregateTypeReminder = "reminder"

	RoutingKeyReminderFired = "reminders.reminder.fired"
)

// ReminderFiredEvent is published when a dispatcher claims a due alarm.
type ReminderFiredEvent struct {
	sharedDomain.BaseEvent
	Key        string    `json:"key"`
	ScheduleID string    `json:"schedule_id"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	TriggerAt  time.Time `json:"trigger_at"`
	FiredAt    time.Time `json:"fired_at"`
	Tier       Tier      `json:"tier"`
	Minutes    int       `json:"minutes"`
}

// NewReminderFiredEvent records that alarm fired at firedAt.
func NewReminderFiredEvent(alarm Alarm, firedAt time.Time) *ReminderFiredEvent {
	return &ReminderFiredEvent{
		BaseEvent:  sharedDomain.NewBaseEvent(alarm.ScheduleID, AggregateTypeReminder, RoutingKeyReminderFired),
		Key:        alarm.Handle.Key,
		ScheduleID: alarm.ScheduleID,
		Title:      alarm.Title,
		Message:    alarm.Message,
		TriggerAt:  alarm.TriggerAt,
		FiredAt:    firedAt.UTC(),
		Tier:       alarm.Tier,
		Minutes:    alarm.Minutes,
	}
}

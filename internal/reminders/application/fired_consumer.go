package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	calendarDomain "github.com/Owl23007/synapse-android-sub000/internal/calendar/domain"
	"github.com/Owl23007/synapse-android-sub000/internal/reminders/domain"
	"github.com/Owl23007/synapse-android-sub000/internal/shared/infrastructure/eventbus"
	"github.com/Owl23007/synapse-android-sub000/pkg/observability"
)

// Notifier delivers a fired reminder to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Notification is what the user sees when a reminder fires.
type Notification struct {
	ScheduleID string
	Title      string
	Message    string
	Tier       domain.Tier
	// FullScreen is set for clock alarms.
	FullScreen bool
}

// LogNotifier writes notifications to the log.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(ctx context.Context, notification Notification) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("reminder",
		"schedule_id", notification.ScheduleID,
		"title", notification.Title,
		"message", notification.Message,
		"full_screen", notification.FullScreen,
	)
	return nil
}

// FiredConsumer turns reminders.reminder.fired events into notifications.
// Alarms whose schedule was deleted or no longer has that offset are
// dropped as stale.
type FiredConsumer struct {
	schedules calendarDomain.ScheduleRepository
	notifier  Notifier
	logger    *slog.Logger
	metrics   observability.Metrics
}

// NewFiredConsumer creates the consumer. A nil notifier logs.
func NewFiredConsumer(
	schedules calendarDomain.ScheduleRepository,
	notifier Notifier,
	logger *slog.Logger,
	metrics observability.Metrics,
) *FiredConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = LogNotifier{Logger: logger}
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &FiredConsumer{schedules: schedules, notifier: notifier, logger: logger, metrics: metrics}
}

func (c *FiredConsumer) EventTypes() []string {
	return []string{domain.RoutingKeyReminderFired}
}

type firedPayload struct {
	Key        string      `json:"key"`
	ScheduleID string      `json:"schedule_id"`
	Title      string      `json:"title"`
	Message    string      `json:"message"`
	TriggerAt  time.Time   `json:"trigger_at"`
	Tier       domain.Tier `json:"tier"`
	Minutes    int         `json:"minutes"`
}

func (c *FiredConsumer) Handle(ctx context.Context, event *eventbus.ConsumedEvent) error {
	var p firedPayload
	if err := event.DecodePayload(&p); err != nil {
		return fmt.Errorf("failed to decode fired reminder: %w", err)
	}

	if c.schedules != nil {
		stale, err := c.isStale(ctx, p)
		if err != nil {
			return err
		}
		if stale {
			c.logger.Debug("dropping stale reminder", "key", p.Key)
			c.metrics.Counter("reminders.stale", 1)
			return nil
		}
	}

	return c.notifier.Notify(ctx, Notification{
		ScheduleID: p.ScheduleID,
		Title:      p.Title,
		Message:    p.Message,
		Tier:       p.Tier,
		FullScreen: p.Tier == domain.TierClockAlarm,
	})
}

func (c *FiredConsumer) isStale(ctx context.Context, p firedPayload) (bool, error) {
	s, err := c.schedules.FindByID(ctx, p.ScheduleID)
	if errors.Is(err, calendarDomain.ErrScheduleNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load schedule for reminder: %w", err)
	}
	if !slices.Contains(s.ReminderMinutes(), p.Minutes) {
		return true, nil
	}
	// An edit moved the start; the re-armed alarm carries the new trigger.
	if !s.IsRecurring() && !s.StartTime().Add(-time.Duration(p.Minutes)*time.Minute).Equal(p.TriggerAt) {
		return true, nil
	}
	return false, nil
}

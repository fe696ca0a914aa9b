package commands

import (
	"context"
	"log/slog"

	"github.com/Owl23007/synapse-android-sub000/internal/calendar/domain"
	sharedApplication "github.com/Owl23007/synapse-android-sub000/internal/shared/application"
	sharedDomain "github.com/Owl23007/synapse-android-sub000/internal/shared/domain"
	"github.com/Owl23007/synapse-android-sub000/internal/shared/infrastructure/eventbus"
)

// Codec converts between schedules and iCalendar text.
type Codec interface {
	Encode(schedules []*domain.Schedule) (string, error)
	Decode(text, calendarID, subscriptionID string) ([]*domain.Schedule, error)
}

// Fetcher downloads subscription feeds.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
	Validate(ctx context.Context, url string) bool
}

// ReminderScheduler arms and cancels the reminders of a schedule. Failures
// are handled inside the scheduler and never abort the calling command.
type ReminderScheduler interface {
	ScheduleReminder(ctx context.Context, s *domain.Schedule)
	CancelReminder(ctx context.Context, s *domain.Schedule)
}

type noopReminders struct{}

func (noopReminders) ScheduleReminder(context.Context, *domain.Schedule) {}
func (noopReminders) CancelReminder(context.Context, *domain.Schedule)   {}

func remindersOrNoop(r ReminderScheduler) ReminderScheduler {
	if r == nil {
		return noopReminders{}
	}
	return r
}

func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// publishEvents stamps and publishes the pending events of each schedule,
// then clears them. The data is already committed, so a failed publish is
// logged and not returned.
func publishEvents(ctx context.Context, publisher eventbus.Publisher, logger *slog.Logger, schedules ...*domain.Schedule) {
	var events []sharedDomain.DomainEvent
	for _, s := range schedules {
		events = append(events, s.DomainEvents()...)
		s.ClearDomainEvents()
	}
	if len(events) == 0 {
		return
	}
	sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(ctx))
	if err := eventbus.PublishAll(ctx, publisher, events...); err != nil {
		logger.Warn("failed to publish schedule events", "count", len(events), "error", err)
	}
}

package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Owl23007/synapse-android-sub000/internal/calendar/domain"
	sharedApplication "github.com/Owl23007/synapse-android-sub000/internal/shared/application"
	"github.com/Owl23007/synapse-android-sub000/internal/shared/infrastructure/eventbus"
)

// UpdateScheduleCommand applies a partial edit to a schedule.
type UpdateScheduleCommand struct {
	ID      string
	Changes domain.ScheduleChanges
}

// UpdateScheduleHandler handles UpdateScheduleCommand. The reminders of the
// old state are cancelled before the new state is persisted and armed, so
// no timer from before the edit survives it.
type UpdateScheduleHandler struct {
	schedules domain.ScheduleRepository
	reminders ReminderScheduler
	publisher eventbus.Publisher
	uow       sharedApplication.UnitOfWork
	logger    *slog.Logger
}

// NewUpdateScheduleHandler creates a new update schedule handler.
func NewUpdateScheduleHandler(
	schedules domain.ScheduleRepository,
	reminders ReminderScheduler,
	publisher eventbus.Publisher,
	uow sharedApplication.UnitOfWork,
	logger *slog.Logger,
) *UpdateScheduleHandler {
	return &UpdateScheduleHandler{
		schedules: schedules,
		reminders: remindersOrNoop(reminders),
		publisher: publisher,
		uow:       uow,
		logger:    loggerOrDefault(logger),
	}
}

// Handle returns the updated schedule.
func (h *UpdateScheduleHandler) Handle(ctx context.Context, cmd UpdateScheduleCommand) (*domain.Schedule, error) {
	if cmd.ID == "" {
		return nil, domain.ErrScheduleIDRequired
	}
	schedule, err := h.schedules.FindByID(ctx, cmd.ID)
	if err != nil {
		return nil, err
	}
	previous, err := domain.RehydrateSchedule(schedule.Snapshot())
	if err != nil {
		return nil, err
	}
	if err := schedule.Apply(cmd.Changes); err != nil {
		return nil, err
	}

	h.reminders.CancelReminder(ctx, previous)
	err = sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		return h.schedules.Save(txCtx, schedule)
	})
	if err != nil {
		h.reminders.ScheduleReminder(ctx, previous)
		return nil, fmt.Errorf("failed to save schedule: %w", err)
	}
	h.reminders.ScheduleReminder(ctx, schedule)

	publishEvents(ctx, h.publisher, h.logger, schedule)
	h.logger.Info("schedule updated", "schedule_id", schedule.ID())
	return schedule, nil
}

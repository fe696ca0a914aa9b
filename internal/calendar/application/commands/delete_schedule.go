package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Owl23007/synapse-android-sub000/internal/calendar/domain"
	sharedApplication "github.com/Owl23007/synapse-android-sub000/internal/shared/application"
	"github.com/Owl23007/synapse-android-sub000/internal/shared/infrastructure/eventbus"
)

// DeleteScheduleHandler removes a schedule and its reminders.
type DeleteScheduleHandler struct {
	schedules domain.ScheduleRepository
	reminders ReminderScheduler
	publisher eventbus.Publisher
	uow       sharedApplication.UnitOfWork
	logger    *slog.Logger
}

// NewDeleteScheduleHandler creates a new delete schedule handler.
func NewDeleteScheduleHandler(
	schedules domain.ScheduleRepository,
	reminders ReminderScheduler,
	publisher eventbus.Publisher,
	uow sharedApplication.UnitOfWork,
	logger *slog.Logger,
) *DeleteScheduleHandler {
	return &DeleteScheduleHandler{
		schedules: schedules,
		reminders: remindersOrNoop(reminders),
		publisher: publisher,
		uow:       uow,
		logger:    loggerOrDefault(logger),
	}
}

// Handle deletes the schedule with the given id. Unknown ids return
// domain.ErrScheduleNotFound.
func (h *DeleteScheduleHandler) Handle(ctx context.Context, id string) error {
	if id == "" {
		return domain.ErrScheduleIDRequired
	}
	schedule, err := h.schedules.FindByID(ctx, id)
	if err != nil {
		return err
	}

	err = sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		return h.schedules.Delete(txCtx, id)
	})
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}

	h.reminders.CancelReminder(ctx, schedule)
	schedule.MarkDeleted()
	publishEvents(ctx, h.publisher, h.logger, schedule)
	h.logger.Info("schedule deleted", "schedule_id", id)
	return nil
}

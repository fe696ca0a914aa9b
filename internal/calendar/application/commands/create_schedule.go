package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Owl23007/synapse-android-sub000/internal/calendar/domain"
	sharedApplication "github.com/Owl23007/synapse-android-sub000/internal/shared/application"
	"github.com/Owl23007/synapse-android-sub000/internal/shared/infrastructure/eventbus"
)

// CreateScheduleCommand contains the data needed to create a schedule.
type CreateScheduleCommand struct {
	Title           string `validate:"notblank"`
	Description     string
	Location        string
	Start           time.Time `validate:"required"`
	End             time.Time `validate:"required"`
	TimezoneID      string
	IsAllDay        bool
	Type            domain.ScheduleType
	CalendarID      string `validate:"notblank"`
	Color           string
	ReminderMinutes []int `validate:"dive,gte=0"`
	IsAlarm         bool
	RepeatRule      string
}

func (c CreateScheduleCommand) params() domain.ScheduleParams {
	return domain.ScheduleParams{
		Title:           c.Title,
		Description:     c.Description,
		Location:        c.Location,
		Start:           c.Start,
		End:             c.End,
		TimezoneID:      c.TimezoneID,
		IsAllDay:        c.IsAllDay,
		Type:            c.Type,
		CalendarID:      c.CalendarID,
		Color:           c.Color,
		ReminderMinutes: c.ReminderMinutes,
		IsAlarm:         c.IsAlarm,
		RepeatRule:      c.RepeatRule,
	}
}

// CreateScheduleHandler handles CreateScheduleCommand.
type CreateScheduleHandler struct {
	schedules domain.ScheduleRepository
	reminders ReminderScheduler
	publisher eventbus.Publisher
	uow       sharedApplication.UnitOfWork
	validator *validator.Validate
	logger    *slog.Logger
}

// NewCreateScheduleHandler creates a new create schedule handler.
func NewCreateScheduleHandler(
	schedules domain.ScheduleRepository,
	reminders ReminderScheduler,
	publisher eventbus.Publisher,
	uow sharedApplication.UnitOfWork,
	logger *slog.Logger,
) *CreateScheduleHandler {
	return &CreateScheduleHandler{
		schedules: schedules,
		reminders: remindersOrNoop(reminders),
		publisher: publisher,
		uow:       uow,
		validator: NewValidator(),
		logger:    loggerOrDefault(logger),
	}
}

// Handle persists the new schedule, arms its reminders and publishes
// calendar.schedule.created.
func (h *CreateScheduleHandler) Handle(ctx context.Context, cmd CreateScheduleCommand) (*domain.Schedule, error) {
	if err := validate(h.validator, cmd); err != nil {
		return nil, err
	}
	schedule, err := domain.NewSchedule(cmd.params())
	if err != nil {
		return nil, err
	}

	err = sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		return h.schedules.Save(txCtx, schedule)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save schedule: %w", err)
	}

	h.reminders.ScheduleReminder(ctx, schedule)
	publishEvents(ctx, h.publisher, h.logger, schedule)
	h.logger.Info("schedule created", "schedule_id", schedule.ID(), "calendar_id", schedule.CalendarID())
	return schedule, nil
}

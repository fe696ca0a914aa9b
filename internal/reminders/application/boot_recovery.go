package application

import (
	"context"
	"fmt"
	"log/slog"

	calendarDomain "github.com/Owl23007/synapse-android-sub000/internal/calendar/domain"
)

// BootRecovery re-arms reminders for every persisted schedule. Past
// triggers are skipped by the scheduler, so it can run on every start.
type BootRecovery struct {
	schedules calendarDomain.ScheduleRepository
	scheduler *Scheduler
	logger    *slog.Logger
}

// NewBootRecovery creates a boot recovery job.
func NewBootRecovery(schedules calendarDomain.ScheduleRepository, scheduler *Scheduler, logger *slog.Logger) *BootRecovery {
	if logger == nil {
		logger = slog.Default()
	}
	return &BootRecovery{schedules: schedules, scheduler: scheduler, logger: logger}
}

// Run submits every schedule to the scheduler and returns how many were
// submitted.
func (b *BootRecovery) Run(ctx context.Context) (int, error) {
	schedules, err := b.schedules.List(ctx, calendarDomain.ScheduleFilter{})
	if err != nil {
		return 0, fmt.Errorf("failed to list schedules for reminder recovery: %w", err)
	}

	for _, s := range schedules {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		b.scheduler.ScheduleReminder(ctx, s)
	}

	b.logger.Info("reminders re-armed", "schedules", len(schedules))
	return len(schedules), nil
}

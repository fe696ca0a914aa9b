// Package application arms and cancels reminders for schedules.
package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	calendarDomain "github.com/Owl23007/synapse-android-sub000/internal/calendar/domain"
	"github.com/Owl23007/synapse-android-sub000/internal/reminders/domain"
	"github.com/Owl23007/synapse-android-sub000/pkg/observability"
)

// DefaultGuardWindow is how close a trigger must be to start the guard.
const DefaultGuardWindow = 10 * time.Minute

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	// ExactAlarms false forces the inexact tier whatever the platform allows.
	ExactAlarms bool
	GuardWindow time.Duration
}

// DefaultSchedulerConfig returns the default configuration.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		ExactAlarms: true,
		GuardWindow: DefaultGuardWindow,
	}
}

// Scheduler arms one timer per reminder offset of a schedule. Failures
// never reach the caller: each offset is logged and the next one is tried.
type Scheduler struct {
	alarms  domain.AlarmService
	guard   domain.Guard
	config  SchedulerConfig
	logger  *slog.Logger
	metrics observability.Metrics
	now     func() time.Time
}

// NewScheduler creates a reminder scheduler. guard may be nil.
func NewScheduler(
	alarms domain.AlarmService,
	guard domain.Guard,
	config SchedulerConfig,
	logger *slog.Logger,
	metrics observability.Metrics,
) *Scheduler {
	if config.GuardWindow <= 0 {
		config.GuardWindow = DefaultGuardWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &Scheduler{
		alarms:  alarms,
		guard:   guard,
		config:  config,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// WithClock overrides the scheduler clock. Used by tests.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// ScheduleReminder arms every reminder offset of sched, in order. Offsets
// whose trigger is not in the future are skipped without touching the
// AlarmService.
func (s *Scheduler) ScheduleReminder(ctx context.Context, sched *calendarDomain.Schedule) {
	minutes := sched.ReminderMinutes()
	if len(minutes) == 0 {
		return
	}

	logger := observability.WithContext(ctx, s.logger).With("schedule_id", sched.ID())
	now := s.now()
	exact := s.config.ExactAlarms && s.alarms.CanScheduleExactAlarms(ctx)
	guarded := false

	for _, m := range minutes {
		offset := time.Duration(m) * time.Minute

		start, ok := s.nextStart(sched, now, offset, logger)
		if !ok {
			logger.Debug("skipping past reminder", "minutes", m, "start", sched.StartTime())
			s.metrics.Counter("reminders.skipped", 1)
			continue
		}
		trigger := start.Add(-offset)

		if !guarded && trigger.Sub(now) <= s.config.GuardWindow {
			guarded = true
			s.startGuard(ctx, logger)
		}

		alarm := domain.NewAlarm(sched.ID(), sched.Title(), sched.Location(), trigger, m,
			domain.SelectTier(exact, sched.IsAlarm()))
		s.arm(ctx, alarm, logger)
	}
}

// nextStart returns the start to arm against: the schedule start, or for a
// recurring schedule the first occurrence whose trigger is still ahead.
func (s *Scheduler) nextStart(sched *calendarDomain.Schedule, now time.Time, offset time.Duration, logger *slog.Logger) (time.Time, bool) {
	start := sched.StartTime()
	if start.Add(-offset).After(now) {
		return start, true
	}
	if !sched.IsRecurring() {
		return time.Time{}, false
	}

	rule, err := rrule.StrToRRule(strings.TrimPrefix(sched.RepeatRule(), "RRULE:"))
	if err != nil {
		logger.Warn("ignoring unparseable repeat rule", "rule", sched.RepeatRule(), "error", err)
		return time.Time{}, false
	}
	rule.DTStart(start.In(sched.Zone()))

	next := rule.After(now.Add(offset), false)
	if next.IsZero() {
		return time.Time{}, false
	}
	return next.UTC(), true
}

func (s *Scheduler) arm(ctx context.Context, alarm domain.Alarm, logger *slog.Logger) {
	err := domain.Register(ctx, s.alarms, alarm)
	if errors.Is(err, domain.ErrExactAlarmDenied) && alarm.Tier.IsExact() {
		logger.Warn("exact alarm denied, falling back to inexact", "key", alarm.Handle.Key)
		alarm = alarm.WithTier(domain.TierInexactIdleBypass)
		err = s.alarms.RegisterInexactIdleBypass(ctx, alarm)
	}
	if err != nil {
		logger.Error("failed to arm reminder",
			"key", alarm.Handle.Key,
			"tier", alarm.Tier,
			"error", err,
		)
		s.metrics.Counter("reminders.failed", 1, observability.T("tier", alarm.Tier.String()))
		return
	}

	logger.Debug("reminder armed",
		"key", alarm.Handle.Key,
		"tier", alarm.Tier,
		"trigger_at", alarm.TriggerAt,
	)
	s.metrics.Counter("reminders.armed", 1, observability.T("tier", alarm.Tier.String()))
}

func (s *Scheduler) startGuard(ctx context.Context, logger *slog.Logger) {
	if s.guard == nil {
		return
	}
	if err := s.guard.StartGuard(ctx); err != nil {
		logger.Warn("failed to start reminder guard", "error", err)
	}
}

// CancelReminder cancels the timer of every reminder offset of sched.
// Cancelling timers that were never armed is not an error.
func (s *Scheduler) CancelReminder(ctx context.Context, sched *calendarDomain.Schedule) {
	logger := observability.WithContext(ctx, s.logger).With("schedule_id", sched.ID())
	for _, m := range sched.ReminderMinutes() {
		handle := domain.NewHandle(sched.ID(), m)
		if err := s.alarms.Cancel(ctx, handle); err != nil {
			logger.Warn("failed to cancel reminder", "key", handle.Key, "error", err)
			continue
		}
		s.metrics.Counter("reminders.cancelled", 1)
	}
}

package application

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Owl23007/synapse-android-sub000/internal/reminders/domain"
	"github.com/Owl23007/synapse-android-sub000/internal/shared/infrastructure/eventbus"
	"github.com/Owl23007/synapse-android-sub000/pkg/observability"
)

// DispatcherConfig configures the dispatcher.
type DispatcherConfig struct {
	// IdleInterval is the poll interval when no guard is active.
	IdleInterval time.Duration
	// GuardInterval is the poll interval while a guard is active.
	GuardInterval time.Duration
	// GuardWindow is how long StartGuard keeps the fast interval.
	GuardWindow time.Duration
	BatchSize   int
}

// DefaultDispatcherConfig returns the default configuration.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		IdleInterval:  30 * time.Second,
		GuardInterval: time.Second,
		GuardWindow:   DefaultGuardWindow,
		BatchSize:     100,
	}
}

// Dispatcher fires due alarms by publishing reminders.reminder.fired.
// It also implements domain.Guard for schedulers in the same process.
type Dispatcher struct {
	store      domain.DueStore
	publisher  eventbus.Publisher
	config     DispatcherConfig
	logger     *slog.Logger
	metrics    observability.Metrics
	now        func() time.Time
	guardUntil atomic.Int64
	running    atomic.Bool
	stopCh     chan struct{}
}

// NewDispatcher creates a reminder dispatcher.
func NewDispatcher(
	store domain.DueStore,
	publisher eventbus.Publisher,
	config DispatcherConfig,
	logger *slog.Logger,
	metrics observability.Metrics,
) *Dispatcher {
	defaults := DefaultDispatcherConfig()
	if config.IdleInterval <= 0 {
		config.IdleInterval = defaults.IdleInterval
	}
	if config.GuardInterval <= 0 {
		config.GuardInterval = defaults.GuardInterval
	}
	if config.GuardWindow <= 0 {
		config.GuardWindow = defaults.GuardWindow
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &Dispatcher{
		store:     store,
		publisher: publisher,
		config:    config,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
}

// StartGuard switches to the fast poll interval for the guard window.
func (d *Dispatcher) StartGuard(ctx context.Context) error {
	until := d.now().Add(d.config.GuardWindow).UnixMilli()
	for {
		current := d.guardUntil.Load()
		if current >= until || d.guardUntil.CompareAndSwap(current, until) {
			return nil
		}
	}
}

// Run polls until ctx is cancelled or Stop is called.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.running.Store(true)
	d.logger.Info("reminder dispatcher started",
		"idle_interval", d.config.IdleInterval,
		"guard_interval", d.config.GuardInterval,
	)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			d.running.Store(false)
			d.logger.Info("reminder dispatcher stopped (context cancelled)")
			return ctx.Err()
		case <-d.stopCh:
			d.running.Store(false)
			d.logger.Info("reminder dispatcher stopped (stop signal)")
			return nil
		case <-timer.C:
			d.DispatchDue(ctx)
			timer.Reset(d.interval(ctx))
		}
	}
}

// Stop signals the dispatcher to stop.
func (d *Dispatcher) Stop() {
	if d.running.Load() {
		close(d.stopCh)
	}
}

// IsRunning reports whether Run is active.
func (d *Dispatcher) IsRunning() bool {
	return d.running.Load()
}

func (d *Dispatcher) interval(ctx context.Context) time.Duration {
	now := d.now()
	if now.UnixMilli() < d.guardUntil.Load() || d.store.GuardActive(ctx, now) {
		return d.config.GuardInterval
	}
	return d.config.IdleInterval
}

// DispatchDue claims every due alarm and publishes it. Alarms that fail to
// publish are released back to the store for the next poll. It returns how
// many alarms fired.
func (d *Dispatcher) DispatchDue(ctx context.Context) int {
	now := d.now()
	fired := 0

	for {
		alarms, err := d.store.ClaimDue(ctx, now, d.config.BatchSize)
		if err != nil {
			d.logger.Error("failed to claim due reminders", "error", err)
		}

		var undelivered []domain.Alarm
		for _, alarm := range alarms {
			event := domain.NewReminderFiredEvent(alarm, now)
			if err := eventbus.PublishAll(ctx, d.publisher, event); err != nil {
				d.logger.Error("failed to publish fired reminder",
					"key", alarm.Handle.Key,
					"error", err,
				)
				undelivered = append(undelivered, alarm)
				continue
			}
			fired++
			d.metrics.Counter("reminders.fired", 1, observability.T("tier", alarm.Tier.String()))
			d.metrics.Timing("reminders.fire.lag", now.Sub(alarm.TriggerAt))
		}

		if len(undelivered) > 0 {
			if err := d.store.Release(ctx, undelivered); err != nil {
				d.logger.Error("failed to release undelivered reminders", "count", len(undelivered), "error", err)
			}
			d.metrics.Counter("reminders.released", int64(len(undelivered)))
			break
		}
		if err != nil || len(alarms) < d.config.BatchSize {
			break
		}
	}

	if fired > 0 {
		d.logger.Debug("dispatched reminders", "count", fired)
	}
	return fired
}

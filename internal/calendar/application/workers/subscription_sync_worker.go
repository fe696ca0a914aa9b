package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/robfig/cron/v3"

	"github.com/Owl23007/synapse-android-sub000/internal/calendar/application/commands"
	"github.com/Owl23007/synapse-android-sub000/internal/calendar/domain"
	"github.com/Owl23007/synapse-android-sub000/pkg/observability"
)

// DefaultSyncSchedule runs a sync pass every hour. Each subscription's own
// interval still decides whether it is refreshed in that pass.
const DefaultSyncSchedule = "@every 1h"

// SubscriptionSyncer syncs every due subscription.
type SubscriptionSyncer interface {
	Handle(ctx context.Context, cmd commands.SyncAllSubscriptionsCommand) ([]domain.SyncResult, error)
}

// SubscriptionSyncWorkerConfig configures the sync worker.
type SubscriptionSyncWorkerConfig struct {
	// Schedule is a standard cron expression or descriptor such as "@every 6h".
	Schedule   string
	RunOnStart bool
}

// DefaultSubscriptionSyncWorkerConfig returns the default configuration.
func DefaultSubscriptionSyncWorkerConfig() SubscriptionSyncWorkerConfig {
	return SubscriptionSyncWorkerConfig{
		Schedule:   DefaultSyncSchedule,
		RunOnStart: true,
	}
}

// SubscriptionSyncWorker refreshes subscriptions on a cron schedule.
type SubscriptionSyncWorker struct {
	syncer   SubscriptionSyncer
	config   SubscriptionSyncWorkerConfig
	logger   *slog.Logger
	metrics  observability.Metrics
	running  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewSubscriptionSyncWorker creates a new subscription sync worker.
func NewSubscriptionSyncWorker(
	syncer SubscriptionSyncer,
	config SubscriptionSyncWorkerConfig,
	logger *slog.Logger,
	metrics observability.Metrics,
) *SubscriptionSyncWorker {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if config.Schedule == "" {
		config.Schedule = DefaultSyncSchedule
	}
	return &SubscriptionSyncWorker{
		syncer:  syncer,
		config:  config,
		logger:  logger,
		metrics: metrics,
		stopCh:  make(chan struct{}),
	}
}

// Run starts the cron scheduler and blocks until ctx is cancelled or Stop
// is called. Overlapping passes are skipped.
func (w *SubscriptionSyncWorker) Run(ctx context.Context) error {
	if w.syncer == nil {
		w.logger.Warn("subscription syncer not configured, worker will not start")
		return nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{w.logger})))
	if _, err := c.AddFunc(w.config.Schedule, func() { w.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("invalid subscription sync schedule %q: %w", w.config.Schedule, err)
	}

	w.running.Store(true)
	defer w.running.Store(false)
	w.logger.Info("subscription sync worker started", "schedule", w.config.Schedule)

	if w.config.RunOnStart {
		w.RunOnce(ctx)
	}
	c.Start()
	defer func() { <-c.Stop().Done() }()

	select {
	case <-ctx.Done():
		w.logger.Info("subscription sync worker stopped (context cancelled)")
		return ctx.Err()
	case <-w.stopCh:
		w.logger.Info("subscription sync worker stopped (stop signal)")
		return nil
	}
}

// Stop signals the worker to stop gracefully.
func (w *SubscriptionSyncWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

// IsRunning returns true if the worker is currently running.
func (w *SubscriptionSyncWorker) IsRunning() bool {
	return w.running.Load()
}

// RunOnce performs a single sync pass and returns the number of
// subscriptions that synced successfully.
func (w *SubscriptionSyncWorker) RunOnce(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}
	results, err := w.syncer.Handle(ctx, commands.SyncAllSubscriptionsCommand{})
	if err != nil {
		w.logger.Error("subscription sync pass failed", "error", err)
		return 0
	}

	ok := 0
	for _, r := range results {
		if r.Success {
			ok++
			continue
		}
		w.logger.Warn("subscription sync unsuccessful", "subscription_id", r.SubscriptionID, "reason", r.Error)
	}
	w.metrics.Gauge("subscriptions.sync_pass.attempted", float64(len(results)))
	w.metrics.Gauge("subscriptions.sync_pass.succeeded", float64(ok))
	if len(results) > 0 {
		w.logger.Info("subscription sync pass completed", "attempted", len(results), "succeeded", ok)
	}
	return ok
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}

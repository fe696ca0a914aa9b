package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Owl23007/synapse-android-sub000/internal/calendar/domain"
	sharedApplication "github.com/Owl23007/synapse-android-sub000/internal/shared/application"
	"github.com/Owl23007/synapse-android-sub000/pkg/observability"
)

// ErrSubscriptionIDRequired is returned when a sync is requested without an id.
var ErrSubscriptionIDRequired = errors.New("subscription ID is required")

// SyncSubscriptionHandler refreshes the schedules mirrored from one feed.
type SyncSubscriptionHandler struct {
	subscriptions domain.SubscriptionRepository
	schedules     domain.ScheduleRepository
	fetcher       Fetcher
	codec         Codec
	reminders     ReminderScheduler
	uow           sharedApplication.UnitOfWork
	logger        *slog.Logger
	metrics       observability.Metrics
	now           func() time.Time
}

// NewSyncSubscriptionHandler creates a new sync handler.
func NewSyncSubscriptionHandler(
	subscriptions domain.SubscriptionRepository,
	schedules domain.ScheduleRepository,
	fetcher Fetcher,
	codec Codec,
	reminders ReminderScheduler,
	uow sharedApplication.UnitOfWork,
	logger *slog.Logger,
	metrics observability.Metrics,
) *SyncSubscriptionHandler {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &SyncSubscriptionHandler{
		subscriptions: subscriptions,
		schedules:     schedules,
		fetcher:       fetcher,
		codec:         codec,
		reminders:     remindersOrNoop(reminders),
		uow:           uow,
		logger:        loggerOrDefault(logger),
		metrics:       metrics,
		now:           time.Now,
	}
}

// WithClock overrides the clock used for lastSyncAt.
func (h *SyncSubscriptionHandler) WithClock(now func() time.Time) *SyncSubscriptionHandler {
	h.now = now
	return h
}

// Handle syncs the subscription with the given id. Expected failures
// (missing, disabled, unreachable, unparsable) come back as an unsuccessful
// SyncResult; only a blank id or a storage failure is returned as an error.
func (h *SyncSubscriptionHandler) Handle(ctx context.Context, id string) (domain.SyncResult, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.SyncResult{}, ErrSubscriptionIDRequired
	}
	logger := h.logger.With("subscription_id", id)

	sub, err := h.subscriptions.FindByID(ctx, id)
	if errors.Is(err, domain.ErrSubscriptionNotFound) {
		return domain.FailedSync(id, "subscription not found"), nil
	}
	if err != nil {
		return domain.SyncResult{}, fmt.Errorf("failed to load subscription: %w", err)
	}
	if !sub.IsEnabled() {
		return domain.FailedSync(id, "subscription is disabled"), nil
	}

	result, err := h.sync(ctx, sub, logger)
	status := "success"
	if !result.Success {
		status = "failed"
	}
	h.metrics.Counter("subscriptions.synced", 1, observability.T("status", status))
	return result, err
}

func (h *SyncSubscriptionHandler) sync(ctx context.Context, sub *domain.Subscription, logger *slog.Logger) (domain.SyncResult, error) {
	id := sub.ID()

	text, err := h.fetcher.Fetch(ctx, sub.URL())
	if err != nil {
		logger.Warn("subscription fetch failed", "error", err)
		return domain.FailedSync(id, fmt.Sprintf("fetch failed: %v", err)), nil
	}
	decoded, err := h.codec.Decode(text, id, id)
	if err != nil {
		logger.Warn("subscription feed could not be parsed", "error", err)
		return domain.FailedSync(id, fmt.Sprintf("parse failed: %v", err)), nil
	}
	fresh := make([]*domain.Schedule, 0, len(decoded))
	for _, s := range decoded {
		fresh = append(fresh, withSubscriptionColor(s, sub.Color()))
	}

	previous, err := h.schedules.FindBySubscription(ctx, id)
	if err != nil {
		return domain.SyncResult{}, fmt.Errorf("failed to load synced schedules: %w", err)
	}

	var removed int
	added := make(map[string]struct{}, len(fresh))
	err = sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		n, err := h.schedules.DeleteBySubscription(txCtx, id)
		if err != nil {
			return fmt.Errorf("failed to remove synced schedules: %w", err)
		}
		removed = n
		for _, s := range fresh {
			if err := h.schedules.Save(txCtx, s); err != nil {
				return fmt.Errorf("failed to save schedule %s: %w", s.ID(), err)
			}
			added[s.ID()] = struct{}{}
		}
		sub.MarkSynced(h.now())
		return h.subscriptions.Save(txCtx, sub)
	})
	if err != nil {
		return domain.SyncResult{}, err
	}

	for _, s := range previous {
		h.reminders.CancelReminder(ctx, s)
	}
	for _, s := range fresh {
		h.reminders.ScheduleReminder(ctx, s)
	}

	logger.Info("subscription synced", "added", len(added), "removed", removed)
	return domain.SyncResult{
		SubscriptionID: id,
		Success:        true,
		AddedCount:     len(added),
		RemovedCount:   removed,
	}, nil
}

// withSubscriptionColor paints feed schedules that carry no color of their
// own with the subscription's color.
func withSubscriptionColor(s *domain.Schedule, color string) *domain.Schedule {
	if color == "" || s.ColorOverride() != "" {
		return s
	}
	p := s.Snapshot()
	p.Color = color
	colored, err := domain.RehydrateSchedule(p)
	if err != nil {
		return s
	}
	return colored
}

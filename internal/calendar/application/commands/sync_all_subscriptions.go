package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Owl23007/synapse-android-sub000/internal/calendar/domain"
)

// SyncAllSubscriptionsCommand selects which subscriptions to refresh.
type SyncAllSubscriptionsCommand struct {
	// Force syncs every enabled subscription, due or not.
	Force bool
}

// SyncAllSubscriptionsHandler syncs every due subscription in turn.
type SyncAllSubscriptionsHandler struct {
	subscriptions domain.SubscriptionRepository
	sync          *SyncSubscriptionHandler
	logger        *slog.Logger
	now           func() time.Time
}

// NewSyncAllSubscriptionsHandler creates a handler that delegates each
// subscription to sync.
func NewSyncAllSubscriptionsHandler(subscriptions domain.SubscriptionRepository, sync *SyncSubscriptionHandler, logger *slog.Logger) *SyncAllSubscriptionsHandler {
	return &SyncAllSubscriptionsHandler{
		subscriptions: subscriptions,
		sync:          sync,
		logger:        loggerOrDefault(logger),
		now:           time.Now,
	}
}

// WithClock overrides the clock used to decide which subscriptions are due.
func (h *SyncAllSubscriptionsHandler) WithClock(now func() time.Time) *SyncAllSubscriptionsHandler {
	h.now = now
	return h
}

// Handle returns one result per attempted subscription. A storage error on
// one subscription becomes its failure result and the rest still run.
func (h *SyncAllSubscriptionsHandler) Handle(ctx context.Context, cmd SyncAllSubscriptionsCommand) ([]domain.SyncResult, error) {
	subs, err := h.subscriptions.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	now := h.now()
	results := make([]domain.SyncResult, 0, len(subs))
	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if !sub.IsEnabled() || (!cmd.Force && !sub.IsDue(now)) {
			continue
		}
		result, err := h.sync.Handle(ctx, sub.ID())
		if err != nil {
			h.logger.Error("subscription sync failed", "subscription_id", sub.ID(), "error", err)
			result = domain.FailedSync(sub.ID(), err.Error())
		}
		results = append(results, result)
	}
	return results, nil
}

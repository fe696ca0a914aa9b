package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Owl23007/synapse-android-sub000/internal/calendar/domain"
	sharedApplication "github.com/Owl23007/synapse-android-sub000/internal/shared/application"
)

// ErrSubscriptionUnreachable is returned when the feed URL does not answer.
var ErrSubscriptionUnreachable = errors.New("subscription URL is not reachable")

// AddSubscriptionCommand registers a remote feed.
type AddSubscriptionCommand struct {
	Name         string `validate:"notblank"`
	URL          string `validate:"notblank"`
	Color        string
	SyncInterval time.Duration `validate:"gte=0"`
	// SkipValidation stores the subscription without checking the URL.
	SkipValidation bool
}

// AddSubscriptionHandler handles AddSubscriptionCommand.
type AddSubscriptionHandler struct {
	subscriptions domain.SubscriptionRepository
	fetcher       Fetcher
	validator     *validator.Validate
	logger        *slog.Logger
}

// NewAddSubscriptionHandler creates a new add subscription handler.
func NewAddSubscriptionHandler(subscriptions domain.SubscriptionRepository, fetcher Fetcher, logger *slog.Logger) *AddSubscriptionHandler {
	return &AddSubscriptionHandler{
		subscriptions: subscriptions,
		fetcher:       fetcher,
		validator:     NewValidator(),
		logger:        loggerOrDefault(logger),
	}
}

// Handle returns the stored subscription.
func (h *AddSubscriptionHandler) Handle(ctx context.Context, cmd AddSubscriptionCommand) (*domain.Subscription, error) {
	if err := validate(h.validator, cmd); err != nil {
		return nil, err
	}
	sub, err := domain.NewSubscription(cmd.Name, cmd.URL, cmd.Color, cmd.SyncInterval)
	if err != nil {
		return nil, err
	}
	if !cmd.SkipValidation && h.fetcher != nil && !h.fetcher.Validate(ctx, sub.URL()) {
		return nil, ErrSubscriptionUnreachable
	}
	if err := h.subscriptions.Save(ctx, sub); err != nil {
		return nil, err
	}
	h.logger.Info("subscription added", "subscription_id", sub.ID(), "name", sub.Name())
	return sub, nil
}

// RemoveSubscriptionHandler deletes a subscription together with the
// schedules synced from it.
type RemoveSubscriptionHandler struct {
	subscriptions domain.SubscriptionRepository
	schedules     domain.ScheduleRepository
	reminders     ReminderScheduler
	uow           sharedApplication.UnitOfWork
	logger        *slog.Logger
}

// NewRemoveSubscriptionHandler creates a new remove subscription handler.
func NewRemoveSubscriptionHandler(
	subscriptions domain.SubscriptionRepository,
	schedules domain.ScheduleRepository,
	reminders ReminderScheduler,
	uow sharedApplication.UnitOfWork,
	logger *slog.Logger,
) *RemoveSubscriptionHandler {
	return &RemoveSubscriptionHandler{
		subscriptions: subscriptions,
		schedules:     schedules,
		reminders:     remindersOrNoop(reminders),
		uow:           uow,
		logger:        loggerOrDefault(logger),
	}
}

// Handle returns how many synced schedules were removed.
func (h *RemoveSubscriptionHandler) Handle(ctx context.Context, id string) (int, error) {
	if id == "" {
		return 0, ErrSubscriptionIDRequired
	}
	synced, err := h.schedules.FindBySubscription(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("failed to load synced schedules: %w", err)
	}

	var removed int
	err = sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		n, err := h.schedules.DeleteBySubscription(txCtx, id)
		if err != nil {
			return err
		}
		removed = n
		return h.subscriptions.Delete(txCtx, id)
	})
	if err != nil {
		return 0, err
	}

	for _, s := range synced {
		h.reminders.CancelReminder(ctx, s)
	}
	h.logger.Info("subscription removed", "subscription_id", id, "schedules_removed", removed)
	return removed, nil
}

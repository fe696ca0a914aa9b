package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/Owl23007/synapse-android-sub000/internal/calendar/domain"
	sharedApplication "github.com/Owl23007/synapse-android-sub000/internal/shared/application"
	"github.com/Owl23007/synapse-android-sub000/internal/shared/infrastructure/eventbus"
	"github.com/Owl23007/synapse-android-sub000/pkg/observability"
)

// ErrInvalidImport is returned when an import is missing its document or
// target calendar.
var ErrInvalidImport = errors.New("invalid import")

// ImportSchedulesCommand imports an iCalendar document into a calendar.
type ImportSchedulesCommand struct {
	ICSText    string                  `validate:"notblank"`
	CalendarID string                  `validate:"notblank"`
	Strategy   domain.ConflictStrategy `validate:"strategy"`
}

// ImportSchedulesHandler decodes a document and merges it into the store
// according to the conflict strategy.
type ImportSchedulesHandler struct {
	schedules domain.ScheduleRepository
	codec     Codec
	reminders ReminderScheduler
	publisher eventbus.Publisher
	uow       sharedApplication.UnitOfWork
	validator *validator.Validate
	logger    *slog.Logger
	metrics   observability.Metrics
}

// NewImportSchedulesHandler creates a new import handler.
func NewImportSchedulesHandler(
	schedules domain.ScheduleRepository,
	codec Codec,
	reminders ReminderScheduler,
	publisher eventbus.Publisher,
	uow sharedApplication.UnitOfWork,
	logger *slog.Logger,
	metrics observability.Metrics,
) *ImportSchedulesHandler {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &ImportSchedulesHandler{
		schedules: schedules,
		codec:     codec,
		reminders: remindersOrNoop(reminders),
		publisher: publisher,
		uow:       uow,
		validator: NewValidator(),
		logger:    loggerOrDefault(logger),
		metrics:   metrics,
	}
}

// Handle imports cmd.ICSText. Decode failures of the whole document are
// returned as errors; failures of single schedules are counted in the result.
func (h *ImportSchedulesHandler) Handle(ctx context.Context, cmd ImportSchedulesCommand) (domain.ImportResult, error) {
	if err := validate(h.validator, cmd); err != nil {
		return domain.ImportResult{}, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	strategy, _ := domain.ParseConflictStrategy(string(cmd.Strategy))

	decoded, err := h.codec.Decode(cmd.ICSText, cmd.CalendarID, "")
	if err != nil {
		return domain.ImportResult{}, fmt.Errorf("failed to decode import: %w", err)
	}
	return h.Merge(ctx, decoded, cmd.CalendarID, strategy), nil
}

// Merge applies strategy to schedules that were decoded elsewhere, such as
// events pulled from a CalDAV server.
func (h *ImportSchedulesHandler) Merge(ctx context.Context, decoded []*domain.Schedule, calendarID string, strategy domain.ConflictStrategy) domain.ImportResult {
	if strategy == "" {
		strategy = domain.ConflictSkip
	}
	logger := h.logger.With("calendar_id", calendarID, "strategy", strategy)
	var result domain.ImportResult
	for _, s := range decoded {
		conflicted, replaced, err := h.importOne(ctx, s, strategy)
		if conflicted {
			result.Conflicts = append(result.Conflicts, s)
		}
		if err != nil {
			if !errors.Is(err, errSkipped) {
				logger.Warn("failed to import schedule", "schedule_id", s.ID(), "title", s.Title(), "error", err)
			}
			result.FailedCount++
			continue
		}
		for _, old := range replaced {
			h.reminders.CancelReminder(ctx, old)
		}
		h.reminders.ScheduleReminder(ctx, s)
		result.SuccessCount++
		result.Imported = append(result.Imported, s)
	}

	publishEvents(ctx, h.publisher, logger, result.Imported...)
	h.metrics.Counter("schedules.imported", int64(result.SuccessCount), observability.T("strategy", string(strategy)))
	h.metrics.Counter("schedules.import_failed", int64(result.FailedCount), observability.T("strategy", string(strategy)))
	logger.Info("import completed",
		"decoded", len(decoded),
		"success", result.SuccessCount,
		"failed", result.FailedCount,
		"conflicts", len(result.Conflicts),
	)
	return result
}

var errSkipped = errors.New("skipped by conflict strategy")

// importOne persists s in its own unit of work. It reports whether s
// conflicted with stored schedules and which of them were deleted. A stored
// schedule conflicts when it overlaps s or already owns s's UID.
func (h *ImportSchedulesHandler) importOne(ctx context.Context, s *domain.Schedule, strategy domain.ConflictStrategy) (bool, []*domain.Schedule, error) {
	var (
		conflicted bool
		replaced   []*domain.Schedule
	)
	err := sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		conflicting, sameID, err := h.findConflicts(txCtx, s)
		if err != nil {
			return err
		}
		conflicted = len(conflicting) > 0

		if conflicted {
			switch strategy {
			case domain.ConflictSkip:
				return errSkipped
			case domain.ConflictReplace:
				for _, old := range conflicting {
					if err := h.schedules.Delete(txCtx, old.ID()); err != nil && !errors.Is(err, domain.ErrScheduleNotFound) {
						return fmt.Errorf("failed to delete conflicting schedule %s: %w", old.ID(), err)
					}
				}
				replaced = conflicting
			case domain.ConflictKeepBoth:
				if sameID {
					s.ReassignID()
				}
			}
		}

		return h.schedules.Save(txCtx, s)
	})
	if err != nil {
		return conflicted, nil, err
	}
	return conflicted, replaced, nil
}

// findConflicts returns the stored schedules overlapping s plus the stored
// schedule with s's ID, if any. sameID reports whether that ID is taken.
func (h *ImportSchedulesHandler) findConflicts(ctx context.Context, s *domain.Schedule) ([]*domain.Schedule, bool, error) {
	conflicting, err := h.schedules.FindOverlapping(ctx, s.StartTime(), s.EndTime())
	if err != nil {
		return nil, false, fmt.Errorf("failed to find overlapping schedules: %w", err)
	}

	existing, err := h.schedules.FindByID(ctx, s.ID())
	switch {
	case errors.Is(err, domain.ErrScheduleNotFound):
		return conflicting, false, nil
	case err != nil:
		return nil, false, fmt.Errorf("failed to check schedule id: %w", err)
	}

	for _, other := range conflicting {
		if other.ID() == existing.ID() {
			return conflicting, true, nil
		}
	}
	return append(conflicting, existing), true, nil
}

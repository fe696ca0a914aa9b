package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Owl23007/synapse-android-sub000/internal/calendar/domain"
)

// ErrInvalidRange is returned when an export range does not end after it starts.
var ErrInvalidRange = errors.New("export range end must be after start")

// ExportSchedulesHandler renders stored schedules as an iCalendar document.
type ExportSchedulesHandler struct {
	schedules domain.ScheduleRepository
	codec     Codec
	logger    *slog.Logger
}

// NewExportSchedulesHandler creates a new export handler.
func NewExportSchedulesHandler(schedules domain.ScheduleRepository, codec Codec, logger *slog.Logger) *ExportSchedulesHandler {
	return &ExportSchedulesHandler{
		schedules: schedules,
		codec:     codec,
		logger:    loggerOrDefault(logger),
	}
}

// Handle exports the schedules with the given IDs. Unknown IDs are skipped;
// no IDs at all yields the empty calendar.
func (h *ExportSchedulesHandler) Handle(ctx context.Context, ids []string) (string, error) {
	schedules := make([]*domain.Schedule, 0, len(ids))
	for _, id := range ids {
		s, err := h.schedules.FindByID(ctx, id)
		if errors.Is(err, domain.ErrScheduleNotFound) {
			h.logger.Debug("export skipped unknown schedule", "schedule_id", id)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to load schedule %s: %w", id, err)
		}
		schedules = append(schedules, s)
	}
	return h.codec.Encode(schedules)
}

// HandleRange exports every schedule overlapping [start, end).
func (h *ExportSchedulesHandler) HandleRange(ctx context.Context, start, end time.Time) (string, error) {
	if !end.After(start) {
		return "", ErrInvalidRange
	}
	schedules, err := h.schedules.FindOverlapping(ctx, start, end)
	if err != nil {
		return "", fmt.Errorf("failed to load schedules: %w", err)
	}
	return h.codec.Encode(schedules)
}

package queries

import (
	"context"
	"time"

	"github.com/Owl23007/synapse-android-sub000/internal/calendar/domain"
)

// SubscriptionDTO is the read model for subscriptions.
type SubscriptionDTO struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	URL          string     `json:"url"`
	Color        string     `json:"color,omitempty"`
	SyncInterval string     `json:"sync_interval"`
	IsEnabled    bool       `json:"is_enabled"`
	LastSyncAt   *time.Time `json:"last_sync_at,omitempty"`
	Due          bool       `json:"due"`
}

// ListSubscriptionsHandler lists every subscription.
type ListSubscriptionsHandler struct {
	subscriptions domain.SubscriptionRepository
	now           func() time.Time
}

// NewListSubscriptionsHandler creates a new list subscriptions handler.
func NewListSubscriptionsHandler(subscriptions domain.SubscriptionRepository) *ListSubscriptionsHandler {
	return &ListSubscriptionsHandler{subscriptions: subscriptions, now: time.Now}
}

// Handle returns the subscriptions ordered by name.
func (h *ListSubscriptionsHandler) Handle(ctx context.Context) ([]SubscriptionDTO, error) {
	subs, err := h.subscriptions.List(ctx)
	if err != nil {
		return nil, err
	}
	now := h.now()
	dtos := make([]SubscriptionDTO, 0, len(subs))
	for _, s := range subs {
		dtos = append(dtos, SubscriptionDTO{
			ID:           s.ID(),
			Name:         s.Name(),
			URL:          s.URL(),
			Color:        s.Color(),
			SyncInterval: s.SyncInterval().String(),
			IsEnabled:    s.IsEnabled(),
			LastSyncAt:   s.LastSyncAt(),
			Due:          s.IsDue(now),
		})
	}
	return dtos, nil
}

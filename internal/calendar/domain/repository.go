package domain

import (
	"context"
	"time"
)

// ScheduleFilter narrows ListSchedules. Zero values match everything.
type ScheduleFilter struct {
	// From and To select schedules overlapping [From, To).
	From       time.Time
	To         time.Time
	CalendarID string
	// Query matches title, description or location as a substring.
	Query string
	Limit int
}

// ScheduleRepository persists schedules.
type ScheduleRepository interface {
	// Save inserts or replaces the schedule with the same ID.
	Save(ctx context.Context, s *Schedule) error
	// FindByID returns ErrScheduleNotFound when absent.
	FindByID(ctx context.Context, id string) (*Schedule, error)
	// FindOverlapping returns schedules with start < end and end > start.
	FindOverlapping(ctx context.Context, start, end time.Time) ([]*Schedule, error)
	FindBySubscription(ctx context.Context, subscriptionID string) ([]*Schedule, error)
	List(ctx context.Context, filter ScheduleFilter) ([]*Schedule, error)
	// Delete returns ErrScheduleNotFound when nothing was deleted.
	Delete(ctx context.Context, id string) error
	// DeleteBySubscription removes every schedule synced from the
	// subscription and returns how many were removed.
	DeleteBySubscription(ctx context.Context, subscriptionID string) (int, error)
}

// SubscriptionRepository persists subscriptions.
type SubscriptionRepository interface {
	// Save inserts or replaces the subscription. A URL already owned by
	// another subscription yields ErrDuplicateSubscription.
	Save(ctx context.Context, s *Subscription) error
	// FindByID returns ErrSubscriptionNotFound when absent.
	FindByID(ctx context.Context, id string) (*Subscription, error)
	List(ctx context.Context) ([]*Subscription, error)
	Delete(ctx context.Context, id string) error
}

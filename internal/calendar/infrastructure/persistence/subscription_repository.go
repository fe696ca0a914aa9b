package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Owl23007/synapse-android-sub000/internal/calendar/domain"
	"github.com/Owl23007/synapse-android-sub000/internal/shared/infrastructure/database"
)

const subscriptionColumns = `id, name, url, color, sync_interval_ms, is_enabled, last_sync_ms, created_ms`

// SubscriptionRepository implements domain.SubscriptionRepository.
type SubscriptionRepository struct {
	conn database.Connection
}

// NewSubscriptionRepository creates a subscription repository.
func NewSubscriptionRepository(conn database.Connection) *SubscriptionRepository {
	return &SubscriptionRepository{conn: conn}
}

func (r *SubscriptionRepository) exec(ctx context.Context) database.Executor {
	return database.ExecutorFromContext(ctx, r.conn)
}

// Save inserts or updates by id. Reusing another subscription's URL
// returns domain.ErrDuplicateSubscription.
func (r *SubscriptionRepository) Save(ctx context.Context, s *domain.Subscription) error {
	query := `
		INSERT INTO subscriptions (` + subscriptionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			url = excluded.url,
			color = excluded.color,
			sync_interval_ms = excluded.sync_interval_ms,
			is_enabled = excluded.is_enabled,
			last_sync_ms = excluded.last_sync_ms
	`

	var lastSync sql.NullInt64
	if t := s.LastSyncAt(); t != nil {
		lastSync = sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
	}

	_, err := r.exec(ctx).Exec(ctx, database.Rebind(r.conn.Driver(), query),
		s.ID(),
		s.Name(),
		s.URL(),
		s.Color(),
		s.SyncInterval().Milliseconds(),
		s.IsEnabled(),
		lastSync,
		s.CreatedAt().UnixMilli(),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateSubscription, s.URL())
		}
		return fmt.Errorf("failed to save subscription %s: %w", s.ID(), err)
	}
	return nil
}

// FindByID returns domain.ErrSubscriptionNotFound when no row matches.
func (r *SubscriptionRepository) FindByID(ctx context.Context, id string) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = ?`

	s, err := scanSubscription(r.exec(ctx).QueryRow(ctx, database.Rebind(r.conn.Driver(), query), id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, domain.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return s, nil
}

// List returns every subscription ordered by name.
func (r *SubscriptionRepository) List(ctx context.Context) ([]*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions ORDER BY name, id`

	rows, err := r.exec(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*domain.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// Delete removes a subscription. Its schedules are left for the caller.
func (r *SubscriptionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.exec(ctx).Exec(ctx, database.Rebind(r.conn.Driver(), `DELETE FROM subscriptions WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete subscription %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrSubscriptionNotFound
	}
	return nil
}

func scanSubscription(row database.Row) (*domain.Subscription, error) {
	var (
		id, name, url, color string
		intervalMs           int64
		enabled              bool
		lastSync             sql.NullInt64
		createdMs            int64
	)
	if err := row.Scan(&id, &name, &url, &color, &intervalMs, &enabled, &lastSync, &createdMs); err != nil {
		return nil, err
	}

	var lastSyncAt *time.Time
	if lastSync.Valid {
		t := time.UnixMilli(lastSync.Int64).UTC()
		lastSyncAt = &t
	}

	return domain.RehydrateSubscription(
		id, name, url, color,
		time.Duration(intervalMs)*time.Millisecond,
		enabled,
		lastSyncAt,
		time.UnixMilli(createdMs).UTC(),
	), nil
}

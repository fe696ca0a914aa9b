// Package persistence stores calendar aggregates through database.Connection.
// Queries are written once with ? placeholders and rebound per driver.
package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Owl23007/synapse-android-sub000/internal/calendar/domain"
	"github.com/Owl23007/synapse-android-sub000/internal/shared/infrastructure/database"
)

const scheduleColumns = `id, title, description, location, start_ms, end_ms, timezone_id,
	is_all_day, type, calendar_id, color, reminder_minutes, is_alarm, repeat_rule,
	is_from_subscription, subscription_id, created_ms, updated_ms`

// ScheduleRepository implements domain.ScheduleRepository.
type ScheduleRepository struct {
	conn database.Connection
}

// NewScheduleRepository creates a schedule repository.
func NewScheduleRepository(conn database.Connection) *ScheduleRepository {
	return &ScheduleRepository{conn: conn}
}

func (r *ScheduleRepository) exec(ctx context.Context) database.Executor {
	return database.ExecutorFromContext(ctx, r.conn)
}

func (r *ScheduleRepository) rebind(query string) string {
	return database.Rebind(r.conn.Driver(), query)
}

// Save inserts the schedule or replaces the row with the same id.
func (r *ScheduleRepository) Save(ctx context.Context, s *domain.Schedule) error {
	query := `
		INSERT INTO schedules (` + scheduleColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			location = excluded.location,
			start_ms = excluded.start_ms,
			end_ms = excluded.end_ms,
			timezone_id = excluded.timezone_id,
			is_all_day = excluded.is_all_day,
			type = excluded.type,
			calendar_id = excluded.calendar_id,
			color = excluded.color,
			reminder_minutes = excluded.reminder_minutes,
			is_alarm = excluded.is_alarm,
			repeat_rule = excluded.repeat_rule,
			is_from_subscription = excluded.is_from_subscription,
			subscription_id = excluded.subscription_id,
			updated_ms = excluded.updated_ms
	`

	reminders, err := json.Marshal(nonNilInts(s.ReminderMinutes()))
	if err != nil {
		return fmt.Errorf("failed to encode reminder minutes: %w", err)
	}

	var subscriptionID *string
	if id := s.SubscriptionID(); id != "" {
		subscriptionID = &id
	}

	_, err = r.exec(ctx).Exec(ctx, r.rebind(query),
		s.ID(),
		s.Title(),
		s.Description(),
		s.Location(),
		s.StartTime().UnixMilli(),
		s.EndTime().UnixMilli(),
		s.TimezoneID(),
		s.IsAllDay(),
		s.Type().String(),
		s.CalendarID(),
		s.ColorOverride(),
		string(reminders),
		s.IsAlarm(),
		s.RepeatRule(),
		s.IsFromSubscription(),
		subscriptionID,
		s.CreatedAt().UnixMilli(),
		s.UpdatedAt().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to save schedule %s: %w", s.ID(), err)
	}
	return nil
}

// FindByID returns domain.ErrScheduleNotFound when no row matches.
func (r *ScheduleRepository) FindByID(ctx context.Context, id string) (*domain.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE id = ?`

	s, err := scanSchedule(r.exec(ctx).QueryRow(ctx, r.rebind(query), id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, domain.ErrScheduleNotFound
		}
		return nil, err
	}
	return s, nil
}

// FindOverlapping returns schedules with start_ms < end and end_ms > start.
func (r *ScheduleRepository) FindOverlapping(ctx context.Context, start, end time.Time) ([]*domain.Schedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE start_ms < ? AND end_ms > ?
		ORDER BY start_ms, id
	`
	return r.query(ctx, query, end.UnixMilli(), start.UnixMilli())
}

// FindBySubscription returns every schedule synced from subscriptionID.
func (r *ScheduleRepository) FindBySubscription(ctx context.Context, subscriptionID string) ([]*domain.Schedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE subscription_id = ?
		ORDER BY start_ms, id
	`
	return r.query(ctx, query, subscriptionID)
}

// List returns schedules matching filter ordered by start time.
func (r *ScheduleRepository) List(ctx context.Context, filter domain.ScheduleFilter) ([]*domain.Schedule, error) {
	var (
		where []string
		args  []any
	)
	if !filter.To.IsZero() {
		where = append(where, "start_ms < ?")
		args = append(args, filter.To.UnixMilli())
	}
	if !filter.From.IsZero() {
		where = append(where, "end_ms > ?")
		args = append(args, filter.From.UnixMilli())
	}
	if filter.CalendarID != "" {
		where = append(where, "calendar_id = ?")
		args = append(args, filter.CalendarID)
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
		where = append(where, `(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\' OR LOWER(location) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern)
	}

	query := `SELECT ` + scheduleColumns + ` FROM schedules`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY start_ms, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	return r.query(ctx, query, args...)
}

// Delete returns domain.ErrScheduleNotFound when no row was removed.
func (r *ScheduleRepository) Delete(ctx context.Context, id string) error {
	result, err := r.exec(ctx).Exec(ctx, r.rebind(`DELETE FROM schedules WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrScheduleNotFound
	}
	return nil
}

// DeleteBySubscription removes the schedules synced from subscriptionID.
func (r *ScheduleRepository) DeleteBySubscription(ctx context.Context, subscriptionID string) (int, error) {
	result, err := r.exec(ctx).Exec(ctx, r.rebind(`DELETE FROM schedules WHERE subscription_id = ?`), subscriptionID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete schedules of subscription %s: %w", subscriptionID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *ScheduleRepository) query(ctx context.Context, query string, args ...any) ([]*domain.Schedule, error) {
	rows, err := r.exec(ctx).Query(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules: %w", err)
	}
	defer rows.Close()

	var schedules []*domain.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, s)
	}
	return schedules, rows.Err()
}

func scanSchedule(row database.Row) (*domain.Schedule, error) {
	var (
		p                  domain.ScheduleParams
		scheduleType       string
		reminders          string
		subscriptionID     *string
		startMs, endMs     int64
		createdMs, updated int64
		fromSubscription   bool
	)

	err := row.Scan(
		&p.ID,
		&p.Title,
		&p.Description,
		&p.Location,
		&startMs,
		&endMs,
		&p.TimezoneID,
		&p.IsAllDay,
		&scheduleType,
		&p.CalendarID,
		&p.Color,
		&reminders,
		&p.IsAlarm,
		&p.RepeatRule,
		&fromSubscription,
		&subscriptionID,
		&createdMs,
		&updated,
	)
	if err != nil {
		return nil, err
	}

	if reminders != "" {
		if err := json.Unmarshal([]byte(reminders), &p.ReminderMinutes); err != nil {
			return nil, fmt.Errorf("failed to decode reminder minutes of %s: %w", p.ID, err)
		}
	}
	if subscriptionID != nil {
		p.SubscriptionID = *subscriptionID
	}
	p.Type = domain.ScheduleType(scheduleType)
	p.Start = time.UnixMilli(startMs).UTC()
	p.End = time.UnixMilli(endMs).UTC()
	p.CreatedAt = time.UnixMilli(createdMs).UTC()
	p.UpdatedAt = time.UnixMilli(updated).UTC()

	return domain.RehydrateSchedule(p)
}

func nonNilInts(in []int) []int {
	if in == nil {
		return []int{}
	}
	return in
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

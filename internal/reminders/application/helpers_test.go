package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	calendarDomain "github.com/Owl23007/synapse-android-sub000/internal/calendar/domain"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

func newSchedule(t *testing.T, start time.Time, mutate ...func(*calendarDomain.ScheduleParams)) *calendarDomain.Schedule {
	t.Helper()
	p := calendarDomain.ScheduleParams{
		ID:         "s1",
		Title:      "Dentist",
		Location:   "Main St",
		Start:      start,
		End:        start.Add(time.Hour),
		CalendarID: "local",
	}
	for _, m := range mutate {
		m(&p)
	}
	s, err := calendarDomain.NewSchedule(p)
	require.NoError(t, err)
	return s
}

func reminders(minutes ...int) func(*calendarDomain.ScheduleParams) {
	return func(p *calendarDomain.ScheduleParams) { p.ReminderMinutes = minutes }
}

// mockScheduleRepo is a mock implementation of calendarDomain.ScheduleRepository.
type mockScheduleRepo struct {
	mock.Mock
}

func (m *mockScheduleRepo) Save(ctx context.Context, s *calendarDomain.Schedule) error {
	return m.Called(ctx, s).Error(0)
}

func (m *mockScheduleRepo) FindByID(ctx context.Context, id string) (*calendarDomain.Schedule, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*calendarDomain.Schedule), args.Error(1)
}

func (m *mockScheduleRepo) FindOverlapping(ctx context.Context, start, end time.Time) ([]*calendarDomain.Schedule, error) {
	args := m.Called(ctx, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*calendarDomain.Schedule), args.Error(1)
}

func (m *mockScheduleRepo) FindBySubscription(ctx context.Context, subscriptionID string) ([]*calendarDomain.Schedule, error) {
	args := m.Called(ctx, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*calendarDomain.Schedule), args.Error(1)
}

func (m *mockScheduleRepo) List(ctx context.Context, filter calendarDomain.ScheduleFilter) ([]*calendarDomain.Schedule, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*calendarDomain.Schedule), args.Error(1)
}

func (m *mockScheduleRepo) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockScheduleRepo) DeleteBySubscription(ctx context.Context, subscriptionID string) (int, error) {
	args := m.Called(ctx, subscriptionID)
	return args.Int(0), args.Error(1)
}

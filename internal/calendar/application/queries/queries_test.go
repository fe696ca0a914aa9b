package queries

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Owl23007/synapse-android-sub000/internal/calendar/domain"
)

type mockScheduleRepo struct {
	mock.Mock
	domain.ScheduleRepository
}

func (m *mockScheduleRepo) List(ctx context.Context, filter domain.ScheduleFilter) ([]*domain.Schedule, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Schedule), args.Error(1)
}

type mockSubscriptionRepo struct {
	mock.Mock
	domain.SubscriptionRepository
}

func (m *mockSubscriptionRepo) List(ctx context.Context) ([]*domain.Subscription, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Subscription), args.Error(1)
}

var start = time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)

func TestListSchedules(t *testing.T) {
	s, err := domain.NewSchedule(domain.ScheduleParams{
		ID:              "s1",
		Title:           "Review",
		Location:        "Room 4",
		Start:           start,
		End:             start.Add(time.Hour),
		Type:            domain.ScheduleTypeWork,
		CalendarID:      "work",
		ReminderMinutes: []int{15},
	})
	require.NoError(t, err)

	repo := new(mockScheduleRepo)
	repo.On("List", mock.Anything, domain.ScheduleFilter{
		From:       start,
		To:         start.Add(24 * time.Hour),
		CalendarID: "work",
		Query:      "rev",
		Limit:      DefaultListLimit,
	}).Return([]*domain.Schedule{s}, nil)

	dtos, err := NewListSchedulesHandler(repo).Handle(context.Background(), ListSchedulesQuery{
		From:       start,
		To:         start.Add(24 * time.Hour),
		CalendarID: "work",
		Search:     "rev",
	})
	require.NoError(t, err)
	require.Len(t, dtos, 1)
	assert.Equal(t, "s1", dtos[0].ID)
	assert.Equal(t, "WORK", dtos[0].Type)
	assert.Equal(t, domain.ScheduleTypeWork.DisplayName(), dtos[0].TypeName)
	assert.Equal(t, domain.ScheduleTypeWork.DefaultColor(), dtos[0].Color)
	assert.Equal(t, []int{15}, dtos[0].ReminderMinutes)
	repo.AssertExpectations(t)
}

func TestListSchedules_Errors(t *testing.T) {
	repo := new(mockScheduleRepo)
	h := NewListSchedulesHandler(repo)

	_, err := h.Handle(context.Background(), ListSchedulesQuery{From: start, To: start})
	assert.ErrorIs(t, err, ErrInvalidListRange)

	boom := errors.New("boom")
	repo.On("List", mock.Anything, mock.Anything).Return(nil, boom)
	_, err = h.Handle(context.Background(), ListSchedulesQuery{Limit: 5})
	assert.ErrorIs(t, err, boom)
}

func TestListSubscriptions(t *testing.T) {
	synced, err := domain.NewSubscription("Holidays", "https://example.com/h.ics", "", time.Hour)
	require.NoError(t, err)
	synced.MarkSynced(start)
	fresh, err := domain.NewSubscription("Sports", "webcal://example.com/s.ics", "#00FF00", 0)
	require.NoError(t, err)

	repo := new(mockSubscriptionRepo)
	repo.On("List", mock.Anything).Return([]*domain.Subscription{synced, fresh}, nil)
	h := NewListSubscriptionsHandler(repo)
	h.now = func() time.Time { return start.Add(30 * time.Minute) }

	dtos, err := h.Handle(context.Background())
	require.NoError(t, err)
	require.Len(t, dtos, 2)
	assert.False(t, dtos[0].Due)
	require.NotNil(t, dtos[0].LastSyncAt)
	assert.Equal(t, "1h0m0s", dtos[0].SyncInterval)
	assert.True(t, dtos[1].Due)
	assert.Nil(t, dtos[1].LastSyncAt)
	assert.Equal(t, "24h0m0s", dtos[1].SyncInterval)
}

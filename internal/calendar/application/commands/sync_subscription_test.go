package commands

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Owl23007/synapse-android-sub000/internal/calendar/domain"
)

const feedURL = "https://example.com/holidays.ics"

func newSubscription(t *testing.T, name string, url ...string) *domain.Subscription {
	t.Helper()
	u := feedURL
	if len(url) > 0 {
		u = url[0]
	}
	sub, err := domain.NewSubscription(name, u, "#FF0000", time.Hour)
	require.NoError(t, err)
	return sub
}

func synced(t *testing.T, id, subID string, start time.Time) *domain.Schedule {
	return newSchedule(t, id, start, time.Hour, func(p *domain.ScheduleParams) {
		p.CalendarID = subID
		p.SubscriptionID = subID
	})
}

func TestSyncSubscription_ReplacesSyncedSchedules(t *testing.T) {
	sub := newSubscription(t, "Holidays")
	local := newSchedule(t, "local", base, time.Hour)
	stale1 := synced(t, "stale-1", sub.ID(), base)
	stale2 := synced(t, "stale-2", sub.ID(), base.Add(24*time.Hour))
	schedules := newMemSchedules(local, stale1, stale2)
	subs := newMemSubscriptions(sub)

	fresh := synced(t, "fresh", sub.ID(), base.Add(48*time.Hour))
	fetcher := new(mockFetcher)
	fetcher.On("Fetch", mock.Anything, feedURL).Return("ICS", nil)
	codec := new(mockCodec)
	codec.On("Decode", "ICS", sub.ID(), sub.ID()).Return([]*domain.Schedule{fresh}, nil)
	rem := &recordingReminders{}
	now := base.Add(72 * time.Hour)

	h := NewSyncSubscriptionHandler(subs, schedules, fetcher, codec, rem, nil, nil, nil).
		WithClock(func() time.Time { return now })
	result, err := h.Handle(context.Background(), sub.ID())
	require.NoError(t, err)

	assert.Equal(t, domain.SyncResult{SubscriptionID: sub.ID(), Success: true, AddedCount: 1, RemovedCount: 2}, result)
	assert.ElementsMatch(t, []string{"fresh", "local"}, schedules.ids())
	require.NotNil(t, sub.LastSyncAt())
	assert.Equal(t, now, *sub.LastSyncAt())
	assert.Equal(t, []string{"cancel:stale-1", "cancel:stale-2", "arm:fresh"}, rem.calls)

	stored, err := schedules.FindByID(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, "#FF0000", stored.Color())
	fetcher.AssertExpectations(t)
	codec.AssertExpectations(t)
}

func TestSyncSubscription_UnsuccessfulOutcomes(t *testing.T) {
	disabled := newSubscription(t, "Disabled")
	disabled.Disable()

	tests := []struct {
		name   string
		id     string
		reason string
	}{
		{"missing", "nope", "subscription not found"},
		{"disabled", disabled.ID(), "subscription is disabled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := new(mockFetcher)
			h := NewSyncSubscriptionHandler(newMemSubscriptions(disabled), newMemSchedules(), fetcher, new(mockCodec), nil, nil, nil, nil)

			result, err := h.Handle(context.Background(), tt.id)
			require.NoError(t, err)
			assert.Equal(t, domain.FailedSync(tt.id, tt.reason), result)
			fetcher.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
		})
	}
}

func TestSyncSubscription_FetchOrParseFailureKeepsLastSync(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *mockFetcher, c *mockCodec)
	}{
		{"fetch", func(f *mockFetcher, _ *mockCodec) {
			f.On("Fetch", mock.Anything, feedURL).Return("", errBoom)
		}},
		{"parse", func(f *mockFetcher, c *mockCodec) {
			f.On("Fetch", mock.Anything, feedURL).Return("junk", nil)
			c.On("Decode", "junk", mock.Anything, mock.Anything).Return(nil, errBoom)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := newSubscription(t, "Feed")
			old := synced(t, "old", sub.ID(), base)
			schedules := newMemSchedules(old)
			fetcher, codec := new(mockFetcher), new(mockCodec)
			tt.setup(fetcher, codec)

			h := NewSyncSubscriptionHandler(newMemSubscriptions(sub), schedules, fetcher, codec, nil, nil, nil, nil)
			result, err := h.Handle(context.Background(), sub.ID())
			require.NoError(t, err)

			assert.False(t, result.Success)
			assert.Contains(t, result.Error, "boom")
			assert.Zero(t, result.AddedCount)
			assert.Nil(t, sub.LastSyncAt())
			assert.Equal(t, []string{"old"}, schedules.ids())
		})
	}
}

func TestSyncSubscription_BlankIDAndStorageError(t *testing.T) {
	subs := newMemSubscriptions()
	h := NewSyncSubscriptionHandler(subs, newMemSchedules(), new(mockFetcher), new(mockCodec), nil, nil, nil, nil)

	_, err := h.Handle(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrSubscriptionIDRequired)

	subs.findErr = errBoom
	_, err = h.Handle(context.Background(), "x")
	assert.ErrorIs(t, err, errBoom)
}

func TestSyncAllSubscriptions_OnlyDue(t *testing.T) {
	due := newSubscription(t, "A due", "https://example.com/a.ics")
	fresh := newSubscription(t, "B fresh", "https://example.com/b.ics")
	fresh.MarkSynced(base)
	off := newSubscription(t, "C off", "https://example.com/c.ics")
	off.Disable()
	subs := newMemSubscriptions(due, fresh, off)

	fetcher := new(mockFetcher)
	fetcher.On("Fetch", mock.Anything, mock.Anything).Return("ICS", nil)
	codec := new(mockCodec)
	codec.On("Decode", "ICS", mock.Anything, mock.Anything).Return([]*domain.Schedule{}, nil)
	clock := func() time.Time { return base.Add(10 * time.Minute) }

	single := NewSyncSubscriptionHandler(subs, newMemSchedules(), fetcher, codec, nil, nil, nil, nil).WithClock(clock)
	h := NewSyncAllSubscriptionsHandler(subs, single, nil).WithClock(clock)

	results, err := h.Handle(context.Background(), SyncAllSubscriptionsCommand{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, due.ID(), results[0].SubscriptionID)
	assert.True(t, results[0].Success)

	results, err = h.Handle(context.Background(), SyncAllSubscriptionsCommand{Force: true})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

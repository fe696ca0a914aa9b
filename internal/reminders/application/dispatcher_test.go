package application

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	calendarDomain "github.com/Owl23007/synapse-android-sub000/internal/calendar/domain"
	"github.com/Owl23007/synapse-android-sub000/internal/reminders/domain"
	"github.com/Owl23007/synapse-android-sub000/internal/reminders/infrastructure/memory"
	"github.com/Owl23007/synapse-android-sub000/internal/shared/infrastructure/eventbus"
	"github.com/Owl23007/synapse-android-sub000/pkg/observability"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []eventbus.ConsumedEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	if p.err != nil {
		return p.err
	}
	var e eventbus.ConsumedEvent
	if err := json.Unmarshal(payload, &e); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Events() []eventbus.ConsumedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]eventbus.ConsumedEvent(nil), p.events...)
}

func newTestDispatcher(store domain.DueStore, pub eventbus.Publisher, metrics observability.Metrics) *Dispatcher {
	cfg := DefaultDispatcherConfig()
	cfg.BatchSize = 2
	d := NewDispatcher(store, pub, cfg, nil, metrics)
	d.now = clock
	return d
}

func TestDispatcher_DispatchDue(t *testing.T) {
	ctx := context.Background()
	store := memory.NewAlarmService()
	for i, offset := range []time.Duration{-3 * time.Minute, -2 * time.Minute, -time.Minute, time.Minute} {
		require.NoError(t, store.RegisterClockAlarm(ctx, domain.NewAlarm("s1", "Dentist", "", now.Add(offset), i, domain.TierClockAlarm)))
	}
	pub := &recordingPublisher{}
	metrics := observability.NewInMemoryMetrics()

	fired := newTestDispatcher(store, pub, metrics).DispatchDue(ctx)

	assert.Equal(t, 3, fired)
	events := pub.Events()
	require.Len(t, events, 3)
	assert.Equal(t, domain.RoutingKeyReminderFired, events[0].RoutingKey)
	assert.Equal(t, "s1", events[0].AggregateID)

	var payload firedPayload
	require.NoError(t, events[0].DecodePayload(&payload))
	assert.Equal(t, domain.NewHandle("s1", 0).Key, payload.Key)
	assert.Equal(t, domain.TierClockAlarm, payload.Tier)

	assert.Len(t, store.Armed(), 1)
	assert.Equal(t, int64(3), metrics.GetCounter("reminders.fired", observability.T("tier", "clock_alarm")))
}

func TestDispatcher_PublishFailureKeepsAlarmsArmed(t *testing.T) {
	ctx := context.Background()
	store := memory.NewAlarmService()
	for i := 0; i < 3; i++ {
		require.NoError(t, store.RegisterClockAlarm(ctx, domain.NewAlarm("s1", "A", "", now.Add(-time.Minute), i, domain.TierClockAlarm)))
	}
	pub := &recordingPublisher{err: errors.New("broker down")}
	metrics := observability.NewInMemoryMetrics()
	d := newTestDispatcher(store, pub, metrics)

	assert.Equal(t, 0, d.DispatchDue(ctx))
	assert.Len(t, store.Armed(), 3)
	assert.Equal(t, domain.StateArmed, store.State(domain.NewHandle("s1", 0)))
	assert.Equal(t, int64(2), metrics.GetCounter("reminders.released"))

	pub.err = nil
	assert.Equal(t, 3, d.DispatchDue(ctx))
	assert.Empty(t, store.Armed())
	assert.Len(t, pub.Events(), 3)
}

func TestDispatcher_GuardShortensInterval(t *testing.T) {
	ctx := context.Background()
	store := memory.NewAlarmService()
	d := newTestDispatcher(store, &recordingPublisher{}, nil)

	assert.Equal(t, d.config.IdleInterval, d.interval(ctx))
	require.NoError(t, d.StartGuard(ctx))
	assert.Equal(t, d.config.GuardInterval, d.interval(ctx))

	d.now = func() time.Time { return now.Add(d.config.GuardWindow + time.Second) }
	assert.Equal(t, d.config.IdleInterval, d.interval(ctx))
}

func TestDispatcher_RemoteGuard(t *testing.T) {
	ctx := context.Background()
	store := memory.NewAlarmService()
	require.NoError(t, store.StartGuard(ctx))

	d := NewDispatcher(store, &recordingPublisher{}, DefaultDispatcherConfig(), nil, nil)
	assert.Equal(t, d.config.GuardInterval, d.interval(ctx))
}

func TestDispatcher_RunAndStop(t *testing.T) {
	ctx := context.Background()
	store := memory.NewAlarmService()
	require.NoError(t, store.RegisterClockAlarm(ctx, domain.NewAlarm("s1", "A", "", time.Now().Add(-time.Minute), 5, domain.TierClockAlarm)))
	pub := &recordingPublisher{}
	d := NewDispatcher(store, pub, DefaultDispatcherConfig(), nil, nil)

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool { return len(pub.Events()) == 1 }, time.Second, 10*time.Millisecond)
	require.Eventually(t, d.IsRunning, time.Second, 10*time.Millisecond)
	d.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop")
	}
	assert.False(t, d.IsRunning())
}

type recordingNotifier struct {
	mock.Mock
}

func (n *recordingNotifier) Notify(ctx context.Context, notification Notification) error {
	return n.Called(ctx, notification).Error(0)
}

func firedEvent(t *testing.T, alarm domain.Alarm) *eventbus.ConsumedEvent {
	t.Helper()
	body, err := eventbus.Marshal(domain.NewReminderFiredEvent(alarm, now))
	require.NoError(t, err)
	var e eventbus.ConsumedEvent
	require.NoError(t, json.Unmarshal(body, &e))
	return &e
}

func TestFiredConsumer_Notifies(t *testing.T) {
	ctx := context.Background()
	s := newSchedule(t, now.Add(10*time.Minute), reminders(10))
	repo := new(mockScheduleRepo)
	repo.On("FindByID", ctx, "s1").Return(s, nil)
	notifier := new(recordingNotifier)
	notifier.On("Notify", ctx, Notification{
		ScheduleID: "s1",
		Title:      "Dentist",
		Message:    "Main St",
		Tier:       domain.TierClockAlarm,
		FullScreen: true,
	}).Return(nil)

	consumer := NewFiredConsumer(repo, notifier, nil, nil)
	assert.Equal(t, []string{domain.RoutingKeyReminderFired}, consumer.EventTypes())

	alarm := domain.NewAlarm("s1", "Dentist", "Main St", now, 10, domain.TierClockAlarm)
	require.NoError(t, consumer.Handle(ctx, firedEvent(t, alarm)))
	notifier.AssertExpectations(t)
}

func TestFiredConsumer_DropsStale(t *testing.T) {
	ctx := context.Background()
	moved := newSchedule(t, now.Add(time.Hour), reminders(10))

	tests := []struct {
		name  string
		setup func(repo *mockScheduleRepo)
	}{
		{name: "deleted", setup: func(repo *mockScheduleRepo) {
			repo.On("FindByID", ctx, "s1").Return(nil, calendarDomain.ErrScheduleNotFound)
		}},
		{name: "offset removed", setup: func(repo *mockScheduleRepo) {
			repo.On("FindByID", ctx, "s1").Return(newSchedule(t, now.Add(10*time.Minute), reminders(5)), nil)
		}},
		{name: "start moved", setup: func(repo *mockScheduleRepo) {
			repo.On("FindByID", ctx, "s1").Return(moved, nil)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mockScheduleRepo)
			tt.setup(repo)
			notifier := new(recordingNotifier)
			metrics := observability.NewInMemoryMetrics()

			consumer := NewFiredConsumer(repo, notifier, nil, metrics)
			alarm := domain.NewAlarm("s1", "Dentist", "", now, 10, domain.TierExactIdleBypass)
			require.NoError(t, consumer.Handle(ctx, firedEvent(t, alarm)))

			notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
			assert.Equal(t, int64(1), metrics.GetCounter("reminders.stale"))
		})
	}
}

func TestFiredConsumer_RepositoryError(t *testing.T) {
	ctx := context.Background()
	repo := new(mockScheduleRepo)
	repo.On("FindByID", ctx, "s1").Return(nil, errors.New("db down"))

	consumer := NewFiredConsumer(repo, new(recordingNotifier), nil, nil)
	alarm := domain.NewAlarm("s1", "Dentist", "", now, 10, domain.TierExactIdleBypass)
	assert.Error(t, consumer.Handle(ctx, firedEvent(t, alarm)))
}

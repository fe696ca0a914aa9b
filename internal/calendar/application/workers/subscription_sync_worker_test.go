package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Owl23007/synapse-android-sub000/internal/calendar/application/commands"
	"github.com/Owl23007/synapse-android-sub000/internal/calendar/domain"
	"github.com/Owl23007/synapse-android-sub000/pkg/observability"
)

type stubSyncer struct {
	mu      sync.Mutex
	calls   int
	results []domain.SyncResult
	err     error
}

func (s *stubSyncer) Handle(context.Context, commands.SyncAllSubscriptionsCommand) ([]domain.SyncResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.results, s.err
}

func (s *stubSyncer) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestSubscriptionSyncWorker_RunOnce(t *testing.T) {
	syncer := &stubSyncer{results: []domain.SyncResult{
		{SubscriptionID: "a", Success: true, AddedCount: 3},
		domain.FailedSync("b", "fetch failed"),
	}}
	metrics := observability.NewInMemoryMetrics()
	w := NewSubscriptionSyncWorker(syncer, DefaultSubscriptionSyncWorkerConfig(), observability.DiscardLogger(), metrics)

	assert.Equal(t, 1, w.RunOnce(context.Background()))
	assert.Equal(t, float64(2), metrics.GetGauge("subscriptions.sync_pass.attempted"))
	assert.Equal(t, float64(1), metrics.GetGauge("subscriptions.sync_pass.succeeded"))
}

func TestSubscriptionSyncWorker_RunOnceError(t *testing.T) {
	syncer := &stubSyncer{err: errors.New("db down")}
	w := NewSubscriptionSyncWorker(syncer, DefaultSubscriptionSyncWorkerConfig(), observability.DiscardLogger(), nil)
	assert.Zero(t, w.RunOnce(context.Background()))
}

func TestSubscriptionSyncWorker_RunAndStop(t *testing.T) {
	syncer := &stubSyncer{}
	w := NewSubscriptionSyncWorker(syncer, SubscriptionSyncWorkerConfig{Schedule: "@every 1h", RunOnStart: true}, observability.DiscardLogger(), nil)

	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()

	require.Eventually(t, func() bool { return w.IsRunning() && syncer.count() == 1 }, time.Second, 5*time.Millisecond)
	w.Stop()
	w.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
	assert.False(t, w.IsRunning())
}

func TestSubscriptionSyncWorker_ContextCancel(t *testing.T) {
	w := NewSubscriptionSyncWorker(&stubSyncer{}, SubscriptionSyncWorkerConfig{Schedule: "*/5 * * * *"}, observability.DiscardLogger(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, w.Run(ctx), context.Canceled)
}

func TestSubscriptionSyncWorker_InvalidSchedule(t *testing.T) {
	w := NewSubscriptionSyncWorker(&stubSyncer{}, SubscriptionSyncWorkerConfig{Schedule: "whenever"}, observability.DiscardLogger(), nil)
	err := w.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "whenever")
	assert.False(t, w.IsRunning())
}

func TestSubscriptionSyncWorker_NilSyncer(t *testing.T) {
	w := NewSubscriptionSyncWorker(nil, DefaultSubscriptionSyncWorkerConfig(), observability.DiscardLogger(), nil)
	assert.NoError(t, w.Run(context.Background()))
}

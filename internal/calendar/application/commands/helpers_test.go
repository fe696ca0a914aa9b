package commands

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Owl23007/synapse-android-sub000/internal/calendar/domain"
)

var base = time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)

func newSchedule(t *testing.T, id string, start time.Time, d time.Duration, mutate ...func(*domain.ScheduleParams)) *domain.Schedule {
	t.Helper()
	p := domain.ScheduleParams{
		ID:              id,
		Title:           "Schedule " + id,
		Start:           start,
		End:             start.Add(d),
		CalendarID:      "default",
		ReminderMinutes: []int{10},
	}
	for _, m := range mutate {
		m(&p)
	}
	s, err := domain.NewSchedule(p)
	require.NoError(t, err)
	return s
}

// memSchedules is an in-memory ScheduleRepository.
type memSchedules struct {
	mu      sync.Mutex
	items   map[string]domain.ScheduleParams
	saveErr map[string]error
	listErr error
}

func newMemSchedules(seed ...*domain.Schedule) *memSchedules {
	r := &memSchedules{items: map[string]domain.ScheduleParams{}, saveErr: map[string]error{}}
	for _, s := range seed {
		r.items[s.ID()] = s.Snapshot()
	}
	return r
}

func (r *memSchedules) Save(_ context.Context, s *domain.Schedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.saveErr[s.Title()]; err != nil {
		return err
	}
	r.items[s.ID()] = s.Snapshot()
	return nil
}

func (r *memSchedules) FindByID(_ context.Context, id string) (*domain.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok {
		return nil, domain.ErrScheduleNotFound
	}
	return domain.RehydrateSchedule(p)
}

func (r *memSchedules) FindOverlapping(_ context.Context, start, end time.Time) ([]*domain.Schedule, error) {
	return r.filter(func(p domain.ScheduleParams) bool {
		return p.Start.Before(end) && p.End.After(start)
	}), nil
}

func (r *memSchedules) FindBySubscription(_ context.Context, id string) ([]*domain.Schedule, error) {
	return r.filter(func(p domain.ScheduleParams) bool { return p.SubscriptionID == id }), nil
}

func (r *memSchedules) List(_ context.Context, f domain.ScheduleFilter) ([]*domain.Schedule, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.filter(func(p domain.ScheduleParams) bool {
		return f.CalendarID == "" || p.CalendarID == f.CalendarID
	}), nil
}

func (r *memSchedules) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return domain.ErrScheduleNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *memSchedules) DeleteBySubscription(_ context.Context, id string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k, p := range r.items {
		if p.SubscriptionID == id {
			delete(r.items, k)
			n++
		}
	}
	return n, nil
}

func (r *memSchedules) filter(keep func(domain.ScheduleParams) bool) []*domain.Schedule {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Schedule
	for _, p := range r.items {
		if keep(p) {
			s, _ := domain.RehydrateSchedule(p)
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func (r *memSchedules) ids() []string {
	all := r.filter(func(domain.ScheduleParams) bool { return true })
	ids := make([]string, 0, len(all))
	for _, s := range all {
		ids = append(ids, s.ID())
	}
	return ids
}

// memSubscriptions is an in-memory SubscriptionRepository.
type memSubscriptions struct {
	items   map[string]*domain.Subscription
	saved   int
	findErr error
}

func newMemSubscriptions(seed ...*domain.Subscription) *memSubscriptions {
	r := &memSubscriptions{items: map[string]*domain.Subscription{}}
	for _, s := range seed {
		r.items[s.ID()] = s
	}
	return r
}

func (r *memSubscriptions) Save(_ context.Context, s *domain.Subscription) error {
	for id, other := range r.items {
		if id != s.ID() && other.URL() == s.URL() {
			return domain.ErrDuplicateSubscription
		}
	}
	r.items[s.ID()] = s
	r.saved++
	return nil
}

func (r *memSubscriptions) FindByID(_ context.Context, id string) (*domain.Subscription, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	s, ok := r.items[id]
	if !ok {
		return nil, domain.ErrSubscriptionNotFound
	}
	return s, nil
}

func (r *memSubscriptions) List(context.Context) ([]*domain.Subscription, error) {
	out := make([]*domain.Subscription, 0, len(r.items))
	for _, s := range r.items {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out, nil
}

func (r *memSubscriptions) Delete(_ context.Context, id string) error {
	if _, ok := r.items[id]; !ok {
		return domain.ErrSubscriptionNotFound
	}
	delete(r.items, id)
	return nil
}

// mockCodec is a testify mock of Codec.
type mockCodec struct {
	mock.Mock
}

func (m *mockCodec) Encode(schedules []*domain.Schedule) (string, error) {
	args := m.Called(schedules)
	return args.String(0), args.Error(1)
}

func (m *mockCodec) Decode(text, calendarID, subscriptionID string) ([]*domain.Schedule, error) {
	args := m.Called(text, calendarID, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Schedule), args.Error(1)
}

// mockFetcher is a testify mock of Fetcher.
type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Fetch(ctx context.Context, url string) (string, error) {
	args := m.Called(ctx, url)
	return args.String(0), args.Error(1)
}

func (m *mockFetcher) Validate(ctx context.Context, url string) bool {
	args := m.Called(ctx, url)
	return args.Bool(0)
}

// recordingReminders records scheduler calls in order.
type recordingReminders struct {
	calls []string
}

func (r *recordingReminders) ScheduleReminder(_ context.Context, s *domain.Schedule) {
	r.calls = append(r.calls, "arm:"+s.ID())
}

func (r *recordingReminders) CancelReminder(_ context.Context, s *domain.Schedule) {
	r.calls = append(r.calls, "cancel:"+s.ID())
}

// capturePublisher records routing keys.
type capturePublisher struct {
	keys []string
	err  error
}

func (p *capturePublisher) Publish(_ context.Context, routingKey string, _ []byte) error {
	if p.err != nil {
		return p.err
	}
	p.keys = append(p.keys, routingKey)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

// countingUoW counts transaction outcomes.
type countingUoW struct {
	begun, committed, rolledBack int
}

func (u *countingUoW) Begin(ctx context.Context) (context.Context, error) {
	u.begun++
	return ctx, nil
}

func (u *countingUoW) Commit(context.Context) error {
	u.committed++
	return nil
}

func (u *countingUoW) Rollback(context.Context) error {
	u.rolledBack++
	return nil
}

var errBoom = errors.New("boom")

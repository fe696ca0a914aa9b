// Package memory keeps armed reminders in process memory.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Owl23007/synapse-android-sub000/internal/reminders/domain"
)

// Call records one AlarmService invocation.
type Call struct {
	Method string
	Key    string
	Tier   domain.Tier
}

// AlarmService is an in-process AlarmService and DueStore keyed by handle.
type AlarmService struct {
	mu         sync.Mutex
	armed      map[string]domain.Alarm
	states     map[string]domain.State
	calls      []Call
	exact      bool
	denyExact  bool
	guardUntil time.Time
	guardTTL   time.Duration
	now        func() time.Time
}

// NewAlarmService creates an alarm service that allows exact alarms.
func NewAlarmService() *AlarmService {
	return &AlarmService{
		armed:    make(map[string]domain.Alarm),
		states:   make(map[string]domain.State),
		exact:    true,
		guardTTL: 10 * time.Minute,
		now:      time.Now,
	}
}

// SetExactAllowed changes what CanScheduleExactAlarms reports.
func (s *AlarmService) SetExactAllowed(allowed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exact = allowed
}

// SetDenyExact makes exact registrations fail with ErrExactAlarmDenied
// while CanScheduleExactAlarms still reports true, as when permission is
// revoked between the check and the call.
func (s *AlarmService) SetDenyExact(deny bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.denyExact = deny
}

// SetGuardTTL changes how long StartGuard keeps the guard active.
func (s *AlarmService) SetGuardTTL(ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guardTTL = ttl
}

func (s *AlarmService) RegisterClockAlarm(ctx context.Context, alarm domain.Alarm) error {
	return s.register("RegisterClockAlarm", alarm.WithTier(domain.TierClockAlarm), true)
}

func (s *AlarmService) RegisterExactIdleBypass(ctx context.Context, alarm domain.Alarm) error {
	return s.register("RegisterExactIdleBypass", alarm.WithTier(domain.TierExactIdleBypass), true)
}

func (s *AlarmService) RegisterInexactIdleBypass(ctx context.Context, alarm domain.Alarm) error {
	return s.register("RegisterInexactIdleBypass", alarm.WithTier(domain.TierInexactIdleBypass), false)
}

func (s *AlarmService) register(method string, alarm domain.Alarm, exact bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, Call{Method: method, Key: alarm.Handle.Key, Tier: alarm.Tier})
	if exact && s.denyExact {
		return domain.ErrExactAlarmDenied
	}
	s.armed[alarm.Handle.Key] = alarm
	s.states[alarm.Handle.Key] = domain.StateArmed
	return nil
}

// Cancel disarms handle. Unknown handles are ignored.
func (s *AlarmService) Cancel(ctx context.Context, handle domain.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, Call{Method: "Cancel", Key: handle.Key})
	if _, ok := s.armed[handle.Key]; ok {
		delete(s.armed, handle.Key)
		s.states[handle.Key] = domain.StateCancelled
	}
	return nil
}

func (s *AlarmService) CanScheduleExactAlarms(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exact
}

// StartGuard marks the guard active for the configured TTL.
func (s *AlarmService) StartGuard(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, Call{Method: "StartGuard"})
	s.guardUntil = s.now().Add(s.guardTTL)
	return nil
}

// GuardActive reports whether a guard started by StartGuard is still running.
func (s *AlarmService) GuardActive(ctx context.Context, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Before(s.guardUntil)
}

// ClaimDue removes and returns armed alarms with TriggerAt <= now, earliest
// first, and marks them fired.
func (s *AlarmService) ClaimDue(ctx context.Context, now time.Time, limit int) ([]domain.Alarm, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []domain.Alarm
	for _, a := range s.armed {
		if !a.TriggerAt.After(now) {
			due = append(due, a)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].TriggerAt.Equal(due[j].TriggerAt) {
			return due[i].Handle.Key < due[j].Handle.Key
		}
		return due[i].TriggerAt.Before(due[j].TriggerAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	for _, a := range due {
		delete(s.armed, a.Handle.Key)
		s.states[a.Handle.Key] = domain.StateFired
	}
	return due, nil
}

// Release re-arms claimed alarms whose handle was not armed again since.
func (s *AlarmService) Release(ctx context.Context, alarms []domain.Alarm) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range alarms {
		s.calls = append(s.calls, Call{Method: "Release", Key: a.Handle.Key, Tier: a.Tier})
		if _, ok := s.armed[a.Handle.Key]; ok {
			continue
		}
		s.armed[a.Handle.Key] = a
		s.states[a.Handle.Key] = domain.StateArmed
	}
	return nil
}

// Armed returns the armed alarms ordered by trigger time.
func (s *AlarmService) Armed() []domain.Alarm {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Alarm, 0, len(s.armed))
	for _, a := range s.armed {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TriggerAt.Before(out[j].TriggerAt) })
	return out
}

// ListArmed is Armed behind the context-taking signature the CLI lists with.
func (s *AlarmService) ListArmed(ctx context.Context) ([]domain.Alarm, error) {
	return s.Armed(), nil
}

// Get returns the armed alarm for handle.
func (s *AlarmService) Get(handle domain.Handle) (domain.Alarm, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.armed[handle.Key]
	return a, ok
}

// State returns the lifecycle state of handle.
func (s *AlarmService) State(handle domain.Handle) domain.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[handle.Key]; ok {
		return st
	}
	return domain.StateUnscheduled
}

// Calls returns a copy of the recorded invocations.
func (s *AlarmService) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Reset forgets recorded calls.
func (s *AlarmService) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

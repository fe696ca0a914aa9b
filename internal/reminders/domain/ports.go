package domain

import (
	"context"
	"time"
)

// AlarmService registers platform timers. Registering a handle that is
// already armed replaces the earlier timer. Implementations must be safe
// for concurrent use.
type AlarmService interface {
	RegisterClockAlarm(ctx context.Context, alarm Alarm) error
	RegisterExactIdleBypass(ctx context.Context, alarm Alarm) error
	RegisterInexactIdleBypass(ctx context.Context, alarm Alarm) error
	// Cancel is a no-op for handles that are not armed.
	Cancel(ctx context.Context, handle Handle) error
	CanScheduleExactAlarms(ctx context.Context) bool
}

// Guard keeps the process that fires alarms alive through an imminent trigger.
type Guard interface {
	StartGuard(ctx context.Context) error
}

// DueStore hands out alarms whose trigger has passed. ClaimDue removes
// what it returns, so two dispatchers never fire the same alarm.
type DueStore interface {
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]Alarm, error)
	// Release returns claimed alarms that could not be delivered. A handle
	// armed again since the claim keeps its newer registration.
	Release(ctx context.Context, alarms []Alarm) error
	// GuardActive reports whether some process asked for a guard that has
	// not yet expired.
	GuardActive(ctx context.Context, now time.Time) bool
}

// Register dispatches alarm to the AlarmService method for its tier.
func Register(ctx context.Context, svc AlarmService, alarm Alarm) error {
	switch alarm.Tier {
	case TierClockAlarm:
		return svc.RegisterClockAlarm(ctx, alarm)
	case TierExactIdleBypass:
		return svc.RegisterExactIdleBypass(ctx, alarm)
	default:
		return svc.RegisterInexactIdleBypass(ctx, alarm.WithTier(TierInexactIdleBypass))
	}
}

package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Owl23007/synapse-android-sub000/internal/reminders/domain"
)

func TestAlarmService_RegisterReplacesSameHandle(t *testing.T) {
	ctx := context.Background()
	svc := NewAlarmService()
	at := time.Now().Add(time.Hour)

	require.NoError(t, svc.RegisterExactIdleBypass(ctx, domain.NewAlarm("s1", "A", "", at, 10, domain.TierExactIdleBypass)))
	require.NoError(t, svc.RegisterClockAlarm(ctx, domain.NewAlarm("s1", "B", "", at.Add(time.Minute), 10, domain.TierClockAlarm)))

	armed := svc.Armed()
	require.Len(t, armed, 1)
	assert.Equal(t, "B", armed[0].Title)
	assert.Equal(t, domain.TierClockAlarm, armed[0].Tier)
	assert.Equal(t, domain.StateArmed, svc.State(domain.NewHandle("s1", 10)))
}

func TestAlarmService_CancelIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := NewAlarmService()
	h := domain.NewHandle("s1", 5)

	require.NoError(t, svc.Cancel(ctx, h))
	assert.Equal(t, domain.StateUnscheduled, svc.State(h))

	require.NoError(t, svc.RegisterInexactIdleBypass(ctx, domain.NewAlarm("s1", "A", "", time.Now().Add(time.Hour), 5, domain.TierInexactIdleBypass)))
	require.NoError(t, svc.Cancel(ctx, h))
	require.NoError(t, svc.Cancel(ctx, h))
	assert.Equal(t, domain.StateCancelled, svc.State(h))
	assert.Empty(t, svc.Armed())
}

func TestAlarmService_DenyExact(t *testing.T) {
	ctx := context.Background()
	svc := NewAlarmService()
	svc.SetDenyExact(true)

	err := svc.RegisterClockAlarm(ctx, domain.NewAlarm("s1", "A", "", time.Now().Add(time.Hour), 5, domain.TierClockAlarm))
	assert.ErrorIs(t, err, domain.ErrExactAlarmDenied)
	assert.Empty(t, svc.Armed())
	assert.NoError(t, svc.RegisterInexactIdleBypass(ctx, domain.NewAlarm("s1", "A", "", time.Now().Add(time.Hour), 5, domain.TierInexactIdleBypass)))
}

func TestAlarmService_ClaimDue(t *testing.T) {
	ctx := context.Background()
	svc := NewAlarmService()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	for i, offset := range []time.Duration{-2 * time.Minute, -time.Minute, 0, time.Minute} {
		a := domain.NewAlarm("s1", "A", "", now.Add(offset), i, domain.TierExactIdleBypass)
		require.NoError(t, svc.RegisterExactIdleBypass(ctx, a))
	}

	due, err := svc.ClaimDue(ctx, now, 2)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, 0, due[0].Minutes)
	assert.Equal(t, 1, due[1].Minutes)
	assert.Equal(t, domain.StateFired, svc.State(due[0].Handle))

	due, err = svc.ClaimDue(ctx, now, 0)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, 2, due[0].Minutes)

	due, err = svc.ClaimDue(ctx, now, 0)
	require.NoError(t, err)
	assert.Empty(t, due)
	assert.Len(t, svc.Armed(), 1)
}

func TestAlarmService_Guard(t *testing.T) {
	ctx := context.Background()
	svc := NewAlarmService()
	svc.SetGuardTTL(time.Minute)

	assert.False(t, svc.GuardActive(ctx, time.Now()))
	require.NoError(t, svc.StartGuard(ctx))
	assert.True(t, svc.GuardActive(ctx, time.Now()))
	assert.False(t, svc.GuardActive(ctx, time.Now().Add(2*time.Minute)))
}

func TestAlarmService_ReleaseKeepsNewerRegistration(t *testing.T) {
	ctx := context.Background()
	svc := NewAlarmService()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, svc.RegisterClockAlarm(ctx, domain.NewAlarm("s1", "A", "", now.Add(-time.Minute), 5, domain.TierClockAlarm)))
	require.NoError(t, svc.RegisterClockAlarm(ctx, domain.NewAlarm("s2", "B", "", now.Add(-time.Minute), 5, domain.TierClockAlarm)))
	due, err := svc.ClaimDue(ctx, now, 0)
	require.NoError(t, err)
	require.Len(t, due, 2)

	moved := domain.NewAlarm("s2", "B", "", now.Add(time.Hour), 5, domain.TierClockAlarm)
	require.NoError(t, svc.RegisterClockAlarm(ctx, moved))

	require.NoError(t, svc.Release(ctx, due))

	armed := svc.Armed()
	require.Len(t, armed, 2)
	assert.Equal(t, "s1", armed[0].ScheduleID)
	assert.Equal(t, domain.StateArmed, svc.State(domain.NewHandle("s1", 5)))
	got, ok := svc.Get(moved.Handle)
	require.True(t, ok)
	assert.True(t, moved.TriggerAt.Equal(got.TriggerAt))
}

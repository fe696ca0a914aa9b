package commands

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Owl23007/synapse-android-sub000/internal/calendar/domain"
	reminderApp "github.com/Owl23007/synapse-android-sub000/internal/reminders/application"
	reminderDomain "github.com/Owl23007/synapse-android-sub000/internal/reminders/domain"
	"github.com/Owl23007/synapse-android-sub000/internal/reminders/infrastructure/memory"
	"github.com/Owl23007/synapse-android-sub000/internal/shared/infrastructure/eventbus"
	"github.com/Owl23007/synapse-android-sub000/pkg/observability"
)

const icsText = "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"

func newImportHandler(repo *memSchedules, codec Codec, rem ReminderScheduler, pub *capturePublisher) *ImportSchedulesHandler {
	var publisher eventbus.Publisher
	if pub != nil {
		publisher = pub
	}
	return NewImportSchedulesHandler(repo, codec, rem, publisher, nil, nil, nil)
}

func TestImportSchedules_ConflictStrategies(t *testing.T) {
	tests := []struct {
		strategy    domain.ConflictStrategy
		wantStored  int
		wantSuccess int
		wantFailed  int
		wantNew     bool
		wantOld     bool
	}{
		{domain.ConflictSkip, 1, 0, 1, false, true},
		{domain.ConflictReplace, 1, 1, 0, true, false},
		{domain.ConflictKeepBoth, 2, 1, 0, true, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			existing := newSchedule(t, "existing", base, time.Hour)
			incoming := newSchedule(t, "incoming", base.Add(30*time.Minute), time.Hour)
			repo := newMemSchedules(existing)
			codec := new(mockCodec)
			codec.On("Decode", icsText, "work", "").Return([]*domain.Schedule{incoming}, nil)

			result, err := newImportHandler(repo, codec, nil, nil).Handle(context.Background(), ImportSchedulesCommand{
				ICSText:    icsText,
				CalendarID: "work",
				Strategy:   tt.strategy,
			})
			require.NoError(t, err)

			assert.Equal(t, tt.wantSuccess, result.SuccessCount)
			assert.Equal(t, tt.wantFailed, result.FailedCount)
			assert.Equal(t, 1, result.Total())
			require.Len(t, result.Conflicts, 1)
			assert.Equal(t, "incoming", result.Conflicts[0].ID())

			ids := repo.ids()
			assert.Len(t, ids, tt.wantStored)
			assert.Equal(t, tt.wantNew, contains(ids, "incoming"))
			assert.Equal(t, tt.wantOld, contains(ids, "existing"))
			codec.AssertExpectations(t)
		})
	}
}

func TestImportSchedules_NoOverlapInsertsAll(t *testing.T) {
	a := newSchedule(t, "a", base, time.Hour)
	b := newSchedule(t, "b", base.Add(time.Hour), time.Hour) // touches a, does not overlap
	repo := newMemSchedules()
	codec := new(mockCodec)
	codec.On("Decode", icsText, "default", "").Return([]*domain.Schedule{a, b}, nil)
	rem := &recordingReminders{}
	pub := &capturePublisher{}

	result, err := newImportHandler(repo, codec, rem, pub).Handle(context.Background(), ImportSchedulesCommand{
		ICSText:    icsText,
		CalendarID: "default",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.SuccessCount)
	assert.Empty(t, result.Conflicts)
	assert.Len(t, result.Imported, 2)
	assert.Equal(t, []string{"arm:a", "arm:b"}, rem.calls)
	assert.Equal(t, []string{domain.RoutingKeyScheduleCreated, domain.RoutingKeyScheduleCreated}, pub.keys)
	assert.Empty(t, a.DomainEvents())
}

func TestImportSchedules_ReplaceCancelsReplacedReminders(t *testing.T) {
	existing := newSchedule(t, "existing", base, time.Hour)
	incoming := newSchedule(t, "incoming", base, time.Hour)
	repo := newMemSchedules(existing)
	codec := new(mockCodec)
	codec.On("Decode", mock.Anything, mock.Anything, "").Return([]*domain.Schedule{incoming}, nil)
	rem := &recordingReminders{}

	_, err := newImportHandler(repo, codec, rem, nil).Handle(context.Background(), ImportSchedulesCommand{
		ICSText:    icsText,
		CalendarID: "default",
		Strategy:   domain.ConflictReplace,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"cancel:existing", "arm:incoming"}, rem.calls)
}

func TestImportSchedules_KeepBothReassignsCollidingID(t *testing.T) {
	existing := newSchedule(t, "uid-1", base, time.Hour)
	again := newSchedule(t, "uid-1", base, time.Hour)
	repo := newMemSchedules(existing)
	codec := new(mockCodec)
	codec.On("Decode", mock.Anything, mock.Anything, "").Return([]*domain.Schedule{again}, nil)

	result, err := newImportHandler(repo, codec, nil, nil).Handle(context.Background(), ImportSchedulesCommand{
		ICSText:    icsText,
		CalendarID: "default",
		Strategy:   domain.ConflictKeepBoth,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.SuccessCount)
	assert.NotEqual(t, "uid-1", result.Imported[0].ID())
	assert.Len(t, repo.ids(), 2)
}

func TestImportSchedules_PersistenceFailureIsCounted(t *testing.T) {
	good := newSchedule(t, "good", base, time.Hour)
	bad := newSchedule(t, "bad", base.Add(2*time.Hour), time.Hour)
	repo := newMemSchedules()
	repo.saveErr[bad.Title()] = errBoom
	codec := new(mockCodec)
	codec.On("Decode", mock.Anything, mock.Anything, "").Return([]*domain.Schedule{bad, good}, nil)
	uow := &countingUoW{}
	metrics := observability.NewInMemoryMetrics()

	h := NewImportSchedulesHandler(repo, codec, nil, nil, uow, nil, metrics)
	result, err := h.Handle(context.Background(), ImportSchedulesCommand{ICSText: icsText, CalendarID: "default"})
	require.NoError(t, err)

	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 1, result.FailedCount)
	assert.Empty(t, result.Conflicts)
	assert.Equal(t, []string{"good"}, repo.ids())
	assert.Equal(t, 1, uow.rolledBack)
	assert.Equal(t, 1, uow.committed)
	assert.Equal(t, int64(1), metrics.GetCounter("schedules.import_failed", observability.T("strategy", "SKIP")))
}

func TestImportSchedules_Preconditions(t *testing.T) {
	codec := new(mockCodec)
	h := newImportHandler(newMemSchedules(), codec, nil, nil)

	tests := []struct {
		name string
		cmd  ImportSchedulesCommand
	}{
		{"blank text", ImportSchedulesCommand{ICSText: "  \n", CalendarID: "default"}},
		{"blank calendar", ImportSchedulesCommand{ICSText: icsText, CalendarID: " "}},
		{"bad strategy", ImportSchedulesCommand{ICSText: icsText, CalendarID: "default", Strategy: "MERGE"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Handle(context.Background(), tt.cmd)
			assert.ErrorIs(t, err, ErrInvalidImport)
		})
	}
	codec.AssertNotCalled(t, "Decode", mock.Anything, mock.Anything, mock.Anything)
}

func TestImportSchedules_DecodeError(t *testing.T) {
	codec := new(mockCodec)
	codec.On("Decode", mock.Anything, mock.Anything, "").Return(nil, errBoom)

	_, err := newImportHandler(newMemSchedules(), codec, nil, nil).Handle(context.Background(), ImportSchedulesCommand{
		ICSText:    "garbage",
		CalendarID: "default",
	})
	assert.ErrorIs(t, err, errBoom)
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func TestImportSchedules_MergeDefaultsToSkip(t *testing.T) {
	existing := newSchedule(t, "existing", base, time.Hour)
	pulled := newSchedule(t, "pulled", base, time.Hour)
	repo := newMemSchedules(existing)

	result := newImportHandler(repo, new(mockCodec), nil, nil).Merge(context.Background(), []*domain.Schedule{pulled}, "default", "")
	assert.Equal(t, 1, result.FailedCount)
	assert.Equal(t, []string{"existing"}, repo.ids())
}

func TestImportSchedules_SameUIDAtNewTimeIsAConflict(t *testing.T) {
	withMinutes := func(m int) func(*domain.ScheduleParams) {
		return func(p *domain.ScheduleParams) { p.ReminderMinutes = []int{m} }
	}

	tests := []struct {
		strategy    domain.ConflictStrategy
		wantSuccess int
		wantStored  int
		wantStart   time.Time
		wantArmed   []string
	}{
		{domain.ConflictSkip, 0, 1, base, []string{"REMINDER_evt_30"}},
		{domain.ConflictReplace, 1, 1, base.Add(24 * time.Hour), []string{"REMINDER_evt_15"}},
		{domain.ConflictKeepBoth, 1, 2, base, []string{"REMINDER_evt_30"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			alarms := memory.NewAlarmService()
			scheduler := reminderApp.NewScheduler(alarms, nil, reminderApp.DefaultSchedulerConfig(), nil, nil).
				WithClock(func() time.Time { return base.Add(-72 * time.Hour) })

			stored := newSchedule(t, "evt", base, time.Hour, withMinutes(30))
			repo := newMemSchedules(stored)
			scheduler.ScheduleReminder(context.Background(), stored)

			moved := newSchedule(t, "evt", base.Add(24*time.Hour), time.Hour, withMinutes(15))
			codec := new(mockCodec)
			codec.On("Decode", icsText, "default", "").Return([]*domain.Schedule{moved}, nil)

			result, err := NewImportSchedulesHandler(repo, codec, scheduler, nil, nil, nil, nil).Handle(context.Background(), ImportSchedulesCommand{
				ICSText:    icsText,
				CalendarID: "default",
				Strategy:   tt.strategy,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantSuccess, result.SuccessCount)
			assert.Len(t, result.Conflicts, 1)
			assert.Len(t, repo.ids(), tt.wantStored)

			got, err := repo.FindByID(context.Background(), "evt")
			require.NoError(t, err)
			assert.True(t, tt.wantStart.Equal(got.StartTime()), "stored start %s", got.StartTime())

			var keys []string
			for _, a := range alarms.Armed() {
				keys = append(keys, a.Handle.Key)
				if a.ScheduleID == "evt" {
					// No timer may point at a time the stored schedule no longer has.
					assert.True(t, got.StartTime().Add(-time.Duration(a.Minutes)*time.Minute).Equal(a.TriggerAt))
				}
			}
			for _, want := range tt.wantArmed {
				assert.Contains(t, keys, want)
			}
			if tt.strategy == domain.ConflictKeepBoth {
				require.Len(t, keys, 2)
				assert.NotEqual(t, "evt", moved.ID())
				assert.Contains(t, keys, reminderDomain.NewHandle(moved.ID(), 15).Key)
			} else {
				assert.Len(t, keys, 1)
			}
		})
	}
}

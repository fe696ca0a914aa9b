package caldav

import (
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Owl23007/synapse-android-sub000/internal/calendar/domain"
	"github.com/Owl23007/synapse-android-sub000/internal/calendar/infrastructure/icalendar"
	"github.com/Owl23007/synapse-android-sub000/pkg/observability"
)

var start = time.Date(2024, time.May, 1, 9, 0, 0, 0, time.UTC)

func newTestSyncer() *Syncer {
	logger := observability.DiscardLogger()
	return NewSyncer(Config{BaseURL: "https://caldav.example.com", Username: "user", Password: "pass"},
		icalendar.NewCodec(time.UTC, logger), logger)
}

func TestNewSyncer_Defaults(t *testing.T) {
	s := newTestSyncer()
	assert.Equal(t, 30*time.Second, s.cfg.Timeout)
	assert.False(t, s.deleteMissing)
	assert.Same(t, s, s.WithDeleteMissing(true))
	assert.True(t, s.deleteMissing)
}

func TestToCalendar(t *testing.T) {
	sched, err := domain.NewSchedule(domain.ScheduleParams{
		ID:              "abc",
		Title:           "Deep Work",
		Start:           start,
		End:             start.Add(time.Hour),
		CalendarID:      "default",
		ReminderMinutes: []int{15},
	})
	require.NoError(t, err)

	cal := newTestSyncer().toCalendar(sched)
	require.Len(t, cal.Children, 1)
	event := cal.Children[0]
	assert.Equal(t, ical.CompEvent, event.Name)
	assert.Equal(t, "abc", event.Props.Get(ical.PropUID).Value)
	assert.Equal(t, "Deep Work", event.Props.Get(ical.PropSummary).Value)
	assert.Equal(t, icalendar.ProductID, cal.Props.Get(ical.PropProductID).Value)

	obj := &caldav.CalendarObject{Path: "/cal/abc.ics", Data: cal}
	assert.True(t, isOwnEvent(obj))
}

func TestFromObject(t *testing.T) {
	foreign := ical.NewEvent()
	foreign.Props.SetText(ical.PropUID, "remote-1")
	foreign.Props.SetText(ical.PropSummary, "Lunch")
	foreign.Props.SetDateTime(ical.PropDateTimeStamp, start)
	foreign.Props.SetDateTime(ical.PropDateTimeStart, start)
	foreign.Props.SetDateTime(ical.PropDateTimeEnd, start.Add(time.Hour))

	broken := ical.NewEvent()
	broken.Props.SetText(ical.PropUID, "broken")

	cal := icalendar.NewCalendar()
	cal.Children = append(cal.Children, foreign.Component, broken.Component)
	obj := &caldav.CalendarObject{Path: "/cal/remote-1.ics", Data: cal}

	assert.False(t, isOwnEvent(obj))
	schedules := newTestSyncer().fromObject(obj, "work")
	require.Len(t, schedules, 1)
	assert.Equal(t, "remote-1", schedules[0].ID())
	assert.Equal(t, "work", schedules[0].CalendarID())
	assert.True(t, schedules[0].StartTime().Equal(start))

	assert.Nil(t, newTestSyncer().fromObject(&caldav.CalendarObject{}, "work"))
	assert.False(t, isOwnEvent(nil))
}

func TestObjectPath(t *testing.T) {
	assert.Equal(t, "/cal/home/abc.ics", objectPath("/cal/home/", "abc"))
	assert.Equal(t, "/cal/home/abc.ics", objectPath("/cal/home", "abc"))
}

func TestEventQuery(t *testing.T) {
	q := eventQuery(start, start.Add(24*time.Hour))
	require.Len(t, q.CompFilter.Comps, 1)
	assert.Equal(t, ical.CompEvent, q.CompFilter.Comps[0].Name)
	assert.Equal(t, start, q.CompFilter.Comps[0].Start)
	assert.True(t, q.CompRequest.AllComps)
}

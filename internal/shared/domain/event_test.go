package domain_test

import (
	"testing"
	"time"

	"github.com/Owl23007/synapse-android-sub000/internal/shared/domain"
	"github.com/stretchr/testify/assert"
)

func TestNewBaseEvent(t *testing.T) {
	before := time.Now().UTC()

	event := domain.NewBaseEvent("schedule-1", "schedule", "calendar.schedule.created")

	after := time.Now().UTC()

	assert.NotEmpty(t, event.EventID())
	assert.Equal(t, "schedule-1", event.AggregateID())
	assert.Equal(t, "schedule", event.AggregateType())
	assert.Equal(t, "calendar.schedule.created", event.RoutingKey())
	assert.False(t, event.OccurredAt().Before(before))
	assert.False(t, event.OccurredAt().After(after))
}

func TestNewBaseEvent_UniqueIDs(t *testing.T) {
	a := domain.NewBaseEvent("x", "schedule", "k")
	b := domain.NewBaseEvent("x", "schedule", "k")

	assert.NotEqual(t, a.EventID(), b.EventID())
}

func TestBaseEvent_WithMetadata(t *testing.T) {
	event := domain.NewBaseEvent("schedule-1", "schedule", "calendar.schedule.created")
	event.SetMetadata(domain.EventMetadata{
		CorrelationID: "corr",
		CausationID:   "cause",
	})

	assert.Equal(t, "corr", event.Metadata().CorrelationID)
	assert.Equal(t, "cause", event.Metadata().CausationID)
}

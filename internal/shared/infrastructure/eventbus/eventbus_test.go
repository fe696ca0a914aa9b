package eventbus_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Owl23007/synapse-android-sub000/internal/shared/domain"
	"github.com/Owl23007/synapse-android-sub000/internal/shared/infrastructure/eventbus"
	"github.com/Owl23007/synapse-android-sub000/pkg/observability"
)

type recordingConsumer struct {
	eventTypes []string
	events     []*eventbus.ConsumedEvent
	err        error
}

func (c *recordingConsumer) EventTypes() []string { return c.eventTypes }

func (c *recordingConsumer) Handle(_ context.Context, event *eventbus.ConsumedEvent) error {
	c.events = append(c.events, event)
	return c.err
}

type scheduleCreated struct {
	domain.BaseEvent
	Title string `json:"title"`
}

func newScheduleCreated(id, title string) *scheduleCreated {
	return &scheduleCreated{
		BaseEvent: domain.NewBaseEvent(id, "Schedule", "calendar.schedule.created"),
		Title:     title,
	}
}

type recordingPublisher struct {
	keys []string
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, _ []byte) error {
	p.keys = append(p.keys, routingKey)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func TestConsumerRegistry_Register(t *testing.T) {
	registry := eventbus.NewConsumerRegistry(observability.DiscardLogger())

	registry.Register(&recordingConsumer{eventTypes: []string{"calendar.schedule.created", "reminders.reminder.fired"}})
	registry.Register(&recordingConsumer{eventTypes: []string{"calendar.schedule.created"}})

	assert.Len(t, registry.GetConsumers("calendar.schedule.created"), 2)
	assert.Len(t, registry.GetConsumers("reminders.reminder.fired"), 1)
	assert.Empty(t, registry.GetConsumers("calendar.schedule.deleted"))
	assert.Equal(t, []string{"calendar.schedule.created", "reminders.reminder.fired"}, registry.EventTypes())
	assert.Equal(t, 3, registry.ConsumerCount())
}

func TestConsumerRegistry_DispatchContinuesAfterError(t *testing.T) {
	registry := eventbus.NewConsumerRegistry(observability.DiscardLogger())
	failing := &recordingConsumer{eventTypes: []string{"reminders.reminder.fired"}, err: errors.New("boom")}
	healthy := &recordingConsumer{eventTypes: []string{"reminders.reminder.fired"}}
	registry.Register(failing)
	registry.Register(healthy)

	err := registry.Dispatch(context.Background(), &eventbus.ConsumedEvent{RoutingKey: "reminders.reminder.fired"})

	assert.Error(t, err)
	assert.Len(t, failing.events, 1)
	assert.Len(t, healthy.events, 1)
}

func TestConsumerRegistry_DispatchNoConsumers(t *testing.T) {
	registry := eventbus.NewConsumerRegistry(nil)

	err := registry.Dispatch(context.Background(), &eventbus.ConsumedEvent{RoutingKey: "calendar.schedule.deleted"})

	assert.NoError(t, err)
}

func TestMarshal_Envelope(t *testing.T) {
	event := newScheduleCreated("sched-1", "Standup")
	event.SetMetadata(domain.EventMetadata{CorrelationID: "corr-1"})

	body, err := eventbus.Marshal(event)
	require.NoError(t, err)

	var envelope eventbus.ConsumedEvent
	require.NoError(t, json.Unmarshal(body, &envelope))

	assert.Equal(t, event.EventID(), envelope.EventID)
	assert.Equal(t, "sched-1", envelope.AggregateID)
	assert.Equal(t, "Schedule", envelope.AggregateType)
	assert.Equal(t, "calendar.schedule.created", envelope.RoutingKey)
	assert.Equal(t, "corr-1", envelope.Metadata.CorrelationID)

	var payload struct {
		Title string `json:"title"`
	}
	require.NoError(t, envelope.DecodePayload(&payload))
	assert.Equal(t, "Standup", payload.Title)
}

func TestPublishAll(t *testing.T) {
	t.Run("publishes in order", func(t *testing.T) {
		pub := &recordingPublisher{}
		first := newScheduleCreated("a", "A")
		second := newScheduleCreated("b", "B")

		require.NoError(t, eventbus.PublishAll(context.Background(), pub, first, second))
		assert.Equal(t, []string{"calendar.schedule.created", "calendar.schedule.created"}, pub.keys)
	})

	t.Run("stops at first failure", func(t *testing.T) {
		pub := &recordingPublisher{err: errors.New("broker down")}

		err := eventbus.PublishAll(context.Background(), pub, newScheduleCreated("a", "A"), newScheduleCreated("b", "B"))

		assert.Error(t, err)
		assert.Len(t, pub.keys, 1)
	})

	t.Run("nil publisher drops events", func(t *testing.T) {
		assert.NoError(t, eventbus.PublishAll(context.Background(), nil, newScheduleCreated("a", "A")))
	})
}

func TestInProcessEventBus_Publish(t *testing.T) {
	bus := eventbus.NewInProcessEventBus(observability.DiscardLogger())
	consumer := &recordingConsumer{eventTypes: []string{"calendar.schedule.created"}}
	bus.RegisterConsumer(consumer)

	require.NoError(t, eventbus.PublishAll(context.Background(), bus, newScheduleCreated("sched-1", "Standup")))

	require.Len(t, consumer.events, 1)
	assert.Equal(t, "sched-1", consumer.events[0].AggregateID)
	assert.Equal(t, 1, bus.Registry().ConsumerCount())
}

func TestInProcessEventBus_SwallowsFailures(t *testing.T) {
	bus := eventbus.NewInProcessEventBus(observability.DiscardLogger())
	bus.RegisterConsumer(&recordingConsumer{eventTypes: []string{"calendar.schedule.created"}, err: errors.New("boom")})

	assert.NoError(t, bus.Publish(context.Background(), "calendar.schedule.created", []byte("not json")))
	assert.NoError(t, eventbus.PublishAll(context.Background(), bus, newScheduleCreated("x", "X")))
	assert.NoError(t, bus.Close())
}

func TestFanoutPublisher(t *testing.T) {
	failing := &recordingPublisher{err: errors.New("broker down")}
	healthy := &recordingPublisher{}
	fanout := eventbus.FanoutPublisher{failing, healthy}

	err := fanout.Publish(context.Background(), "reminders.reminder.fired", []byte("{}"))

	assert.Error(t, err)
	assert.Equal(t, []string{"reminders.reminder.fired"}, healthy.keys)
	assert.NoError(t, fanout.Close())
}

func TestNoopPublisher(t *testing.T) {
	pub := eventbus.NewNoopPublisher(nil)

	assert.NoError(t, pub.Publish(context.Background(), "calendar.schedule.created", []byte("{}")))
	assert.NoError(t, pub.Close())
}

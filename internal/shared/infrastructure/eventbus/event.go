package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Owl23007/synapse-android-sub000/internal/shared/domain"
)

// Publisher sends serialized events to a broker.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload []byte) error
	Close() error
}

// EventConsumer handles the routing keys it declares,
// e.g. ["calendar.schedule.created", "reminders.reminder.fired"].
type EventConsumer interface {
	EventTypes() []string
	Handle(ctx context.Context, event *ConsumedEvent) error
}

// ConsumedEvent is the wire envelope shared by every publisher and consumer.
type ConsumedEvent struct {
	EventID       string               `json:"event_id"`
	AggregateID   string               `json:"aggregate_id"`
	AggregateType string               `json:"aggregate_type"`
	RoutingKey    string               `json:"routing_key"`
	OccurredAt    time.Time            `json:"occurred_at"`
	Payload       json.RawMessage      `json:"payload"`
	Metadata      domain.EventMetadata `json:"metadata,omitempty"`
}

// DecodePayload unmarshals the event body into out.
func (e *ConsumedEvent) DecodePayload(out any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("event %s has no payload", e.EventID)
	}
	return json.Unmarshal(e.Payload, out)
}

// Marshal wraps a domain event in the envelope. The event's exported fields
// become the payload.
func Marshal(event domain.DomainEvent) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	return json.Marshal(ConsumedEvent{
		EventID:       event.EventID(),
		AggregateID:   event.AggregateID(),
		AggregateType: event.AggregateType(),
		RoutingKey:    event.RoutingKey(),
		OccurredAt:    event.OccurredAt(),
		Payload:       payload,
		Metadata:      event.Metadata(),
	})
}

// PublishAll marshals and publishes events in order, stopping at the first
// failure. A nil publisher drops the events.
func PublishAll(ctx context.Context, p Publisher, events ...domain.DomainEvent) error {
	if p == nil {
		return nil
	}
	for _, event := range events {
		body, err := Marshal(event)
		if err != nil {
			return err
		}
		if err := p.Publish(ctx, event.RoutingKey(), body); err != nil {
			return fmt.Errorf("failed to publish %s: %w", event.RoutingKey(), err)
		}
	}
	return nil
}

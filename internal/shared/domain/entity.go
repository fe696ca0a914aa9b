package domain

import (
	"time"

	"github.com/google/uuid"
)

// Entity represents a domain entity with identity.
type Entity interface {
	ID() string
	CreatedAt() time.Time
	UpdatedAt() time.Time
}

// BaseEntity provides common entity functionality.
// Identifiers are opaque strings: generated ids are UUIDs, but ids that
// arrive from outside (an iCalendar UID, for instance) are kept verbatim.
// Timestamps are held at millisecond precision so they survive a round
// trip through epoch-millis storage unchanged.
type BaseEntity struct {
	id        string
	createdAt time.Time
	updatedAt time.Time
}

// NewID returns a fresh random identifier.
func NewID() string {
	return uuid.NewString()
}

// Now returns the current UTC time truncated to milliseconds.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// NewBaseEntity creates a new entity with generated ID and current timestamps.
func NewBaseEntity() BaseEntity {
	return NewBaseEntityWithID(NewID())
}

// NewBaseEntityWithID creates a new entity with a specific ID.
func NewBaseEntityWithID(id string) BaseEntity {
	now := Now()
	return BaseEntity{
		id:        id,
		createdAt: now,
		updatedAt: now,
	}
}

// RehydrateBaseEntity recreates an entity from persisted state.
func RehydrateBaseEntity(id string, createdAt, updatedAt time.Time) BaseEntity {
	return BaseEntity{
		id:        id,
		createdAt: createdAt.UTC().Truncate(time.Millisecond),
		updatedAt: updatedAt.UTC().Truncate(time.Millisecond),
	}
}

func (e BaseEntity) ID() string           { return e.id }
func (e BaseEntity) CreatedAt() time.Time { return e.createdAt }
func (e BaseEntity) UpdatedAt() time.Time { return e.updatedAt }

// Touch updates the updatedAt timestamp.
func (e *BaseEntity) Touch() {
	e.updatedAt = Now()
}

// SetID replaces the identity. Only used when a copy must live alongside its source.
func (e *BaseEntity) SetID(id string) {
	e.id = id
}

// Equals checks if two entities have the same identity.
func (e BaseEntity) Equals(other Entity) bool {
	if other == nil {
		return false
	}
	return e.id == other.ID()
}

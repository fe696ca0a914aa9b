package domain_test

import (
	"testing"
	"time"

	"github.com/Owl23007/synapse-android-sub000/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBaseEntity(t *testing.T) {
	before := time.Now().UTC().Truncate(time.Millisecond)
	entity := domain.NewBaseEntity()
	after := time.Now().UTC()

	_, err := uuid.Parse(entity.ID())
	require.NoError(t, err)
	require.False(t, entity.CreatedAt().Before(before))
	require.False(t, entity.CreatedAt().After(after))
	assert.Equal(t, entity.CreatedAt(), entity.UpdatedAt())
}

func TestNewBaseEntityWithID_KeepsForeignID(t *testing.T) {
	entity := domain.NewBaseEntityWithID("20240101T000000Z-123@example.com")

	assert.Equal(t, "20240101T000000Z-123@example.com", entity.ID())
}

func TestBaseEntity_Touch(t *testing.T) {
	entity := domain.NewBaseEntity()
	originalUpdatedAt := entity.UpdatedAt()

	time.Sleep(2 * time.Millisecond)
	entity.Touch()

	assert.True(t, entity.UpdatedAt().After(originalUpdatedAt))
}

func TestRehydrateBaseEntity_TruncatesToMillis(t *testing.T) {
	created := time.Date(2024, 3, 1, 9, 30, 0, 123456789, time.FixedZone("X", 3600))

	entity := domain.RehydrateBaseEntity("abc", created, created)

	assert.Equal(t, time.UTC, entity.CreatedAt().Location())
	assert.Equal(t, 123000000, entity.CreatedAt().Nanosecond())
}

func TestBaseEntity_Equals(t *testing.T) {
	a := domain.NewBaseEntityWithID("same")
	b := domain.NewBaseEntityWithID("same")
	c := domain.NewBaseEntity()

	assert.True(t, a.Equals(b))
	assert.False(t, a.Equals(c))
	assert.False(t, a.Equals(nil))
}

package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/schoollib/library/internal/entities"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&entities.AuditEvent{})
	require.NoError(t, err)

	return db
}

func TestRepository_LogEvent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	event := &entities.AuditEvent{
		ActorID:     1,
		ActorRole:   entities.RoleLibrarian,
		EventType:   entities.AuditEventBorrow,
		Action:      "book_borrow",
		Description: "Borrowed Dune",
		Status:      entities.AuditStatusSuccess,
	}

	err := repo.LogEvent(event)
	require.NoError(t, err)
	assert.NotZero(t, event.ID)
	assert.False(t, event.CreatedAt.IsZero())
}

func TestRepository_GetEvents(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	for i := 0; i < 15; i++ {
		require.NoError(t, repo.LogEvent(&entities.AuditEvent{
			ActorID:   1,
			EventType: entities.AuditEventBorrow,
			Action:    "book_borrow",
			Status:    entities.AuditStatusSuccess,
			CreatedAt: time.Now().UTC().Add(time.Duration(-i) * time.Hour),
		}))
	}
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.LogEvent(&entities.AuditEvent{
			ActorID:   2,
			EventType: entities.AuditEventAttendance,
			Action:    "attendance_scan",
			Status:    entities.AuditStatusSuccess,
		}))
	}

	t.Run("get all events", func(t *testing.T) {
		events, total, err := repo.GetEvents(Query{})
		require.NoError(t, err)
		assert.Equal(t, int64(20), total)
		assert.Len(t, events, 20)
	})

	t.Run("get actor events", func(t *testing.T) {
		events, total, err := repo.GetEvents(Query{ActorID: 1})
		require.NoError(t, err)
		assert.Equal(t, int64(15), total)
		assert.Len(t, events, 15)
	})

	t.Run("filter by type", func(t *testing.T) {
		events, total, err := repo.GetEvents(Query{EventType: entities.AuditEventAttendance})
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
		for _, e := range events {
			assert.Equal(t, entities.AuditEventAttendance, e.EventType)
		}
	})

	t.Run("pagination", func(t *testing.T) {
		events, total, err := repo.GetEvents(Query{ActorID: 1, Limit: 5})
		require.NoError(t, err)
		assert.Equal(t, int64(15), total)
		assert.Len(t, events, 5)

		events2, _, err := repo.GetEvents(Query{ActorID: 1, Limit: 5, Offset: 5})
		require.NoError(t, err)
		assert.Len(t, events2, 5)
		assert.NotEqual(t, events[0].ID, events2[0].ID)
	})

	t.Run("order by created_at desc", func(t *testing.T) {
		events, _, err := repo.GetEvents(Query{ActorID: 1, Limit: 10})
		require.NoError(t, err)
		for i := 1; i < len(events); i++ {
			assert.False(t, events[i-1].CreatedAt.Before(events[i].CreatedAt))
		}
	})
}

func TestRepository_DeleteOldEvents(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	now := time.Now().UTC()

	require.NoError(t, repo.LogEvent(&entities.AuditEvent{
		EventType: entities.AuditEventAuth, Action: "old", Status: entities.AuditStatusSuccess,
		CreatedAt: now.Add(-100 * 24 * time.Hour),
	}))
	require.NoError(t, repo.LogEvent(&entities.AuditEvent{
		EventType: entities.AuditEventAuth, Action: "recent", Status: entities.AuditStatusSuccess,
		CreatedAt: now.Add(-time.Hour),
	}))

	deleted, err := repo.DeleteOldEvents(now.Add(-90 * 24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	events, total, err := repo.GetEvents(Query{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "recent", events[0].Action)
}

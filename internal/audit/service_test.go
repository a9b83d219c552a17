package audit

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	auditRepo "github.com/schoollib/library/internal/database/audit"
	"github.com/schoollib/library/internal/database/dbtest"
	"github.com/schoollib/library/internal/entities"
)

func setupTestService(t *testing.T) (*Service, *gorm.DB) {
	db := dbtest.New(t)
	return NewService(auditRepo.NewRepository(db)), db
}

func TestService_Log(t *testing.T) {
	svc, db := setupTestService(t)

	event := &entities.AuditEvent{
		EventType: entities.AuditEventCatalog,
		Action:    "book_create",
		Status:    entities.AuditStatusSuccess,
	}
	require.NoError(t, svc.Log(event))

	var saved entities.AuditEvent
	require.NoError(t, db.First(&saved, event.ID).Error)
	assert.Equal(t, "book_create", saved.Action)
}

func TestService_LogBorrow(t *testing.T) {
	svc, db := setupTestService(t)
	now := time.Now().UTC()

	rec := &entities.BorrowRecord{
		ID: 7, PersonID: 3, PersonType: entities.PersonStudent, BookID: 11,
		BorrowDate: now, DueDate: now.AddDate(0, 0, 14), Status: entities.BorrowOpen,
	}

	t.Run("self service", func(t *testing.T) {
		svc.LogBorrow(entities.Actor{ID: 3, Role: entities.RoleStudent}, rec, "Dune", false)
		svc.Wait()

		var event entities.AuditEvent
		require.NoError(t, db.Where("action = ?", "book_borrow").First(&event).Error)
		assert.Equal(t, entities.AuditEventBorrow, event.EventType)
		assert.Equal(t, entities.RoleStudent, event.ActorRole)
		require.NotNil(t, event.EntityID)
		assert.Equal(t, uint(7), *event.EntityID)
		assert.Contains(t, event.Description, "Dune")
		assert.Contains(t, event.Metadata, "due_date")
	})

	t.Run("on behalf", func(t *testing.T) {
		svc.LogBorrow(entities.Actor{ID: 1, Role: entities.RoleLibrarian}, rec, "Dune", true)
		svc.Wait()

		var event entities.AuditEvent
		require.NoError(t, db.Where("action = ?", "book_borrow_on_behalf").First(&event).Error)
		assert.Equal(t, uint(1), event.ActorID)
	})
}

func TestService_LogMaintenance(t *testing.T) {
	svc, db := setupTestService(t)

	svc.LogMaintenance("overdue_sweep", "3 overdue loans", nil)
	svc.LogMaintenance("cleanup_audit_events", "cleanup failed", errors.New("database is locked"))
	svc.Wait()

	var failed entities.AuditEvent
	require.NoError(t, db.Where("action = ?", "cleanup_audit_events").First(&failed).Error)
	assert.Equal(t, entities.AuditStatusFailed, failed.Status)
	assert.Contains(t, failed.ErrorMsg, "database is locked")

	var ok entities.AuditEvent
	require.NoError(t, db.Where("action = ?", "overdue_sweep").First(&ok).Error)
	assert.Equal(t, entities.AuditStatusSuccess, ok.Status)
}

func TestService_LogAuth(t *testing.T) {
	svc, db := setupTestService(t)

	svc.LogAuth(entities.Actor{ID: 2, Role: entities.RoleAdmin}, "login_failed", "10.0.0.1", "curl/8", false)
	svc.Wait()

	var event entities.AuditEvent
	require.NoError(t, db.Where("action = ?", "login_failed").First(&event).Error)
	assert.Equal(t, entities.AuditStatusFailed, event.Status)
	assert.Equal(t, "10.0.0.1", event.IPAddress)
}

func TestService_DeleteOldEvents(t *testing.T) {
	svc, _ := setupTestService(t)

	require.NoError(t, svc.Log(&entities.AuditEvent{
		EventType: entities.AuditEventAuth, Action: "old", Status: entities.AuditStatusSuccess,
		CreatedAt: time.Now().UTC().Add(-48 * time.Hour),
	}))
	require.NoError(t, svc.Log(&entities.AuditEvent{
		EventType: entities.AuditEventAuth, Action: "new", Status: entities.AuditStatusSuccess,
	}))

	deleted, err := svc.DeleteOldEvents(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestService_NilIsNoop(t *testing.T) {
	var svc *Service
	assert.NotPanics(t, func() {
		svc.LogReturn(entities.Actor{}, &entities.BorrowRecord{})
		svc.Wait()
		assert.NoError(t, svc.Log(&entities.AuditEvent{}))
	})
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}

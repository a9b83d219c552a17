package audit

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/schoollib/library/internal/database/audit"
	"github.com/schoollib/library/internal/entities"
)

// Service provides high-level audit logging functionality.
// A nil *Service discards everything, so callers can treat auditing as optional.
type Service struct {
	repo    *audit.Repository
	pending sync.WaitGroup
}

// NewService creates a new audit service.
func NewService(repo *audit.Repository) *Service {
	return &Service{repo: repo}
}

// Log records a generic audit event.
func (s *Service) Log(event *entities.AuditEvent) error {
	if s == nil {
		return nil
	}
	return s.repo.LogEvent(event)
}

// LogAsync records an audit event in the background (non-blocking).
func (s *Service) LogAsync(event *entities.AuditEvent) {
	if s == nil {
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.repo.LogEvent(event); err != nil {
			log.Printf("Failed to log audit event: %v", err)
		}
	}()
}

// Wait blocks until all background writes have finished.
func (s *Service) Wait() {
	if s == nil {
		return
	}
	s.pending.Wait()
}

func newEvent(actor entities.Actor, eventType entities.AuditEventType, action, description string) *entities.AuditEvent {
	return &entities.AuditEvent{
		ActorID:     actor.ID,
		ActorRole:   actor.Role,
		EventType:   eventType,
		Action:      action,
		Description: truncate(description, 500),
		Status:      entities.AuditStatusSuccess,
	}
}

// LogBorrow records a completed borrow.
func (s *Service) LogBorrow(actor entities.Actor, rec *entities.BorrowRecord, bookName string, onBehalf bool) {
	action := "book_borrow"
	if onBehalf {
		action = "book_borrow_on_behalf"
	}
	event := newEvent(actor, entities.AuditEventBorrow, action,
		fmt.Sprintf("%s %d borrowed %q", rec.PersonType, rec.PersonID, bookName))
	event.EntityType = "borrow_record"
	event.EntityID = &rec.ID
	event.Metadata = metadata(map[string]any{
		"book_id":  rec.BookID,
		"due_date": rec.DueDate.Format(time.RFC3339),
	})
	s.LogAsync(event)
}

// LogReturn records a completed return.
func (s *Service) LogReturn(actor entities.Actor, rec *entities.BorrowRecord) {
	event := newEvent(actor, entities.AuditEventReturn, "book_return",
		fmt.Sprintf("borrow %d returned for %s %d", rec.ID, rec.PersonType, rec.PersonID))
	event.EntityType = "borrow_record"
	event.EntityID = &rec.ID
	s.LogAsync(event)
}

// LogAttendance records a check-in or check-out.
func (s *Service) LogAttendance(actor entities.Actor, rec *entities.AttendanceRecord, via string) {
	event := newEvent(actor, entities.AuditEventAttendance, "attendance_"+via,
		fmt.Sprintf("%s %d: %s", rec.PersonType, rec.PersonID, rec.Type.Label()))
	event.EntityType = "attendance_record"
	event.EntityID = &rec.ID
	s.LogAsync(event)
}

// LogCatalog records a change to the book catalogue.
func (s *Service) LogCatalog(actor entities.Actor, action string, bookID uint, description string) {
	event := newEvent(actor, entities.AuditEventCatalog, action, description)
	event.EntityType = "book"
	event.EntityID = &bookID
	s.LogAsync(event)
}

// LogPeople records a change to a student, teacher or staff account.
func (s *Service) LogPeople(actor entities.Actor, action, entityType string, entityID uint, description string) {
	event := newEvent(actor, entities.AuditEventPeople, action, description)
	event.EntityType = entityType
	event.EntityID = &entityID
	s.LogAsync(event)
}

// LogAuth records an authentication event.
func (s *Service) LogAuth(actor entities.Actor, action string, ipAddr, userAgent string, success bool) {
	event := newEvent(actor, entities.AuditEventAuth, action, "")
	event.IPAddress = ipAddr
	event.UserAgent = truncate(userAgent, 500)
	if !success {
		event.Status = entities.AuditStatusFailed
	}
	s.LogAsync(event)
}

// LogMaintenance records the outcome of a background maintenance task.
func (s *Service) LogMaintenance(action, description string, err error) {
	event := newEvent(entities.Actor{}, entities.AuditEventMaintenance, action, description)
	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(err.Error(), 500)
	}
	s.LogAsync(event)
}

// GetEvents retrieves paginated audit events.
func (s *Service) GetEvents(q audit.Query) ([]entities.AuditEvent, int64, error) {
	return s.repo.GetEvents(q)
}

// DeleteOldEvents removes events older than the specified duration.
func (s *Service) DeleteOldEvents(retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)
	return s.repo.DeleteOldEvents(cutoff)
}

func metadata(m map[string]any) string {
	b, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(b)
}

// truncate shortens a string to max length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// Package events publishes domain events (loans, returns, attendance) to
// downstream consumers. Publishing happens after the originating transaction
// commits; a failed publish is logged and never undoes the operation.
package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
)

const (
	TypeLoanBorrowed       = "loan.borrowed"
	TypeLoanReturned       = "loan.returned"
	TypeLoanOverdue        = "loan.overdue"
	TypeAttendanceRecorded = "attendance.recorded"
)

type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// New stamps a payload with a fresh id and the current time.
func New(eventType string, payload any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// LogPublisher writes events to the process log.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, e Event) error {
	body, err := json.Marshal(e.Payload)
	if err != nil {
		return err
	}
	log.Printf("[EVENT] %s %s %s", e.Type, e.ID, body)
	return nil
}

func (LogPublisher) Close() error { return nil }

// Emit publishes e and logs failures. A nil publisher drops the event.
func Emit(ctx context.Context, p Publisher, e Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, e); err != nil {
		log.Printf("[EVENT] failed to publish %s %s: %v", e.Type, e.ID, err)
	}
}

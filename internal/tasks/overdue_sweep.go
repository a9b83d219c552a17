package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/schoollib/library/internal/database/borrows"
	"github.com/schoollib/library/internal/events"
)

const QueueOverdueSweep = "overdue_sweep"

// OverdueLister returns the loans that are past due right now.
type OverdueLister interface {
	ListOverdue(ctx context.Context) ([]borrows.LoanView, error)
}

// OverdueSweepTask announces every overdue loan as a loan.overdue event so
// downstream consumers can send reminders.
type OverdueSweepTask struct {
	RequestedBy uint `json:"requested_by,omitempty"`
}

func (t OverdueSweepTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        QueueOverdueSweep,
		MaxAttempts: 2,
		Backoff:     time.Minute,
		Timeout:     5 * time.Minute,
		Retention: &backlite.Retention{
			Duration: 7 * 24 * time.Hour,
			Data:     &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// SweepOverdue publishes one event per overdue loan and returns how many
// were found.
func SweepOverdue(ctx context.Context, lister OverdueLister, publisher events.Publisher) (int, error) {
	loans, err := lister.ListOverdue(ctx)
	if err != nil {
		return 0, fmt.Errorf("list overdue loans: %w", err)
	}
	for _, loan := range loans {
		events.Emit(ctx, publisher, events.New(events.TypeLoanOverdue, map[string]any{
			"borrow_id":      loan.ID,
			"book_id":        loan.BookID,
			"book_name":      loan.BookName,
			"person_id":      loan.PersonID,
			"person_type":    loan.PersonType,
			"person_name":    loan.PersonName,
			"person_barcode": loan.PersonBarcode,
			"due_date":       loan.DueDate,
			"days_overdue":   loan.DaysOverdue,
		}))
	}
	return len(loans), nil
}

func OverdueSweepProcessor(lister OverdueLister, publisher events.Publisher, logger MaintenanceLogger) backlite.QueueProcessor[OverdueSweepTask] {
	return func(ctx context.Context, task OverdueSweepTask) error {
		if lister == nil {
			return fmt.Errorf("overdue lister not configured")
		}

		n, err := SweepOverdue(ctx, lister, publisher)
		if err != nil {
			logMaintenance(logger, QueueOverdueSweep, "overdue sweep failed", err)
			return err
		}

		msg := fmt.Sprintf("%d overdue loans announced", n)
		log.Printf("[tasks] %s", msg)
		logMaintenance(logger, QueueOverdueSweep, msg, nil)
		return nil
	}
}

func NewOverdueSweepQueue(lister OverdueLister, publisher events.Publisher, logger MaintenanceLogger) backlite.Queue {
	return backlite.NewQueue(OverdueSweepProcessor(lister, publisher, logger))
}

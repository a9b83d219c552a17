package entities

import (
	"math"
	"time"
)

type BorrowStatus string

const (
	BorrowOpen     BorrowStatus = "Borrowed"
	BorrowReturned BorrowStatus = "Returned"
)

type BorrowRecord struct {
	ID         uint         `gorm:"primaryKey" json:"id"`
	PersonID   uint         `gorm:"index:idx_borrow_person;not null" json:"person_id"`
	PersonType PersonType   `gorm:"index:idx_borrow_person;size:20;not null" json:"person_type"`
	BookID     uint         `gorm:"index;not null" json:"book_id"`
	BorrowDate time.Time    `json:"borrow_date"`
	DueDate    time.Time    `gorm:"index" json:"due_date"`
	ReturnDate *time.Time   `json:"return_date,omitempty"`
	Status     BorrowStatus `gorm:"index;size:20;not null" json:"status"`
}

func (BorrowRecord) TableName() string {
	return "borrow_records"
}

func (r BorrowRecord) Borrower() PersonRef {
	return PersonRef{ID: r.PersonID, Type: r.PersonType}
}

func (r BorrowRecord) IsOpen() bool {
	return r.Status == BorrowOpen
}

// IsOverdue reports whether the record is open and past its due date.
func (r BorrowRecord) IsOverdue(now time.Time) bool {
	return r.IsOpen() && r.DueDate.Before(now)
}

// DaysOverdue returns ceil((now - due) / 24h), or 0 when not overdue.
func DaysOverdue(due, now time.Time) int {
	if !due.Before(now) {
		return 0
	}
	return int(math.Ceil(now.Sub(due).Hours() / 24))
}

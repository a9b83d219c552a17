// Package borrows provides database operations for borrow records.
//
// Records are never deleted. The only mutation after insert is the
// Borrowed -> Returned transition performed by MarkReturned.
package borrows

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/schoollib/library/internal/entities"
)

// LoanView is a borrow record joined with its book and borrower.
type LoanView struct {
	entities.BorrowRecord
	BookName      string `json:"book_name"`
	BookBarcode   string `json:"book_barcode"`
	BookAuthor    string `json:"book_author,omitempty"`
	PersonName    string `json:"person_name"`
	PersonBarcode string `json:"person_barcode"`
	DaysOverdue   int    `gorm:"-" json:"days_overdue,omitempty"`
}

// LogFilter narrows the administrative borrow log.
type LogFilter struct {
	Status     entities.BorrowStatus
	PersonType entities.PersonType
	Limit      int
}

const viewColumns = "br.id, br.person_id, br.person_type, br.book_id, br.borrow_date, br.due_date, br.return_date, br.status, " +
	"COALESCE(b.name, '') AS book_name, COALESCE(b.barcode, '') AS book_barcode, COALESCE(b.author, '') AS book_author, " +
	"COALESCE(s.name, t.name, '') AS person_name, COALESCE(s.barcode, t.barcode, '') AS person_barcode"

// Repository handles all borrow record database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new borrows repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, rec *entities.BorrowRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *Repository) GetByID(ctx context.Context, id uint) (*entities.BorrowRecord, error) {
	var rec entities.BorrowRecord
	if err := r.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindOpen returns the open record for (person, book), if any.
func (r *Repository) FindOpen(ctx context.Context, person entities.PersonRef, bookID uint) (*entities.BorrowRecord, error) {
	var rec entities.BorrowRecord
	err := r.db.WithContext(ctx).
		Where("person_id = ? AND person_type = ? AND book_id = ? AND status = ?",
			person.ID, person.Type, bookID, entities.BorrowOpen).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// MarkReturned closes an open record. It reports false when the record was
// not open at the time of the update.
func (r *Repository) MarkReturned(ctx context.Context, id uint, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&entities.BorrowRecord{}).
		Where("id = ? AND status = ?", id, entities.BorrowOpen).
		Updates(map[string]any{
			"status":      entities.BorrowReturned,
			"return_date": at,
		})
	return result.RowsAffected == 1, result.Error
}

// CountOpenForBook returns the number of open records referencing a book.
func (r *Repository) CountOpenForBook(ctx context.Context, bookID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entities.BorrowRecord{}).
		Where("book_id = ? AND status = ?", bookID, entities.BorrowOpen).
		Count(&n).Error
	return n, err
}

// CountOpenForPerson returns the number of open records held by person.
func (r *Repository) CountOpenForPerson(ctx context.Context, person entities.PersonRef) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entities.BorrowRecord{}).
		Where("person_id = ? AND person_type = ? AND status = ?", person.ID, person.Type, entities.BorrowOpen).
		Count(&n).Error
	return n, err
}

func (r *Repository) views(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Table("borrow_records AS br").
		Select(viewColumns).
		Joins("LEFT JOIN books b ON b.id = br.book_id").
		Joins("LEFT JOIN students s ON br.person_type = ? AND s.id = br.person_id", entities.PersonStudent).
		Joins("LEFT JOIN teachers t ON br.person_type = ? AND t.id = br.person_id", entities.PersonTeacher)
}

// Active returns a person's open loans, soonest due first.
func (r *Repository) Active(ctx context.Context, person entities.PersonRef) ([]LoanView, error) {
	var out []LoanView
	err := r.views(ctx).
		Where("br.person_id = ? AND br.person_type = ? AND br.status = ?", person.ID, person.Type, entities.BorrowOpen).
		Order("br.due_date ASC").
		Scan(&out).Error
	return out, err
}

// History returns a person's records, newest first.
func (r *Repository) History(ctx context.Context, person entities.PersonRef, limit int) ([]LoanView, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []LoanView
	err := r.views(ctx).
		Where("br.person_id = ? AND br.person_type = ?", person.ID, person.Type).
		Order("br.borrow_date DESC, br.id DESC").
		Limit(limit).
		Scan(&out).Error
	return out, err
}

// Logs returns all records matching f, newest first.
func (r *Repository) Logs(ctx context.Context, f LogFilter) ([]LoanView, error) {
	q := r.views(ctx)
	if f.Status != "" {
		q = q.Where("br.status = ?", f.Status)
	}
	if f.PersonType != "" {
		q = q.Where("br.person_type = ?", f.PersonType)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var out []LoanView
	err := q.Order("br.borrow_date DESC, br.id DESC").Scan(&out).Error
	return out, err
}

// Overdue returns open records due strictly before now, oldest due first.
func (r *Repository) Overdue(ctx context.Context, now time.Time) ([]LoanView, error) {
	var out []LoanView
	err := r.views(ctx).
		Where("br.status = ? AND br.due_date < ?", entities.BorrowOpen, now).
		Order("br.due_date ASC, br.id ASC").
		Scan(&out).Error
	return out, err
}

// CountOpen returns the number of open records and how many of them are overdue at now.
func (r *Repository) CountOpen(ctx context.Context, now time.Time) (open, overdue int64, err error) {
	base := r.db.WithContext(ctx).Model(&entities.BorrowRecord{}).
		Where("status = ?", entities.BorrowOpen).
		Session(&gorm.Session{})
	if err = base.Count(&open).Error; err != nil {
		return 0, 0, err
	}
	err = base.Where("due_date < ?", now).Count(&overdue).Error
	return open, overdue, err
}

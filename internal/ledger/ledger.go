// Package ledger keeps book stock consistent across borrows and returns.
//
// Every mutating operation runs in a single transaction. Stock counters move
// only through conditional updates (see database/books), and the store holds
// a partial unique index allowing one open borrow per person and book, so
// concurrent borrows of the last copy, or duplicate borrows by the same
// person, cannot both commit.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/schoollib/library/internal/apperr"
	"github.com/schoollib/library/internal/audit"
	"github.com/schoollib/library/internal/config"
	"github.com/schoollib/library/internal/database/books"
	"github.com/schoollib/library/internal/database/borrows"
	"github.com/schoollib/library/internal/database/people"
	"github.com/schoollib/library/internal/entities"
	"github.com/schoollib/library/internal/events"
)

var (
	ErrBookNotFound    = apperr.New(apperr.ErrNotFound, "book not found")
	ErrPersonNotFound  = apperr.New(apperr.ErrNotFound, "user not found")
	ErrBorrowNotFound  = apperr.New(apperr.ErrNotFound, "borrow record not found")
	ErrNotAvailable    = apperr.New(apperr.ErrConflict, "book is not available")
	ErrAlreadyBorrowed = apperr.New(apperr.ErrConflict, "book already borrowed by this user")
	ErrAlreadyReturned = apperr.New(apperr.ErrConflict, "book already returned")
	ErrBookOnLoan      = apperr.New(apperr.ErrConflict, "cannot delete book with active borrows")
	ErrNotBorrower     = apperr.New(apperr.ErrUnauthorized, "not authorized to return this book")
)

// Loan is the result of a successful borrow.
type Loan struct {
	BorrowID uint            `json:"borrow_id"`
	DueDate  time.Time       `json:"due_date"`
	Book     entities.Book   `json:"book"`
	Borrower entities.Person `json:"borrower"`
}

// Borrower selects the person for a staffed borrow: a scanned barcode
// (students are tried before teachers) or an explicit student or teacher id.
type Borrower struct {
	Barcode   string
	StudentID uint
	TeacherID uint
}

type Ledger struct {
	db        *gorm.DB
	now       func() time.Time
	loanDays  int
	audit     *audit.Service
	publisher events.Publisher
}

type Option func(*Ledger)

// WithClock replaces time.Now. Times are always stored in UTC.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithLoanDays overrides the loan period.
func WithLoanDays(days int) Option {
	return func(l *Ledger) {
		if days > 0 {
			l.loanDays = days
		}
	}
}

func WithAudit(svc *audit.Service) Option {
	return func(l *Ledger) { l.audit = svc }
}

func WithPublisher(p events.Publisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

// New creates a ledger over db.
func New(db *gorm.DB, opts ...Option) *Ledger {
	l := &Ledger{
		db:       db,
		now:      time.Now,
		loanDays: config.DefaultLoanDays,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) clock() time.Time {
	return l.now().UTC()
}

// Borrow lends one copy of a book to a student or teacher.
func (l *Ledger) Borrow(ctx context.Context, person entities.PersonRef, bookID uint) (*Loan, error) {
	if !person.Type.Valid() {
		return nil, apperr.Validation("only students and teachers can borrow books")
	}
	loan, rec, err := l.borrow(ctx, func(tx *gorm.DB) (*entities.Person, *entities.Book, error) {
		p, err := people.NewRepository(tx).Find(ctx, person)
		if err != nil {
			return nil, nil, notFound(err, ErrPersonNotFound, "load borrower")
		}
		b, err := books.NewRepository(tx).GetByID(ctx, bookID)
		if err != nil {
			return nil, nil, notFound(err, ErrBookNotFound, "load book")
		}
		return p, b, nil
	})
	if err != nil {
		return nil, err
	}

	l.audit.LogBorrow(entities.ActorFor(person), rec, loan.Book.Name, false)
	return loan, nil
}

// BorrowOnBehalf lends a book, identified by barcode, to the selected person.
// It is the staffed counterpart of Borrow.
func (l *Ledger) BorrowOnBehalf(ctx context.Context, actor entities.Actor, bookBarcode string, who Borrower) (*Loan, error) {
	bookBarcode = strings.TrimSpace(bookBarcode)
	who.Barcode = strings.TrimSpace(who.Barcode)
	if bookBarcode == "" {
		return nil, apperr.Validation("book barcode is required")
	}
	if who.Barcode == "" && who.StudentID == 0 && who.TeacherID == 0 {
		return nil, apperr.Validation("user barcode, student id or teacher id is required")
	}

	loan, rec, err := l.borrow(ctx, func(tx *gorm.DB) (*entities.Person, *entities.Book, error) {
		b, err := books.NewRepository(tx).GetByBarcode(ctx, bookBarcode)
		if err != nil {
			return nil, nil, notFound(err, ErrBookNotFound, "load book")
		}
		p, err := resolveBorrower(ctx, people.NewRepository(tx), who)
		if err != nil {
			return nil, nil, notFound(err, ErrPersonNotFound, "resolve borrower")
		}
		return p, b, nil
	})
	if err != nil {
		return nil, err
	}

	l.audit.LogBorrow(actor, rec, loan.Book.Name, true)
	return loan, nil
}

func resolveBorrower(ctx context.Context, repo *people.Repository, who Borrower) (*entities.Person, error) {
	switch {
	case who.Barcode != "":
		return repo.FindByBarcode(ctx, who.Barcode)
	case who.StudentID != 0:
		return repo.Find(ctx, entities.PersonRef{ID: who.StudentID, Type: entities.PersonStudent})
	default:
		return repo.Find(ctx, entities.PersonRef{ID: who.TeacherID, Type: entities.PersonTeacher})
	}
}

type resolveFunc func(tx *gorm.DB) (*entities.Person, *entities.Book, error)

func (l *Ledger) borrow(ctx context.Context, resolve resolveFunc) (*Loan, *entities.BorrowRecord, error) {
	var (
		loan Loan
		rec  entities.BorrowRecord
	)

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		person, book, err := resolve(tx)
		if err != nil {
			return err
		}
		if book.AvailableQty <= 0 {
			return ErrNotAvailable
		}

		borrowRepo := borrows.NewRepository(tx)
		if _, err := borrowRepo.FindOpen(ctx, person.PersonRef, book.ID); err == nil {
			return ErrAlreadyBorrowed
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("check open borrow: %w", err)
		}

		now := l.clock()
		rec = entities.BorrowRecord{
			PersonID:   person.ID,
			PersonType: person.Type,
			BookID:     book.ID,
			BorrowDate: now,
			DueDate:    now.AddDate(0, 0, l.loanDays),
			Status:     entities.BorrowOpen,
		}
		if err := borrowRepo.Create(ctx, &rec); err != nil {
			if apperr.IsDuplicateKey(err) {
				return ErrAlreadyBorrowed
			}
			return fmt.Errorf("create borrow record: %w", err)
		}

		taken, err := books.NewRepository(tx).TakeCopy(ctx, book.ID)
		if err != nil {
			return fmt.Errorf("update book stock: %w", err)
		}
		if !taken {
			return ErrNotAvailable
		}

		book.BorrowedCount++
		book.Recompute()
		loan = Loan{BorrowID: rec.ID, DueDate: rec.DueDate, Book: *book, Borrower: *person}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	events.Emit(ctx, l.publisher, events.New(events.TypeLoanBorrowed, map[string]any{
		"borrow_id":   rec.ID,
		"book_id":     rec.BookID,
		"person_id":   rec.PersonID,
		"person_type": rec.PersonType,
		"due_date":    rec.DueDate,
		"available":   loan.Book.AvailableQty,
	}))
	return &loan, &rec, nil
}

// Return closes an open borrow and puts the copy back in stock. Only the
// borrower or a privileged actor may return a record.
func (l *Ledger) Return(ctx context.Context, borrowID uint, actor entities.Actor) error {
	var rec *entities.BorrowRecord

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		borrowRepo := borrows.NewRepository(tx)

		var err error
		rec, err = borrowRepo.GetByID(ctx, borrowID)
		if err != nil {
			return notFound(err, ErrBorrowNotFound, "load borrow record")
		}

		if !actor.Role.Privileged() {
			self, ok := actor.PersonRef()
			if !ok || self != rec.Borrower() {
				return ErrNotBorrower
			}
		}

		if !rec.IsOpen() {
			return ErrAlreadyReturned
		}

		now := l.clock()
		closed, err := borrowRepo.MarkReturned(ctx, rec.ID, now)
		if err != nil {
			return fmt.Errorf("mark returned: %w", err)
		}
		if !closed {
			return ErrAlreadyReturned
		}

		released, err := books.NewRepository(tx).ReleaseCopy(ctx, rec.BookID)
		if err != nil {
			return fmt.Errorf("update book stock: %w", err)
		}
		if !released {
			return fmt.Errorf("book %d has no borrowed copies for open record %d", rec.BookID, rec.ID)
		}

		rec.Status = entities.BorrowReturned
		rec.ReturnDate = &now
		return nil
	})
	if err != nil {
		return err
	}

	l.audit.LogReturn(actor, rec)
	events.Emit(ctx, l.publisher, events.New(events.TypeLoanReturned, map[string]any{
		"borrow_id":   rec.ID,
		"book_id":     rec.BookID,
		"person_id":   rec.PersonID,
		"person_type": rec.PersonType,
		"returned_at": rec.ReturnDate,
	}))
	return nil
}

// ListOverdue returns open loans due strictly before now, oldest first, each
// annotated with the number of days overdue.
func (l *Ledger) ListOverdue(ctx context.Context) ([]borrows.LoanView, error) {
	now := l.clock()
	loans, err := borrows.NewRepository(l.db).Overdue(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list overdue: %w", err)
	}
	for i := range loans {
		loans[i].DaysOverdue = entities.DaysOverdue(loans[i].DueDate, now)
	}
	return loans, nil
}

// ActiveLoans returns a person's open loans.
func (l *Ledger) ActiveLoans(ctx context.Context, person entities.PersonRef) ([]borrows.LoanView, error) {
	loans, err := borrows.NewRepository(l.db).Active(ctx, person)
	if err != nil {
		return nil, fmt.Errorf("list active loans: %w", err)
	}
	now := l.clock()
	for i := range loans {
		loans[i].DaysOverdue = entities.DaysOverdue(loans[i].DueDate, now)
	}
	return loans, nil
}

// History returns a person's most recent borrow records.
func (l *Ledger) History(ctx context.Context, person entities.PersonRef, limit int) ([]borrows.LoanView, error) {
	loans, err := borrows.NewRepository(l.db).History(ctx, person, limit)
	if err != nil {
		return nil, fmt.Errorf("list borrow history: %w", err)
	}
	return loans, nil
}

// Logs returns the borrow log for staff.
func (l *Ledger) Logs(ctx context.Context, f borrows.LogFilter) ([]borrows.LoanView, error) {
	if f.PersonType != "" && !f.PersonType.Valid() {
		return nil, apperr.Validation("invalid user type %q", f.PersonType)
	}
	if f.Status != "" && f.Status != entities.BorrowOpen && f.Status != entities.BorrowReturned {
		return nil, apperr.Validation("invalid status %q", f.Status)
	}
	loans, err := borrows.NewRepository(l.db).Logs(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list borrow logs: %w", err)
	}
	return loans, nil
}

// DeleteBook permanently removes a book that has no open borrows.
func (l *Ledger) DeleteBook(ctx context.Context, actor entities.Actor, bookID uint) error {
	var name string
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Row lock on drivers that support it; sqlite serializes via BEGIN IMMEDIATE.
		var book entities.Book
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&book, bookID).Error; err != nil {
			return notFound(err, ErrBookNotFound, "load book")
		}
		name = book.Name

		open, err := borrows.NewRepository(tx).CountOpenForBook(ctx, bookID)
		if err != nil {
			return fmt.Errorf("count open borrows: %w", err)
		}
		if open > 0 {
			return ErrBookOnLoan
		}

		if _, err := books.NewRepository(tx).Delete(ctx, bookID); err != nil {
			return fmt.Errorf("delete book: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	l.audit.LogCatalog(actor, "book_delete", bookID, "Deleted book: "+name)
	return nil
}

func notFound(err error, sentinel error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return fmt.Errorf("%s: %w", op, err)
}

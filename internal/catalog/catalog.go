// Package catalog is the staff-facing book catalogue: search, create and
// edit titles. Stock counters are owned by the ledger; the catalogue only
// changes a title's total quantity, through a guarded update.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/schoollib/library/internal/apperr"
	"github.com/schoollib/library/internal/audit"
	"github.com/schoollib/library/internal/database/books"
	"github.com/schoollib/library/internal/entities"
	"github.com/schoollib/library/internal/ledger"
)

var (
	ErrBarcodeTaken       = apperr.New(apperr.ErrConflict, "book barcode already exists")
	ErrQuantityBelowLoans = apperr.New(apperr.ErrConflict, "quantity cannot be less than the number of borrowed copies")
)

// BookInput carries the editable fields of a title. A nil Quantity on
// update keeps the current total.
type BookInput struct {
	Barcode   string `json:"barcode"`
	Name      string `json:"name"`
	Author    string `json:"author"`
	Publisher string `json:"publisher"`
	ISBN      string `json:"isbn"`
	Year      int    `json:"year"`
	Cover     string `json:"cover"`
	Quantity  *int   `json:"quantity"`
}

func (in *BookInput) normalize() {
	in.Barcode = strings.TrimSpace(in.Barcode)
	in.Name = strings.TrimSpace(in.Name)
	in.Author = strings.TrimSpace(in.Author)
	in.Publisher = strings.TrimSpace(in.Publisher)
	in.ISBN = strings.TrimSpace(in.ISBN)
}

func (in BookInput) validate() error {
	if in.Barcode == "" {
		return apperr.Validation("barcode is required")
	}
	if in.Name == "" {
		return apperr.Validation("name is required")
	}
	if in.Quantity != nil && *in.Quantity < 0 {
		return apperr.Validation("quantity must not be negative")
	}
	if in.Year < 0 {
		return apperr.Validation("year must not be negative")
	}
	return nil
}

type Catalog struct {
	db     *gorm.DB
	ledger *ledger.Ledger
	audit  *audit.Service
}

func New(db *gorm.DB, l *ledger.Ledger, auditSvc *audit.Service) *Catalog {
	return &Catalog{db: db, ledger: l, audit: auditSvc}
}

func (c *Catalog) List(ctx context.Context, f books.Filter) ([]entities.Book, error) {
	if f.Status != "" && f.Status != entities.BookAvailable && f.Status != entities.BookUnavailable {
		return nil, apperr.Validation("invalid status %q", f.Status)
	}
	out, err := books.NewRepository(c.db).List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return out, nil
}

func (c *Catalog) Get(ctx context.Context, id uint) (*entities.Book, error) {
	b, err := books.NewRepository(c.db).GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return b, nil
}

func (c *Catalog) GetByBarcode(ctx context.Context, barcode string) (*entities.Book, error) {
	b, err := books.NewRepository(c.db).GetByBarcode(ctx, strings.TrimSpace(barcode))
	if err != nil {
		return nil, notFound(err)
	}
	return b, nil
}

// Create adds a title with all copies available. Quantity defaults to 1.
func (c *Catalog) Create(ctx context.Context, actor entities.Actor, in BookInput) (*entities.Book, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}
	qty := 1
	if in.Quantity != nil {
		qty = *in.Quantity
	}

	book := &entities.Book{
		Barcode:   in.Barcode,
		Name:      in.Name,
		Author:    in.Author,
		Publisher: in.Publisher,
		ISBN:      in.ISBN,
		Year:      in.Year,
		Cover:     in.Cover,
		Quantity:  qty,
	}
	if err := books.NewRepository(c.db).Create(ctx, book); err != nil {
		return nil, apperr.FromDB(err, "create book", ErrBarcodeTaken)
	}

	c.audit.LogCatalog(actor, "book_create", book.ID, fmt.Sprintf("Added %q (%d copies)", book.Name, book.Quantity))
	return book, nil
}

// Update rewrites a title's metadata and, when given, its total quantity.
// The quantity may not drop below the copies currently on loan.
func (c *Catalog) Update(ctx context.Context, actor entities.Actor, id uint, in BookInput) (*entities.Book, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	var book *entities.Book
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := books.NewRepository(tx)
		current, err := repo.GetByID(ctx, id)
		if err != nil {
			return notFound(err)
		}

		current.Barcode = in.Barcode
		current.Name = in.Name
		current.Author = in.Author
		current.Publisher = in.Publisher
		current.ISBN = in.ISBN
		current.Year = in.Year
		if in.Cover != "" {
			current.Cover = in.Cover
		}
		if err := repo.UpdateMetadata(ctx, current); err != nil {
			return apperr.FromDB(err, "update book", ErrBarcodeTaken)
		}

		if in.Quantity != nil {
			ok, err := repo.SetQuantity(ctx, id, *in.Quantity)
			if err != nil {
				return fmt.Errorf("set quantity: %w", err)
			}
			if !ok {
				return ErrQuantityBelowLoans
			}
		}

		book, err = repo.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	c.audit.LogCatalog(actor, "book_update", book.ID, fmt.Sprintf("Updated %q (%d/%d available)", book.Name, book.AvailableQty, book.Quantity))
	return book, nil
}

// Delete removes a title that has no open borrows.
func (c *Catalog) Delete(ctx context.Context, actor entities.Actor, id uint) error {
	return c.ledger.DeleteBook(ctx, actor, id)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ledger.ErrBookNotFound
	}
	return fmt.Errorf("load book: %w", err)
}

// Package books provides database operations for the book catalogue.
//
// Stock counters (borrowed_count, available_qty, status) are only written
// through the guarded updates in this package so the invariant
// available_qty = quantity - borrowed_count >= 0 holds after every statement.
//
// # Usage
//
//	repo := books.NewRepository(db)
//	book, err := repo.GetByBarcode(ctx, "LIB-0001")
package books

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/schoollib/library/internal/entities"
)

// Status expressions re-derive status from the post-update available
// quantity. Expressions on the right-hand side of SET see the pre-update row.
const (
	statusAfterTake    = "CASE WHEN available_qty - 1 > 0 THEN 'Available' ELSE 'Unavailable' END"
	statusAfterRelease = "CASE WHEN available_qty + 1 > 0 THEN 'Available' ELSE 'Unavailable' END"
)

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Search string
	Status entities.BookStatus
}

// Repository handles all book database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new books repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new book with counters derived from its quantity.
func (r *Repository) Create(ctx context.Context, book *entities.Book) error {
	book.BorrowedCount = 0
	book.Recompute()
	return r.db.WithContext(ctx).Create(book).Error
}

// GetByID retrieves a book by its ID.
func (r *Repository) GetByID(ctx context.Context, id uint) (*entities.Book, error) {
	var book entities.Book
	if err := r.db.WithContext(ctx).First(&book, id).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

// GetByBarcode retrieves a book by its barcode.
func (r *Repository) GetByBarcode(ctx context.Context, barcode string) (*entities.Book, error) {
	var book entities.Book
	if err := r.db.WithContext(ctx).Where("barcode = ?", barcode).First(&book).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

// List returns books ordered by name, optionally filtered by a
// case-insensitive search over name, author, isbn and barcode.
func (r *Repository) List(ctx context.Context, f Filter) ([]entities.Book, error) {
	query := r.db.WithContext(ctx).Model(&entities.Book{})
	if s := strings.TrimSpace(f.Search); s != "" {
		pattern := "%" + strings.ToLower(s) + "%"
		query = query.Where(
			"LOWER(name) LIKE ? OR LOWER(author) LIKE ? OR LOWER(isbn) LIKE ? OR LOWER(barcode) LIKE ?",
			pattern, pattern, pattern, pattern,
		)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}

	var books []entities.Book
	err := query.Order("name ASC").Find(&books).Error
	return books, err
}

// UpdateMetadata writes descriptive fields only. Counters are untouched.
func (r *Repository) UpdateMetadata(ctx context.Context, book *entities.Book) error {
	return r.db.WithContext(ctx).Model(&entities.Book{}).Where("id = ?", book.ID).
		Select("barcode", "name", "author", "publisher", "isbn", "year", "cover").
		Updates(book).Error
}

// SetQuantity changes the total quantity and re-derives availability.
// It reports false when the new quantity is below the borrowed count.
func (r *Repository) SetQuantity(ctx context.Context, id uint, quantity int) (bool, error) {
	result := r.db.WithContext(ctx).Model(&entities.Book{}).
		Where("id = ? AND borrowed_count <= ?", id, quantity).
		Updates(map[string]any{
			"quantity":      quantity,
			"available_qty": gorm.Expr("? - borrowed_count", quantity),
			"status":        gorm.Expr("CASE WHEN ? - borrowed_count > 0 THEN 'Available' ELSE 'Unavailable' END", quantity),
		})
	return result.RowsAffected == 1, result.Error
}

// TakeCopy moves one copy from available to borrowed. It reports false when
// no copy was available at the time of the update.
func (r *Repository) TakeCopy(ctx context.Context, id uint) (bool, error) {
	result := r.db.WithContext(ctx).Model(&entities.Book{}).
		Where("id = ? AND available_qty > 0", id).
		Updates(map[string]any{
			"borrowed_count": gorm.Expr("borrowed_count + 1"),
			"available_qty":  gorm.Expr("available_qty - 1"),
			"status":         gorm.Expr(statusAfterTake),
		})
	return result.RowsAffected == 1, result.Error
}

// ReleaseCopy moves one copy from borrowed back to available. It reports
// false when the book has no borrowed copies.
func (r *Repository) ReleaseCopy(ctx context.Context, id uint) (bool, error) {
	result := r.db.WithContext(ctx).Model(&entities.Book{}).
		Where("id = ? AND borrowed_count > 0", id).
		Updates(map[string]any{
			"borrowed_count": gorm.Expr("borrowed_count - 1"),
			"available_qty":  gorm.Expr("available_qty + 1"),
			"status":         gorm.Expr(statusAfterRelease),
		})
	return result.RowsAffected == 1, result.Error
}

// Delete permanently removes a book.
func (r *Repository) Delete(ctx context.Context, id uint) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&entities.Book{}, id)
	return result.RowsAffected, result.Error
}

// Totals summarises the catalogue.
type Totals struct {
	Titles    int64 `json:"titles"`
	Copies    int64 `json:"copies"`
	Available int64 `json:"available"`
	Borrowed  int64 `json:"borrowed"`
}

// Totals returns catalogue-wide counts.
func (r *Repository) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	err := r.db.WithContext(ctx).Model(&entities.Book{}).
		Select("COUNT(*) AS titles, COALESCE(SUM(quantity), 0) AS copies, " +
			"COALESCE(SUM(available_qty), 0) AS available, COALESCE(SUM(borrowed_count), 0) AS borrowed").
		Scan(&t).Error
	return t, err
}

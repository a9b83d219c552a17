package books

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/schoollib/library/internal/apperr"
	"github.com/schoollib/library/internal/database/dbtest"
	"github.com/schoollib/library/internal/entities"
)

func setupRepo(t *testing.T) *Repository {
	return NewRepository(dbtest.New(t))
}

func createBook(t *testing.T, repo *Repository, barcode, name string, qty int) *entities.Book {
	t.Helper()
	book := &entities.Book{Barcode: barcode, Name: name, Author: "Author of " + name, Quantity: qty}
	require.NoError(t, repo.Create(context.Background(), book))
	return book
}

func TestRepository_Create(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	book := createBook(t, repo, "B-1", "Dune", 3)
	assert.NotZero(t, book.ID)
	assert.Equal(t, 3, book.AvailableQty)
	assert.Equal(t, entities.BookAvailable, book.Status)

	empty := createBook(t, repo, "B-2", "Empty Shelf", 0)
	assert.Equal(t, entities.BookUnavailable, empty.Status)

	t.Run("duplicate barcode", func(t *testing.T) {
		err := repo.Create(ctx, &entities.Book{Barcode: "B-1", Name: "Other", Quantity: 1})
		require.Error(t, err)
		assert.True(t, apperr.IsDuplicateKey(err))
	})
}

func TestRepository_GetByBarcode(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	createBook(t, repo, "B-1", "Dune", 1)

	book, err := repo.GetByBarcode(ctx, "B-1")
	require.NoError(t, err)
	assert.Equal(t, "Dune", book.Name)

	_, err = repo.GetByBarcode(ctx, "missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepository_List(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	createBook(t, repo, "B-3", "Neuromancer", 1)
	createBook(t, repo, "B-1", "Dune", 2)
	createBook(t, repo, "B-2", "Anathem", 0)

	t.Run("ordered by name", func(t *testing.T) {
		books, err := repo.List(ctx, Filter{})
		require.NoError(t, err)
		require.Len(t, books, 3)
		assert.Equal(t, "Anathem", books[0].Name)
		assert.Equal(t, "Dune", books[1].Name)
		assert.Equal(t, "Neuromancer", books[2].Name)
	})

	t.Run("case-insensitive search", func(t *testing.T) {
		books, err := repo.List(ctx, Filter{Search: "dUnE"})
		require.NoError(t, err)
		require.Len(t, books, 1)
		assert.Equal(t, "B-1", books[0].Barcode)
	})

	t.Run("search by barcode", func(t *testing.T) {
		books, err := repo.List(ctx, Filter{Search: "b-3"})
		require.NoError(t, err)
		require.Len(t, books, 1)
	})

	t.Run("status filter", func(t *testing.T) {
		books, err := repo.List(ctx, Filter{Status: entities.BookUnavailable})
		require.NoError(t, err)
		require.Len(t, books, 1)
		assert.Equal(t, "Anathem", books[0].Name)
	})
}

func TestRepository_TakeAndReleaseCopy(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	book := createBook(t, repo, "B-1", "Dune", 2)

	ok, err := repo.TakeCopy(ctx, book.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	got, _ := repo.GetByID(ctx, book.ID)
	assert.Equal(t, 1, got.AvailableQty)
	assert.Equal(t, 1, got.BorrowedCount)
	assert.Equal(t, entities.BookAvailable, got.Status)

	ok, err = repo.TakeCopy(ctx, book.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	got, _ = repo.GetByID(ctx, book.ID)
	assert.Equal(t, 0, got.AvailableQty)
	assert.Equal(t, entities.BookUnavailable, got.Status)

	t.Run("no copy left", func(t *testing.T) {
		ok, err := repo.TakeCopy(ctx, book.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	ok, err = repo.ReleaseCopy(ctx, book.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	got, _ = repo.GetByID(ctx, book.ID)
	assert.Equal(t, 1, got.AvailableQty)
	assert.Equal(t, 1, got.BorrowedCount)
	assert.Equal(t, entities.BookAvailable, got.Status)
	assert.Equal(t, got.Quantity, got.AvailableQty+got.BorrowedCount)
}

func TestRepository_ReleaseCopy_NothingBorrowed(t *testing.T) {
	repo := setupRepo(t)
	book := createBook(t, repo, "B-1", "Dune", 2)

	ok, err := repo.ReleaseCopy(context.Background(), book.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRepository_SetQuantity(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	book := createBook(t, repo, "B-1", "Dune", 3)
	_, err := repo.TakeCopy(ctx, book.ID)
	require.NoError(t, err)
	_, err = repo.TakeCopy(ctx, book.ID)
	require.NoError(t, err)

	t.Run("below borrowed count is rejected", func(t *testing.T) {
		ok, err := repo.SetQuantity(ctx, book.ID, 1)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("down to borrowed count", func(t *testing.T) {
		ok, err := repo.SetQuantity(ctx, book.ID, 2)
		require.NoError(t, err)
		assert.True(t, ok)

		got, _ := repo.GetByID(ctx, book.ID)
		assert.Equal(t, 0, got.AvailableQty)
		assert.Equal(t, entities.BookUnavailable, got.Status)
	})

	t.Run("increase restores availability", func(t *testing.T) {
		ok, err := repo.SetQuantity(ctx, book.ID, 10)
		require.NoError(t, err)
		assert.True(t, ok)

		got, _ := repo.GetByID(ctx, book.ID)
		assert.Equal(t, 8, got.AvailableQty)
		assert.Equal(t, entities.BookAvailable, got.Status)
	})
}

func TestRepository_Totals(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	a := createBook(t, repo, "B-1", "Dune", 3)
	createBook(t, repo, "B-2", "Anathem", 2)
	_, err := repo.TakeCopy(ctx, a.ID)
	require.NoError(t, err)

	totals, err := repo.Totals(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), totals.Titles)
	assert.Equal(t, int64(5), totals.Copies)
	assert.Equal(t, int64(4), totals.Available)
	assert.Equal(t, int64(1), totals.Borrowed)
}

func TestRepository_Delete(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	book := createBook(t, repo, "B-1", "Dune", 1)

	n, err := repo.Delete(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.GetByID(ctx, book.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/schoollib/library/internal/catalog"
	"github.com/schoollib/library/internal/database/books"
	"github.com/schoollib/library/internal/entities"
)

// BooksController serves the catalogue.
type BooksController struct {
	catalog *catalog.Catalog
}

func NewBooksController(c *catalog.Catalog) *BooksController {
	return &BooksController{catalog: c}
}

// List handles GET /api/books?search=&status=
func (bc *BooksController) List(c *gin.Context) {
	filter := books.Filter{Search: strings.TrimSpace(c.Query("search"))}
	switch status := entities.BookStatus(c.Query("status")); status {
	case "":
	case entities.BookAvailable, entities.BookUnavailable:
		filter.Status = status
	default:
		respondBadRequest(c, "status must be Available or Unavailable")
		return
	}

	list, err := bc.catalog.List(c.Request.Context(), filter)
	if err != nil {
		respondAppError(c, err, "list books")
		return
	}
	c.JSON(http.StatusOK, gin.H{"books": list})
}

// Get handles GET /api/books/:id
func (bc *BooksController) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	book, err := bc.catalog.Get(c.Request.Context(), id)
	if err != nil {
		respondAppError(c, err, "get book")
		return
	}
	c.JSON(http.StatusOK, gin.H{"book": book})
}

// GetByBarcode handles GET /api/books/barcode/:barcode
func (bc *BooksController) GetByBarcode(c *gin.Context) {
	book, err := bc.catalog.GetByBarcode(c.Request.Context(), c.Param("barcode"))
	if err != nil {
		respondAppError(c, err, "get book by barcode")
		return
	}
	c.JSON(http.StatusOK, gin.H{"book": book})
}

// Create handles POST /api/books
func (bc *BooksController) Create(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var in catalog.BookInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	book, err := bc.catalog.Create(c.Request.Context(), actor, in)
	if err != nil {
		respondAppError(c, err, "create book")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Book added successfully", "book": book})
}

// Update handles PUT /api/books/:id
func (bc *BooksController) Update(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var in catalog.BookInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	book, err := bc.catalog.Update(c.Request.Context(), actor, id, in)
	if err != nil {
		respondAppError(c, err, "update book")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Book updated successfully", "book": book})
}

// Delete handles DELETE /api/books/:id
func (bc *BooksController) Delete(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := bc.catalog.Delete(c.Request.Context(), actor, id); err != nil {
		respondAppError(c, err, "delete book")
		return
	}
	respondMessage(c, http.StatusOK, "Book deleted successfully")
}

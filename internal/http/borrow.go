package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/schoollib/library/internal/database/borrows"
	"github.com/schoollib/library/internal/entities"
	"github.com/schoollib/library/internal/ledger"
)

const (
	defaultLogLimit      = 100
	defaultPersonalLimit = 50
	maxLogLimit          = 1000
)

// BorrowController exposes the inventory ledger.
type BorrowController struct {
	ledger *ledger.Ledger
}

func NewBorrowController(l *ledger.Ledger) *BorrowController {
	return &BorrowController{ledger: l}
}

type borrowRequest struct {
	BookID uint `json:"bookId" binding:"required"`
}

// Borrow handles POST /api/borrow for the calling student or teacher.
func (bc *BorrowController) Borrow(c *gin.Context) {
	person, ok := currentPerson(c)
	if !ok {
		return
	}
	var req borrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "bookId is required")
		return
	}
	loan, err := bc.ledger.Borrow(c.Request.Context(), person, req.BookID)
	if err != nil {
		respondAppError(c, err, "borrow")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":  "Book borrowed successfully",
		"borrowId": loan.BorrowID,
		"dueDate":  loan.DueDate,
	})
}

type adminBorrowRequest struct {
	BookBarcode string `json:"bookBarcode"`
	UserBarcode string `json:"userBarcode"`
	StudentID   uint   `json:"studentId"`
	TeacherID   uint   `json:"teacherId"`
}

// BorrowOnBehalf handles POST /api/borrow/admin/borrow.
func (bc *BorrowController) BorrowOnBehalf(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req adminBorrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	if strings.TrimSpace(req.BookBarcode) == "" {
		respondBadRequest(c, "bookBarcode is required")
		return
	}
	who := ledger.Borrower{Barcode: req.UserBarcode, StudentID: req.StudentID, TeacherID: req.TeacherID}
	if strings.TrimSpace(who.Barcode) == "" && who.StudentID == 0 && who.TeacherID == 0 {
		respondBadRequest(c, "userBarcode, studentId or teacherId is required")
		return
	}

	loan, err := bc.ledger.BorrowOnBehalf(c.Request.Context(), actor, req.BookBarcode, who)
	if err != nil {
		respondAppError(c, err, "borrow on behalf")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":  "Book borrowed successfully",
		"borrowId": loan.BorrowID,
		"dueDate":  loan.DueDate,
		"book":     loan.Book,
		"user":     loan.Borrower,
	})
}

// Return handles POST /api/borrow/:id/return.
func (bc *BorrowController) Return(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := bc.ledger.Return(c.Request.Context(), id, actor); err != nil {
		respondAppError(c, err, "return")
		return
	}
	respondMessage(c, http.StatusOK, "Book returned successfully")
}

// Logs handles GET /api/borrow/logs?status=&userType=
func (bc *BorrowController) Logs(c *gin.Context) {
	f := borrows.LogFilter{Limit: parseLimit(c, defaultLogLimit, maxLogLimit)}
	switch s := entities.BorrowStatus(c.Query("status")); s {
	case "":
	case entities.BorrowOpen, entities.BorrowReturned:
		f.Status = s
	default:
		respondBadRequest(c, "status must be Borrowed or Returned")
		return
	}
	if t := c.Query("userType"); t != "" {
		pt := entities.PersonType(strings.ToLower(t))
		if !pt.Valid() {
			respondBadRequest(c, "userType must be student or teacher")
			return
		}
		f.PersonType = pt
	}

	logs, err := bc.ledger.Logs(c.Request.Context(), f)
	if err != nil {
		respondAppError(c, err, "borrow logs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

// MyLoans handles GET /api/borrow/my-loans.
func (bc *BorrowController) MyLoans(c *gin.Context) {
	person, ok := currentPerson(c)
	if !ok {
		return
	}
	loans, err := bc.ledger.ActiveLoans(c.Request.Context(), person)
	if err != nil {
		respondAppError(c, err, "my loans")
		return
	}
	c.JSON(http.StatusOK, gin.H{"loans": loans})
}

// MyHistory handles GET /api/borrow/my-history.
func (bc *BorrowController) MyHistory(c *gin.Context) {
	person, ok := currentPerson(c)
	if !ok {
		return
	}
	history, err := bc.ledger.History(c.Request.Context(), person, parseLimit(c, defaultPersonalLimit, maxLogLimit))
	if err != nil {
		respondAppError(c, err, "my history")
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

// Overdue handles GET /api/borrow/overdue.
func (bc *BorrowController) Overdue(c *gin.Context) {
	overdue, err := bc.ledger.ListOverdue(c.Request.Context())
	if err != nil {
		respondAppError(c, err, "overdue")
		return
	}
	c.JSON(http.StatusOK, gin.H{"overdueBooks": overdue})
}

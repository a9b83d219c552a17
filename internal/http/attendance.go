package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/schoollib/library/internal/attendance"
	dbattendance "github.com/schoollib/library/internal/database/attendance"
	"github.com/schoollib/library/internal/entities"
)

const dateLayout = "2006-01-02"

// AttendanceController exposes the attendance toggle.
type AttendanceController struct {
	toggle *attendance.Toggle
}

func NewAttendanceController(t *attendance.Toggle) *AttendanceController {
	return &AttendanceController{toggle: t}
}

// CheckIn handles POST /api/attendance/checkin.
func (ac *AttendanceController) CheckIn(c *gin.Context) {
	person, ok := currentPerson(c)
	if !ok {
		return
	}
	rec, err := ac.toggle.CheckIn(c.Request.Context(), person)
	if err != nil {
		respondAppError(c, err, "check in")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Checked in successfully", "logId": rec.ID})
}

// CheckOut handles POST /api/attendance/checkout.
func (ac *AttendanceController) CheckOut(c *gin.Context) {
	person, ok := currentPerson(c)
	if !ok {
		return
	}
	rec, err := ac.toggle.CheckOut(c.Request.Context(), person)
	if err != nil {
		respondAppError(c, err, "check out")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Checked out successfully", "logId": rec.ID})
}

// Status handles GET /api/attendance/status.
func (ac *AttendanceController) Status(c *gin.Context) {
	person, ok := currentPerson(c)
	if !ok {
		return
	}
	st, err := ac.toggle.Status(c.Request.Context(), person)
	if err != nil {
		respondAppError(c, err, "attendance status")
		return
	}
	c.JSON(http.StatusOK, gin.H{"isCheckedIn": st.CheckedIn, "lastLog": st.Last})
}

// MyLogs handles GET /api/attendance/my-logs.
func (ac *AttendanceController) MyLogs(c *gin.Context) {
	person, ok := currentPerson(c)
	if !ok {
		return
	}
	logs, err := ac.toggle.MyLogs(c.Request.Context(), person, parseLimit(c, defaultPersonalLimit, maxLogLimit))
	if err != nil {
		respondAppError(c, err, "my attendance")
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

type scanRequest struct {
	Barcode string `json:"barcode" binding:"required"`
}

// Scan handles POST /api/attendance/scan from a staffed scanner station.
func (ac *AttendanceController) Scan(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "barcode is required")
		return
	}
	res, err := ac.toggle.Scan(c.Request.Context(), actor, req.Barcode)
	if err != nil {
		respondAppError(c, err, "scan")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": res.Message,
		"action":  res.Action,
		"logId":   res.Record.ID,
		"user": gin.H{
			"id":       res.Person.ID,
			"name":     res.Person.Name,
			"userType": res.Person.Type,
		},
	})
}

// Logs handles GET /api/attendance/logs?startDate=&endDate=&userType=.
// Dates are UTC calendar days and both bounds are inclusive.
func (ac *AttendanceController) Logs(c *gin.Context) {
	f := dbattendance.LogFilter{Limit: parseLimit(c, defaultLogLimit, maxLogLimit)}
	if s := c.Query("startDate"); s != "" {
		from, err := time.Parse(dateLayout, s)
		if err != nil {
			respondBadRequest(c, "startDate must be YYYY-MM-DD")
			return
		}
		f.From = from
	}
	if s := c.Query("endDate"); s != "" {
		to, err := time.Parse(dateLayout, s)
		if err != nil {
			respondBadRequest(c, "endDate must be YYYY-MM-DD")
			return
		}
		f.To = to.AddDate(0, 0, 1)
	}
	if t := c.Query("userType"); t != "" {
		f.PersonType = entities.PersonType(strings.ToLower(t))
	}

	logs, err := ac.toggle.Logs(c.Request.Context(), f)
	if err != nil {
		respondAppError(c, err, "attendance logs")
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/schoollib/library/internal/audit"
	dbaudit "github.com/schoollib/library/internal/database/audit"
	"github.com/schoollib/library/internal/entities"
)

type AuditController struct {
	auditService *audit.Service
}

func NewAuditController(auditService *audit.Service) *AuditController {
	return &AuditController{
		auditService: auditService,
	}
}

// GetAuditEvents returns paginated audit events as JSON
// GET /api/admin/audit?page=&limit=&type=&actor=
func (ac *AuditController) GetAuditEvents(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "25"))

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 25
	}

	q := dbaudit.Query{Limit: limit, Offset: (page - 1) * limit}
	if t := c.Query("type"); t != "" {
		if !validEventType(entities.AuditEventType(t)) {
			respondBadRequest(c, "unknown event type")
			return
		}
		q.EventType = entities.AuditEventType(t)
	}
	if a := c.Query("actor"); a != "" {
		id, err := strconv.ParseUint(a, 10, 32)
		if err != nil {
			respondBadRequest(c, "invalid actor")
			return
		}
		q.ActorID = uint(id)
	}

	events, total, err := ac.auditService.GetEvents(q)
	if err != nil {
		respondInternalError(c, err, "audit events")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"total":  total,
		"page":   page,
		"limit":  limit,
	})
}

func getEventTypes() []entities.AuditEventType {
	return []entities.AuditEventType{
		entities.AuditEventBorrow,
		entities.AuditEventReturn,
		entities.AuditEventAttendance,
		entities.AuditEventCatalog,
		entities.AuditEventPeople,
		entities.AuditEventAuth,
		entities.AuditEventMaintenance,
	}
}

func validEventType(t entities.AuditEventType) bool {
	for _, known := range getEventTypes() {
		if known == t {
			return true
		}
	}
	return false
}

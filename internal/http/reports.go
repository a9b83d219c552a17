package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schoollib/library/internal/reports"
)

type ReportsController struct {
	reports *reports.Service
}

func NewReportsController(r *reports.Service) *ReportsController {
	return &ReportsController{reports: r}
}

// Dashboard handles GET /api/reports/dashboard.
func (rc *ReportsController) Dashboard(c *gin.Context) {
	d, err := rc.reports.Dashboard(c.Request.Context())
	if err != nil {
		respondAppError(c, err, "dashboard")
		return
	}
	c.JSON(http.StatusOK, d)
}

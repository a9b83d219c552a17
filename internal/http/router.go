package http

import (
	"github.com/gin-gonic/gin"

	"github.com/schoollib/library/internal/auth"
)

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(accessLog())

	router.Use(auth.SecurityHeadersMiddleware())
	if cfg.SecureCookies {
		router.Use(auth.StrictTransportSecurityMiddleware())
	}

	// Sessions load first so CSRF sees the request context they populate.
	if cfg.SessionManager != nil {
		router.Use(cfg.SessionManager.LoadAndSave())
	}
	if len(cfg.CSRFSecret) > 0 {
		router.Use(auth.CSRFMiddleware(cfg.CSRFSecret, cfg.SecureCookies, cfg.AuthService, cfg.SessionManager))
	}
	router.Use(cfg.AuthMiddleware.Handler())

	health := NewHealthController(cfg.Database, cfg.Version)
	router.GET("/health", health.Status)
	router.GET("/ping", health.Ping)

	api := router.Group("/api")
	if cfg.AuthController != nil {
		cfg.AuthController.RegisterRoutes(api)
	}

	privileged := auth.RequirePrivileged()
	person := auth.RequirePerson()

	books := NewBooksController(cfg.Catalog)
	bg := api.Group("/books")
	{
		bg.GET("", books.List)
		bg.GET("/barcode/:barcode", books.GetByBarcode)
		bg.GET("/:id", books.Get)
		bg.POST("", privileged, books.Create)
		bg.PUT("/:id", privileged, books.Update)
		bg.DELETE("/:id", privileged, books.Delete)
	}

	borrow := NewBorrowController(cfg.Ledger)
	br := api.Group("/borrow")
	{
		br.POST("", person, borrow.Borrow)
		br.POST("/admin/borrow", privileged, borrow.BorrowOnBehalf)
		br.POST("/:id/return", borrow.Return)
		br.GET("/logs", privileged, borrow.Logs)
		br.GET("/my-loans", person, borrow.MyLoans)
		br.GET("/my-history", person, borrow.MyHistory)
		br.GET("/overdue", privileged, borrow.Overdue)
	}

	att := NewAttendanceController(cfg.Attendance)
	ag := api.Group("/attendance")
	{
		ag.POST("/checkin", person, att.CheckIn)
		ag.POST("/checkout", person, att.CheckOut)
		ag.GET("/status", person, att.Status)
		ag.GET("/my-logs", person, att.MyLogs)
		ag.POST("/scan", privileged, att.Scan)
		ag.GET("/logs", privileged, att.Logs)
	}

	users := NewUsersController(cfg.People)
	ug := api.Group("/users", privileged)
	{
		ug.GET("", users.List)
		ug.POST("", users.Register)
		ug.GET("/:userType/:id", users.Get)
		ug.PUT("/:userType/:id", users.Update)
		ug.DELETE("/:userType/:id", users.Delete)
	}

	reports := NewReportsController(cfg.Reports)
	api.GET("/reports/dashboard", privileged, reports.Dashboard)

	admin := api.Group("/admin", privileged)
	admin.GET("/audit", NewAuditController(cfg.Auditor).GetAuditEvents)
	if cfg.TaskClient != nil {
		tc := NewTasksController(cfg.TaskClient)
		admin.GET("/tasks/types", tc.ListTaskTypes)
		admin.GET("/tasks/:id", tc.GetTaskStatus)
		admin.POST("/tasks/:type/run", tc.RunTask)
	}

	return router
}

package http

import (
	"github.com/schoollib/library/internal/attendance"
	"github.com/schoollib/library/internal/audit"
	"github.com/schoollib/library/internal/auth"
	"github.com/schoollib/library/internal/catalog"
	"github.com/schoollib/library/internal/database"
	"github.com/schoollib/library/internal/ledger"
	"github.com/schoollib/library/internal/people"
	"github.com/schoollib/library/internal/reports"
	"github.com/schoollib/library/internal/tasks"
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	// Core services
	Database   *database.Database
	Ledger     *ledger.Ledger
	Attendance *attendance.Toggle
	Catalog    *catalog.Catalog
	People     *people.Directory
	Reports    *reports.Service
	Auditor    *audit.Service

	// Authentication
	AuthService    *auth.Service
	AuthController *auth.AuthController
	AuthMiddleware *auth.Middleware
	SessionManager *auth.SessionManager
	CSRFSecret     []byte
	SecureCookies  bool

	// Optional; task endpoints are not mounted without it.
	TaskClient *tasks.Client

	Version string
}

package entrypoint

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/schoollib/library/internal/attendance"
	"github.com/schoollib/library/internal/audit"
	"github.com/schoollib/library/internal/auth"
	"github.com/schoollib/library/internal/catalog"
	"github.com/schoollib/library/internal/config"
	"github.com/schoollib/library/internal/database"
	dbaudit "github.com/schoollib/library/internal/database/audit"
	"github.com/schoollib/library/internal/events"
	http_controllers "github.com/schoollib/library/internal/http"
	"github.com/schoollib/library/internal/ledger"
	"github.com/schoollib/library/internal/people"
	"github.com/schoollib/library/internal/reports"
	"github.com/schoollib/library/internal/scheduler"
	"github.com/schoollib/library/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting server at %s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// kill (no param) sends SIGTERM, kill -2 is SIGINT
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server Shutdown: %v", err)
	}

	// Stop background work only after in-flight requests have finished.
	if onShutdown != nil {
		onShutdown(ctx)
	}

	log.Println("Server exiting")
}

func Run(cfg *config.Config, version string) {
	log.Printf("Starting library v%s", version)

	db, err := database.NewDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	auditSvc := audit.NewService(dbaudit.NewRepository(db.DB))
	defer auditSvc.Wait()

	publisher := newPublisher(cfg.Events)
	defer publisher.Close()

	l := ledger.New(db.DB,
		ledger.WithLoanDays(cfg.Library.LoanDays),
		ledger.WithAudit(auditSvc),
		ledger.WithPublisher(publisher),
	)
	toggle := attendance.New(db.DB, attendance.WithAudit(auditSvc), attendance.WithPublisher(publisher))
	directory := people.NewDirectory(db.DB, cfg.Auth.BcryptCost, auditSvc)

	authSvc, authController, authMiddleware, sessionManager, csrfSecret := setupAuth(cfg, db, auditSvc)
	defer authController.Stop()

	hasStaff, err := authSvc.HasStaff(context.Background())
	if err != nil {
		log.Printf("WARNING: could not count staff accounts: %v", err)
	} else if !hasStaff {
		log.Printf("No staff accounts found. Run '%s create-admin' to create one.", os.Args[0])
	}

	var (
		taskClient *tasks.Client
		taskCancel context.CancelFunc
		maint      *scheduler.MaintenanceScheduler
	)
	if cfg.Tasks.Enabled {
		taskCfg := tasks.ConfigFrom(cfg.Tasks, cfg.Audit)
		taskClient, err = tasks.NewClient(tasks.DBPath(cfg.Tasks, cfg.Database), taskCfg)
		if err != nil {
			log.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Printf("Error closing task client: %v", err)
			}
		}()

		taskClient.Register(
			tasks.NewOverdueSweepQueue(l, publisher, auditSvc),
			tasks.NewCleanupAuditEventsQueue(auditSvc, auditSvc),
		)

		var taskCtx context.Context
		taskCtx, taskCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)

		if cfg.Scheduler.Enabled {
			maint = scheduler.NewMaintenanceScheduler(taskClient,
				scheduler.DefaultJobs(cfg.Scheduler.OverdueSweepSchedule, cfg.Scheduler.AuditCleanupSchedule, taskCfg)...)
			if err := maint.Start(taskCtx); err != nil {
				log.Fatalf("Failed to start maintenance scheduler: %v", err)
			}
		}
	} else {
		log.Printf("Task queue disabled; overdue sweeps and audit cleanup will not run")
	}

	routerCfg := http_controllers.RouterConfig{
		Database:       db,
		Ledger:         l,
		Attendance:     toggle,
		Catalog:        catalog.New(db.DB, l, auditSvc),
		People:         directory,
		Reports:        reports.NewService(db.DB),
		Auditor:        auditSvc,
		AuthService:    authSvc,
		AuthController: authController,
		AuthMiddleware: authMiddleware,
		SessionManager: sessionManager,
		CSRFSecret:     csrfSecret,
		SecureCookies:  cfg.Auth.SecureCookies,
		TaskClient:     taskClient,
		Version:        version,
	}

	router := http_controllers.NewRouter(routerCfg)

	onShutdown := func(ctx context.Context) {
		if maint != nil {
			maint.Stop()
		}
		if taskClient != nil && taskCancel != nil {
			taskClient.Stop(ctx)
			taskCancel()
		}
	}

	Serve(router, cfg, onShutdown)
}

// newPublisher connects to RabbitMQ when configured. A broker that cannot be
// reached at startup degrades to logging events.
func newPublisher(cfg config.Events) events.Publisher {
	if cfg.AMQPURL == "" {
		log.Printf("Events: logging only (set EVENTS_AMQP_URL to publish to RabbitMQ)")
		return events.LogPublisher{}
	}
	p, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.Exchange)
	if err != nil {
		log.Printf("WARNING: AMQP unavailable, logging events instead: %v", err)
		return events.LogPublisher{}
	}
	log.Printf("Events: publishing to exchange %q", cfg.Exchange)
	return p
}

// newRevoker shares logouts through Redis when configured.
func newRevoker(cfg config.Redis) auth.Revoker {
	if cfg.Addr == "" {
		return auth.NewMemoryRevoker()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("WARNING: Redis at %s is not reachable, bearer tokens will be rejected until it is: %v", cfg.Addr, err)
	} else {
		log.Printf("Token revocation stored in Redis at %s", cfg.Addr)
	}
	return auth.NewRedisRevoker(client)
}

func setupAuth(cfg *config.Config, db *database.Database, auditSvc *audit.Service) (
	*auth.Service, *auth.AuthController, *auth.Middleware, *auth.SessionManager, []byte,
) {
	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		secret, err := auth.GenerateSecret()
		if err != nil {
			log.Fatalf("Failed to generate token secret: %v", err)
		}
		jwtSecret = secret
		log.Printf("Generated token secret (set AUTH_JWT_SECRET to keep tokens valid across restarts)")
	}

	tokens := auth.NewTokenIssuer(jwtSecret, cfg.Auth.TokenTTL)
	authSvc := auth.NewService(db.DB, cfg.Auth, tokens, newRevoker(cfg.Redis))

	var sessionManager *auth.SessionManager
	var csrfSecret []byte
	if cfg.Auth.SessionsEnabled {
		// The sqlite session store shares the library database; other
		// drivers keep sessions in memory.
		var sqlDB *sql.DB
		if db.Driver == config.DriverSQLite {
			var err error
			if sqlDB, err = db.DB.DB(); err != nil {
				log.Fatalf("Failed to get SQL DB for sessions: %v", err)
			}
		}
		var err error
		sessionManager, err = auth.NewSessionManager(sqlDB, cfg.Auth)
		if err != nil {
			log.Fatalf("Failed to initialize session manager: %v", err)
		}

		if cfg.Auth.CSRFEnabled {
			csrfSecret = sessionSecret(cfg.Auth.SessionSecret)
		}
	}

	return authSvc,
		auth.NewAuthController(authSvc, sessionManager, auditSvc, cfg.Auth),
		auth.NewMiddleware(authSvc, sessionManager),
		sessionManager,
		csrfSecret
}

// sessionSecret decodes a hex secret, falling back to the raw bytes, and
// generates one when none is configured.
func sessionSecret(configured string) []byte {
	if configured != "" {
		if secret, err := hex.DecodeString(configured); err == nil {
			return secret
		}
		return []byte(configured)
	}
	generated, err := auth.GenerateSecret()
	if err != nil {
		log.Fatalf("Failed to generate CSRF secret: %v", err)
	}
	secret, _ := hex.DecodeString(generated)
	log.Printf("Generated session secret (set AUTH_SESSION_SECRET to persist)")
	return secret
}

package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Global
		Database
		Auth
		Redis
		Events
		Tasks
		Scheduler
		Audit
		Library
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Driver string // "sqlite" or "postgres"
		Path   string // sqlite file
		DSN    string // postgres connection string
	}
	Auth struct {
		JWTSecret       string
		TokenTTL        time.Duration
		SessionsEnabled bool
		SessionSecret   string
		SessionLifetime time.Duration
		BcryptCost      int
		SecureCookies   bool // Set to false for local dev without HTTPS
		CSRFEnabled     bool

		MaxLoginAttempts int
		RateLimitWindow  time.Duration
		LockoutDuration  time.Duration
	}
	// Redis backs token revocation when Addr is set; an in-memory store is used otherwise.
	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	// Events are published to RabbitMQ when AMQPURL is set and logged otherwise.
	Events struct {
		AMQPURL  string
		Exchange string
	}
	Tasks struct {
		Enabled         bool
		Path            string
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
	Scheduler struct {
		Enabled              bool
		OverdueSweepSchedule string // Cron format: "0 7 * * *" = daily at 07:00
		AuditCleanupSchedule string
	}
	Audit struct {
		RetentionDays int
	}
	Library struct {
		LoanDays int
	}
)

// NewConfig loads .env (if present) and then reads the environment.
func NewConfig() *Config {
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}
	return fromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8080)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 5)

	v.SetDefault("database_driver", "sqlite")
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("database_dsn", "")

	v.SetDefault("auth_jwt_secret", "") // Auto-generated if empty
	v.SetDefault("auth_token_ttl", "24h")
	v.SetDefault("auth_sessions_enabled", true)
	v.SetDefault("auth_session_secret", "")
	v.SetDefault("auth_session_lifetime", "12h")
	v.SetDefault("auth_bcrypt_cost", 12)
	v.SetDefault("auth_secure_cookies", true)
	v.SetDefault("auth_csrf_enabled", true)
	v.SetDefault("auth_max_login_attempts", 5)
	v.SetDefault("auth_rate_limit_window", "15m")
	v.SetDefault("auth_lockout_duration", "30m")

	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)

	v.SetDefault("events_amqp_url", "")
	v.SetDefault("events_exchange", "library.events")

	v.SetDefault("tasks_enabled", true)
	v.SetDefault("tasks_path", "")
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")

	v.SetDefault("scheduler_enabled", true)
	v.SetDefault("overdue_sweep_schedule", "0 7 * * *")
	v.SetDefault("audit_cleanup_schedule", "30 3 * * *")

	v.SetDefault("audit_retention_days", 90)
	v.SetDefault("library_loan_days", DefaultLoanDays)
	return v
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Driver: v.GetString("DATABASE_DRIVER"),
			Path:   v.GetString("DATABASE_PATH"),
			DSN:    v.GetString("DATABASE_DSN"),
		},
		Auth: Auth{
			JWTSecret:        v.GetString("AUTH_JWT_SECRET"),
			TokenTTL:         v.GetDuration("AUTH_TOKEN_TTL"),
			SessionsEnabled:  v.GetBool("AUTH_SESSIONS_ENABLED"),
			SessionSecret:    v.GetString("AUTH_SESSION_SECRET"),
			SessionLifetime:  v.GetDuration("AUTH_SESSION_LIFETIME"),
			BcryptCost:       v.GetInt("AUTH_BCRYPT_COST"),
			SecureCookies:    v.GetBool("AUTH_SECURE_COOKIES"),
			CSRFEnabled:      v.GetBool("AUTH_CSRF_ENABLED"),
			MaxLoginAttempts: v.GetInt("AUTH_MAX_LOGIN_ATTEMPTS"),
			RateLimitWindow:  v.GetDuration("AUTH_RATE_LIMIT_WINDOW"),
			LockoutDuration:  v.GetDuration("AUTH_LOCKOUT_DURATION"),
		},
		Redis: Redis{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Events: Events{
			AMQPURL:  v.GetString("EVENTS_AMQP_URL"),
			Exchange: v.GetString("EVENTS_EXCHANGE"),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			Path:            v.GetString("TASKS_PATH"),
			Workers:         v.GetInt("TASK_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
		Scheduler: Scheduler{
			Enabled:              v.GetBool("SCHEDULER_ENABLED"),
			OverdueSweepSchedule: v.GetString("OVERDUE_SWEEP_SCHEDULE"),
			AuditCleanupSchedule: v.GetString("AUDIT_CLEANUP_SCHEDULE"),
		},
		Audit: Audit{
			RetentionDays: v.GetInt("AUDIT_RETENTION_DAYS"),
		},
		Library: Library{
			LoanDays: v.GetInt("LIBRARY_LOAN_DAYS"),
		},
	}
}

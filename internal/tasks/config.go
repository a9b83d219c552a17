package tasks

import (
	"path/filepath"
	"time"

	"github.com/schoollib/library/internal/config"
)

// Config holds configuration for the task queue.
type Config struct {
	// Workers is the number of concurrent task workers. Default: 2
	Workers int

	// ReleaseAfter is when stuck tasks are released back to the queue. Default: 15m
	ReleaseAfter time.Duration

	// CleanupInterval is how often finished tasks are purged. Default: 1h
	CleanupInterval time.Duration

	// AuditRetentionDays is passed to scheduled audit cleanups. Default: 90
	AuditRetentionDays int
}

func DefaultConfig() Config {
	return Config{
		Workers:            2,
		ReleaseAfter:       15 * time.Minute,
		CleanupInterval:    time.Hour,
		AuditRetentionDays: 90,
	}
}

// ConfigFrom fills a Config from application settings, keeping defaults for
// unset values.
func ConfigFrom(t config.Tasks, a config.Audit) Config {
	cfg := DefaultConfig()
	if t.Workers > 0 {
		cfg.Workers = t.Workers
	}
	if t.ReleaseAfter > 0 {
		cfg.ReleaseAfter = t.ReleaseAfter
	}
	if t.CleanupInterval > 0 {
		cfg.CleanupInterval = t.CleanupInterval
	}
	if a.RetentionDays > 0 {
		cfg.AuditRetentionDays = a.RetentionDays
	}
	return cfg
}

// DBPath returns where the queue database lives: the configured path, or a
// "-tasks" sibling of the sqlite library database.
func DBPath(t config.Tasks, db config.Database) string {
	if t.Path != "" {
		return t.Path
	}
	mainPath := db.Path
	if mainPath == "" {
		mainPath = config.DefaultDatabasePath
	}
	dir := filepath.Dir(mainPath)
	base := filepath.Base(mainPath)
	ext := filepath.Ext(base)
	return filepath.Join(dir, base[:len(base)-len(ext)]+"-tasks"+ext)
}

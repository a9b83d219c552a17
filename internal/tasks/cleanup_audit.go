package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"
)

const QueueCleanupAuditEvents = "cleanup_audit_events"

// AuditEventCleaner deletes audit events older than a retention period.
type AuditEventCleaner interface {
	DeleteOldEvents(retention time.Duration) (int64, error)
}

// MaintenanceLogger records the outcome of a maintenance run.
type MaintenanceLogger interface {
	LogMaintenance(action, description string, err error)
}

// CleanupAuditEventsTask removes audit events older than RetentionDays.
type CleanupAuditEventsTask struct {
	RetentionDays int `json:"retention_days"`
}

func (t CleanupAuditEventsTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        QueueCleanupAuditEvents,
		MaxAttempts: 3,
		Backoff:     5 * time.Minute,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration: 24 * time.Hour,
			Data:     &backlite.RetainData{OnlyFailed: true},
		},
	}
}

func CleanupAuditEventsProcessor(cleaner AuditEventCleaner, logger MaintenanceLogger) backlite.QueueProcessor[CleanupAuditEventsTask] {
	return func(ctx context.Context, task CleanupAuditEventsTask) error {
		if cleaner == nil {
			return fmt.Errorf("audit event cleaner not configured")
		}

		days := task.RetentionDays
		if days <= 0 {
			days = DefaultConfig().AuditRetentionDays
		}

		deleted, err := cleaner.DeleteOldEvents(time.Duration(days) * 24 * time.Hour)
		if err != nil {
			err = fmt.Errorf("cleanup audit events: %w", err)
			logMaintenance(logger, QueueCleanupAuditEvents, "audit cleanup failed", err)
			return err
		}

		msg := fmt.Sprintf("removed %d audit events older than %d days", deleted, days)
		log.Printf("[tasks] %s", msg)
		logMaintenance(logger, QueueCleanupAuditEvents, msg, nil)
		return nil
	}
}

func NewCleanupAuditEventsQueue(cleaner AuditEventCleaner, logger MaintenanceLogger) backlite.Queue {
	return backlite.NewQueue(CleanupAuditEventsProcessor(cleaner, logger))
}

func logMaintenance(logger MaintenanceLogger, action, description string, err error) {
	if logger != nil {
		logger.LogMaintenance(action, description, err)
	}
}

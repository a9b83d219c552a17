package tasks

import (
	"fmt"

	"github.com/mikestefanello/backlite"
)

// TypeInfo describes a task that can be run on demand.
type TypeInfo struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Types lists the tasks operators can trigger.
func Types() []TypeInfo {
	return []TypeInfo{
		{Type: QueueOverdueSweep, Description: "Announce every overdue loan"},
		{Type: QueueCleanupAuditEvents, Description: "Delete audit events past the retention period"},
	}
}

// NewTask builds the task for a queue name.
func NewTask(taskType string, cfg Config, requestedBy uint) (backlite.Task, error) {
	switch taskType {
	case QueueOverdueSweep:
		return OverdueSweepTask{RequestedBy: requestedBy}, nil
	case QueueCleanupAuditEvents:
		return CleanupAuditEventsTask{RetentionDays: cfg.AuditRetentionDays}, nil
	}
	return nil, fmt.Errorf("unknown task type: %s", taskType)
}

// StatusString renders a backlite status for API responses.
func StatusString(status backlite.TaskStatus) string {
	switch status {
	case backlite.TaskStatusPending:
		return "pending"
	case backlite.TaskStatusRunning:
		return "running"
	case backlite.TaskStatusSuccess:
		return "success"
	case backlite.TaskStatusFailure:
		return "failure"
	case backlite.TaskStatusNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

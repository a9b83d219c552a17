package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/robfig/cron/v3"

	"github.com/schoollib/library/internal/tasks"
)

// Enqueuer hands a task to the queue.
type Enqueuer interface {
	Enqueue(task backlite.Task) (string, error)
}

// Job is a task enqueued on a cron schedule.
type Job struct {
	Name     string
	Schedule string
	Task     backlite.Task
}

// MaintenanceScheduler enqueues maintenance tasks on cron schedules. It
// only enqueues; the task queue does the work.
type MaintenanceScheduler struct {
	queue Enqueuer
	jobs  []Job

	cron      *cron.Cron
	entries   map[string]cron.EntryID
	mu        sync.RWMutex
	isRunning bool
}

func newParser() cron.Parser {
	return cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
}

// NewMaintenanceScheduler creates a scheduler for jobs. Jobs with an empty
// schedule are skipped.
func NewMaintenanceScheduler(queue Enqueuer, jobs ...Job) *MaintenanceScheduler {
	return &MaintenanceScheduler{
		queue:   queue,
		jobs:    jobs,
		cron:    cron.New(cron.WithParser(newParser()), cron.WithLocation(time.UTC)),
		entries: make(map[string]cron.EntryID),
	}
}

// DefaultJobs returns the overdue sweep and audit cleanup jobs.
func DefaultJobs(overdueSchedule, auditSchedule string, cfg tasks.Config) []Job {
	return []Job{
		{Name: tasks.QueueOverdueSweep, Schedule: overdueSchedule, Task: tasks.OverdueSweepTask{}},
		{Name: tasks.QueueCleanupAuditEvents, Schedule: auditSchedule, Task: tasks.CleanupAuditEventsTask{RetentionDays: cfg.AuditRetentionDays}},
	}
}

// ValidateSchedule reports whether expr is a five-field cron expression.
func ValidateSchedule(expr string) error {
	_, err := newParser().Parse(expr)
	return err
}

// Start registers every job and starts the cron loop. The scheduler stops
// when ctx is cancelled.
func (s *MaintenanceScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	for _, job := range s.jobs {
		if job.Schedule == "" {
			log.Printf("[scheduler] %s: no schedule, skipping", job.Name)
			continue
		}
		job := job
		id, err := s.cron.AddFunc(job.Schedule, func() { s.enqueue(job) })
		if err != nil {
			return fmt.Errorf("invalid cron schedule %q for %s: %w", job.Schedule, job.Name, err)
		}
		s.entries[job.Name] = id
	}

	s.cron.Start()
	s.isRunning = true
	for name, id := range s.entries {
		log.Printf("[scheduler] %s scheduled, next run %v", name, s.cron.Entry(id).Next)
	}

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop halts the cron loop and waits for running jobs.
func (s *MaintenanceScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}
	<-s.cron.Stop().Done()
	s.isRunning = false
	log.Printf("[scheduler] stopped")
}

func (s *MaintenanceScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRun returns when the named job fires next, or nil.
func (s *MaintenanceScheduler) NextRun(name string) *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.entries[name]
	if !s.isRunning || !ok {
		return nil
	}
	next := s.cron.Entry(id).Next
	return &next
}

// RunNow enqueues the named job immediately.
func (s *MaintenanceScheduler) RunNow(name string) (string, error) {
	for _, job := range s.jobs {
		if job.Name == name {
			return s.queue.Enqueue(job.Task)
		}
	}
	return "", fmt.Errorf("unknown job: %s", name)
}

func (s *MaintenanceScheduler) enqueue(job Job) {
	id, err := s.queue.Enqueue(job.Task)
	if err != nil {
		log.Printf("[scheduler] failed to enqueue %s: %v", job.Name, err)
		return
	}
	log.Printf("[scheduler] enqueued %s as %s", job.Name, id)
}

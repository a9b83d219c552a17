// Package reports builds the staff dashboard from independent counts that
// are gathered concurrently.
package reports

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/schoollib/library/internal/database/attendance"
	"github.com/schoollib/library/internal/database/books"
	"github.com/schoollib/library/internal/database/borrows"
	"github.com/schoollib/library/internal/database/people"
	"github.com/schoollib/library/internal/entities"
)

const recentLimit = 5

type Dashboard struct {
	Books           books.Totals       `json:"books"`
	ActiveBorrows   int64              `json:"active_borrows"`
	OverdueBorrows  int64              `json:"overdue_borrows"`
	Students        int64              `json:"students"`
	Teachers        int64              `json:"teachers"`
	Staff           int64              `json:"staff"`
	CheckedIn       int64              `json:"checked_in"`
	TodayAttendance int64              `json:"today_attendance"`
	RecentBorrows   []borrows.LoanView `json:"recent_borrows"`
	Overdue         []borrows.LoanView `json:"overdue"`
	GeneratedAt     time.Time          `json:"generated_at"`
}

type Service struct {
	db  *gorm.DB
	now func() time.Time
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// Dashboard gathers catalogue, loan, people and attendance figures.
// Attendance "today" starts at midnight UTC.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	d := &Dashboard{GeneratedAt: now}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := books.NewRepository(s.db).Totals(gctx)
		if err != nil {
			return fmt.Errorf("book totals: %w", err)
		}
		d.Books = t
		return nil
	})
	g.Go(func() error {
		open, overdue, err := borrows.NewRepository(s.db).CountOpen(gctx, now)
		if err != nil {
			return fmt.Errorf("count borrows: %w", err)
		}
		d.ActiveBorrows, d.OverdueBorrows = open, overdue
		return nil
	})
	g.Go(func() error {
		repo := people.NewRepository(s.db)
		students, teachers, err := repo.Counts(gctx)
		if err != nil {
			return fmt.Errorf("count people: %w", err)
		}
		staff, err := repo.CountUsers(gctx)
		if err != nil {
			return fmt.Errorf("count staff: %w", err)
		}
		d.Students, d.Teachers, d.Staff = students, teachers, staff
		return nil
	})
	g.Go(func() error {
		repo := attendance.NewRepository(s.db)
		in, err := repo.CountCheckedIn(gctx)
		if err != nil {
			return fmt.Errorf("count checked in: %w", err)
		}
		todayCount, err := repo.CountSince(gctx, today)
		if err != nil {
			return fmt.Errorf("count attendance: %w", err)
		}
		d.CheckedIn, d.TodayAttendance = in, todayCount
		return nil
	})
	g.Go(func() error {
		recent, err := borrows.NewRepository(s.db).Logs(gctx, borrows.LogFilter{Limit: recentLimit})
		if err != nil {
			return fmt.Errorf("recent borrows: %w", err)
		}
		d.RecentBorrows = recent
		return nil
	})
	g.Go(func() error {
		overdue, err := borrows.NewRepository(s.db).Overdue(gctx, now)
		if err != nil {
			return fmt.Errorf("overdue borrows: %w", err)
		}
		for i := range overdue {
			overdue[i].DaysOverdue = entities.DaysOverdue(overdue[i].DueDate, now)
		}
		d.Overdue = overdue
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}

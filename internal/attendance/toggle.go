// Package attendance tracks whether each student or teacher is inside the
// library, derived from an append-only log of In/Out entries.
//
// A person's state is the type of their latest entry (Out when there is none).
// Each entry carries a per-person sequence number under a unique index, so
// two concurrent appends that read the same latest entry cannot both commit;
// the loser re-reads and re-decides.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/schoollib/library/internal/apperr"
	"github.com/schoollib/library/internal/audit"
	dbattendance "github.com/schoollib/library/internal/database/attendance"
	"github.com/schoollib/library/internal/database/people"
	"github.com/schoollib/library/internal/entities"
	"github.com/schoollib/library/internal/events"
)

var (
	ErrPersonNotFound   = apperr.New(apperr.ErrNotFound, "user not found")
	ErrAlreadyCheckedIn = apperr.New(apperr.ErrConflict, "already checked in")
	ErrNotCheckedIn     = apperr.New(apperr.ErrConflict, "not checked in")
	ErrContention       = apperr.New(apperr.ErrConflict, "attendance changed concurrently, try again")
)

const defaultMaxAttempts = 3

// ScanResult describes the entry a scan produced.
type ScanResult struct {
	Action  string                    `json:"action"` // "checkin" or "checkout"
	Message string                    `json:"message"`
	Person  entities.Person           `json:"user"`
	Record  entities.AttendanceRecord `json:"record"`
}

type Status struct {
	CheckedIn bool                       `json:"is_checked_in"`
	Last      *entities.AttendanceRecord `json:"last_log"`
}

type Toggle struct {
	db          *gorm.DB
	now         func() time.Time
	maxAttempts int
	audit       *audit.Service
	publisher   events.Publisher
}

type Option func(*Toggle)

func WithClock(now func() time.Time) Option {
	return func(t *Toggle) { t.now = now }
}

func WithAudit(svc *audit.Service) Option {
	return func(t *Toggle) { t.audit = svc }
}

func WithPublisher(p events.Publisher) Option {
	return func(t *Toggle) { t.publisher = p }
}

// WithMaxAttempts bounds how often an append is retried after losing a race.
func WithMaxAttempts(n int) Option {
	return func(t *Toggle) {
		if n > 0 {
			t.maxAttempts = n
		}
	}
}

func New(db *gorm.DB, opts ...Option) *Toggle {
	t := &Toggle{db: db, now: time.Now, maxAttempts: defaultMaxAttempts}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Scan resolves a barcode (students before teachers) and appends the
// complement of that person's latest entry.
func (t *Toggle) Scan(ctx context.Context, operator entities.Actor, barcode string) (*ScanResult, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, apperr.Validation("barcode is required")
	}

	person, err := people.NewRepository(t.db).FindByBarcode(ctx, barcode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPersonNotFound
		}
		return nil, fmt.Errorf("resolve barcode: %w", err)
	}

	rec, err := t.appendNext(ctx, person.PersonRef, func(last entities.AttendanceType) (entities.AttendanceType, error) {
		return last.Next(), nil
	})
	if err != nil {
		return nil, err
	}

	t.audit.LogAttendance(operator, rec, "scan")
	t.emit(ctx, rec, "scan")

	res := &ScanResult{Person: *person, Record: *rec}
	if rec.Type == entities.AttendanceIn {
		res.Action, res.Message = "checkin", person.Name+" checked in successfully"
	} else {
		res.Action, res.Message = "checkout", person.Name+" checked out successfully"
	}
	return res, nil
}

// CheckIn appends an In entry for person. It fails when the person is
// already checked in.
func (t *Toggle) CheckIn(ctx context.Context, person entities.PersonRef) (*entities.AttendanceRecord, error) {
	return t.explicit(ctx, person, entities.AttendanceIn, "checkin")
}

// CheckOut appends an Out entry for person. It fails unless the person is
// currently checked in.
func (t *Toggle) CheckOut(ctx context.Context, person entities.PersonRef) (*entities.AttendanceRecord, error) {
	return t.explicit(ctx, person, entities.AttendanceOut, "checkout")
}

func (t *Toggle) explicit(ctx context.Context, person entities.PersonRef, want entities.AttendanceType, via string) (*entities.AttendanceRecord, error) {
	if err := t.ensurePerson(ctx, person); err != nil {
		return nil, err
	}

	rec, err := t.appendNext(ctx, person, func(last entities.AttendanceType) (entities.AttendanceType, error) {
		if last.Next() != want {
			if want == entities.AttendanceIn {
				return "", ErrAlreadyCheckedIn
			}
			return "", ErrNotCheckedIn
		}
		return want, nil
	})
	if err != nil {
		return nil, err
	}

	t.audit.LogAttendance(entities.ActorFor(person), rec, via)
	t.emit(ctx, rec, via)
	return rec, nil
}

// Status reports whether person's latest entry is In.
func (t *Toggle) Status(ctx context.Context, person entities.PersonRef) (*Status, error) {
	if err := t.ensurePerson(ctx, person); err != nil {
		return nil, err
	}
	last, err := dbattendance.NewRepository(t.db).Last(ctx, person)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Status{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load last attendance: %w", err)
	}
	return &Status{CheckedIn: last.Type == entities.AttendanceIn, Last: last}, nil
}

// MyLogs returns a person's latest entries, newest first.
func (t *Toggle) MyLogs(ctx context.Context, person entities.PersonRef, limit int) ([]entities.AttendanceRecord, error) {
	records, err := dbattendance.NewRepository(t.db).ForPerson(ctx, person, limit)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return records, nil
}

// Logs returns the attendance log for staff.
func (t *Toggle) Logs(ctx context.Context, f dbattendance.LogFilter) ([]dbattendance.LogView, error) {
	if f.PersonType != "" && !f.PersonType.Valid() {
		return nil, apperr.Validation("invalid user type %q", f.PersonType)
	}
	if !f.From.IsZero() && !f.To.IsZero() && !f.From.Before(f.To) {
		return nil, apperr.Validation("start date must be before end date")
	}
	logs, err := dbattendance.NewRepository(t.db).Logs(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list attendance logs: %w", err)
	}
	return logs, nil
}

func (t *Toggle) ensurePerson(ctx context.Context, person entities.PersonRef) error {
	if !person.Type.Valid() {
		return apperr.Validation("only students and teachers have attendance")
	}
	if _, err := people.NewRepository(t.db).Find(ctx, person); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPersonNotFound
		}
		return fmt.Errorf("load person: %w", err)
	}
	return nil
}

// decideFunc picks the entry type to append after last ("" when the person
// has no entries), or rejects the transition.
type decideFunc func(last entities.AttendanceType) (entities.AttendanceType, error)

func (t *Toggle) appendNext(ctx context.Context, person entities.PersonRef, decide decideFunc) (*entities.AttendanceRecord, error) {
	for attempt := 1; ; attempt++ {
		var rec entities.AttendanceRecord
		err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			repo := dbattendance.NewRepository(tx)

			var lastType entities.AttendanceType
			seq := 1
			last, err := repo.Last(ctx, person)
			switch {
			case err == nil:
				lastType, seq = last.Type, last.Seq+1
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return fmt.Errorf("load last attendance: %w", err)
			}

			next, err := decide(lastType)
			if err != nil {
				return err
			}

			rec = entities.AttendanceRecord{
				PersonID:   person.ID,
				PersonType: person.Type,
				Seq:        seq,
				Type:       next,
				Timestamp:  t.now().UTC(),
			}
			return repo.Append(ctx, &rec)
		})
		switch {
		case err == nil:
			return &rec, nil
		case !apperr.IsDuplicateKey(err):
			return nil, err
		case attempt >= t.maxAttempts:
			return nil, ErrContention
		}
	}
}

func (t *Toggle) emit(ctx context.Context, rec *entities.AttendanceRecord, via string) {
	events.Emit(ctx, t.publisher, events.New(events.TypeAttendanceRecorded, map[string]any{
		"record_id":   rec.ID,
		"person_id":   rec.PersonID,
		"person_type": rec.PersonType,
		"type":        rec.Type,
		"via":         via,
		"timestamp":   rec.Timestamp,
	}))
}

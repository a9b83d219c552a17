// Package attendance provides database operations for the append-only
// attendance log.
package attendance

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/schoollib/library/internal/entities"
)

// LogView is an attendance record joined with the person it belongs to.
type LogView struct {
	entities.AttendanceRecord
	PersonName    string `json:"person_name"`
	PersonBarcode string `json:"person_barcode"`
	Action        string `gorm:"-" json:"action"`
}

// LogFilter narrows the administrative attendance log. From is inclusive,
// To is exclusive; zero times are open bounds.
type LogFilter struct {
	From       time.Time
	To         time.Time
	PersonType entities.PersonType
	Limit      int
}

// Repository handles all attendance database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new attendance repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Last returns a person's most recent record.
func (r *Repository) Last(ctx context.Context, person entities.PersonRef) (*entities.AttendanceRecord, error) {
	var rec entities.AttendanceRecord
	err := r.db.WithContext(ctx).
		Where("person_id = ? AND person_type = ?", person.ID, person.Type).
		Order("seq DESC").
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Append inserts rec. The caller sets Seq to the previous Seq plus one; a
// duplicate-key error means another append for the same person won.
func (r *Repository) Append(ctx context.Context, rec *entities.AttendanceRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

// ForPerson returns a person's records, newest first.
func (r *Repository) ForPerson(ctx context.Context, person entities.PersonRef, limit int) ([]entities.AttendanceRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []entities.AttendanceRecord
	err := r.db.WithContext(ctx).
		Where("person_id = ? AND person_type = ?", person.ID, person.Type).
		Order("seq DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// Logs returns records matching f across all people, newest first.
func (r *Repository) Logs(ctx context.Context, f LogFilter) ([]LogView, error) {
	q := r.db.WithContext(ctx).Table("attendance_records AS a").
		Select("a.id, a.person_id, a.person_type, a.seq, a.type, a.timestamp, " +
			"COALESCE(s.name, t.name, '') AS person_name, COALESCE(s.barcode, t.barcode, '') AS person_barcode").
		Joins("LEFT JOIN students s ON a.person_type = ? AND s.id = a.person_id", entities.PersonStudent).
		Joins("LEFT JOIN teachers t ON a.person_type = ? AND t.id = a.person_id", entities.PersonTeacher)

	if !f.From.IsZero() {
		q = q.Where("a.timestamp >= ?", f.From)
	}
	if !f.To.IsZero() {
		q = q.Where("a.timestamp < ?", f.To)
	}
	if f.PersonType != "" {
		q = q.Where("a.person_type = ?", f.PersonType)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var out []LogView
	if err := q.Order("a.timestamp DESC, a.id DESC").Scan(&out).Error; err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Action = out[i].Type.Label()
	}
	return out, nil
}

// CountCheckedIn returns how many people's latest record is In.
func (r *Repository) CountCheckedIn(ctx context.Context) (int64, error) {
	var n int64
	latest := r.db.WithContext(ctx).Model(&entities.AttendanceRecord{}).
		Select("person_id, person_type, MAX(seq) AS seq").
		Group("person_id, person_type")
	err := r.db.WithContext(ctx).Table("attendance_records AS a").
		Joins("JOIN (?) AS l ON l.person_id = a.person_id AND l.person_type = a.person_type AND l.seq = a.seq", latest).
		Where("a.type = ?", entities.AttendanceIn).
		Count(&n).Error
	return n, err
}

// CountSince returns the number of records stamped at or after since.
func (r *Repository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entities.AttendanceRecord{}).
		Where("timestamp >= ?", since).
		Count(&n).Error
	return n, err
}

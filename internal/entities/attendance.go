package entities

import "time"

type AttendanceType string

const (
	AttendanceIn  AttendanceType = "In"
	AttendanceOut AttendanceType = "Out"
)

// Next returns the entry type that must follow t in a person's log.
// An empty t (no prior entry) yields In.
func (t AttendanceType) Next() AttendanceType {
	if t == AttendanceIn {
		return AttendanceOut
	}
	return AttendanceIn
}

// Label is the human-readable action name shown in logs.
func (t AttendanceType) Label() string {
	if t == AttendanceIn {
		return "Check-in"
	}
	return "Check-out"
}

// AttendanceRecord is append-only. Seq increases by one per person and is
// unique per person, so two concurrent appends cannot both follow the same entry.
type AttendanceRecord struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	PersonID   uint           `gorm:"uniqueIndex:idx_attendance_person_seq;not null" json:"person_id"`
	PersonType PersonType     `gorm:"uniqueIndex:idx_attendance_person_seq;size:20;not null" json:"person_type"`
	Seq        int            `gorm:"uniqueIndex:idx_attendance_person_seq;not null" json:"seq"`
	Type       AttendanceType `gorm:"size:8;not null" json:"type"`
	Timestamp  time.Time      `gorm:"index" json:"timestamp"`
}

func (AttendanceRecord) TableName() string {
	return "attendance_records"
}

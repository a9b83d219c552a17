package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/schoollib/library/internal/apperr"
	"github.com/schoollib/library/internal/database/dbtest"
	"github.com/schoollib/library/internal/entities"
)

func setup(t *testing.T) (*Repository, entities.PersonRef, entities.PersonRef) {
	db := dbtest.New(t)
	student := entities.Student{Name: "Ada", Barcode: "S-1"}
	teacher := entities.Teacher{Name: "Mr. Brown", Barcode: "T-1"}
	require.NoError(t, db.Create(&student).Error)
	require.NoError(t, db.Create(&teacher).Error)
	return NewRepository(db), student.Person().PersonRef, teacher.Person().PersonRef
}

func appendRecord(t *testing.T, repo *Repository, p entities.PersonRef, seq int, typ entities.AttendanceType, at time.Time) {
	t.Helper()
	require.NoError(t, repo.Append(context.Background(), &entities.AttendanceRecord{
		PersonID: p.ID, PersonType: p.Type, Seq: seq, Type: typ, Timestamp: at,
	}))
}

func TestRepository_Last(t *testing.T) {
	repo, student, _ := setup(t)
	ctx := context.Background()

	_, err := repo.Last(ctx, student)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	now := time.Now().UTC()
	appendRecord(t, repo, student, 1, entities.AttendanceIn, now)
	appendRecord(t, repo, student, 2, entities.AttendanceOut, now.Add(time.Minute))

	last, err := repo.Last(ctx, student)
	require.NoError(t, err)
	assert.Equal(t, 2, last.Seq)
	assert.Equal(t, entities.AttendanceOut, last.Type)
}

func TestRepository_Append_DuplicateSeq(t *testing.T) {
	repo, student, teacher := setup(t)
	now := time.Now().UTC()
	appendRecord(t, repo, student, 1, entities.AttendanceIn, now)

	err := repo.Append(context.Background(), &entities.AttendanceRecord{
		PersonID: student.ID, PersonType: student.Type, Seq: 1, Type: entities.AttendanceIn, Timestamp: now,
	})
	require.Error(t, err)
	assert.True(t, apperr.IsDuplicateKey(err))

	// Sequences are per person.
	appendRecord(t, repo, teacher, 1, entities.AttendanceIn, now)
}

func TestRepository_Logs(t *testing.T) {
	repo, student, teacher := setup(t)
	ctx := context.Background()
	day := time.Date(2024, 5, 6, 8, 0, 0, 0, time.UTC)

	appendRecord(t, repo, student, 1, entities.AttendanceIn, day)
	appendRecord(t, repo, student, 2, entities.AttendanceOut, day.Add(4*time.Hour))
	appendRecord(t, repo, teacher, 1, entities.AttendanceIn, day.AddDate(0, 0, 1))

	t.Run("all", func(t *testing.T) {
		logs, err := repo.Logs(ctx, LogFilter{})
		require.NoError(t, err)
		require.Len(t, logs, 3)
		assert.Equal(t, "Mr. Brown", logs[0].PersonName)
		assert.Equal(t, "Check-in", logs[0].Action)
		assert.Equal(t, "Check-out", logs[1].Action)
	})

	t.Run("date range", func(t *testing.T) {
		logs, err := repo.Logs(ctx, LogFilter{From: day.Truncate(24 * time.Hour), To: day.Truncate(24 * time.Hour).AddDate(0, 0, 1)})
		require.NoError(t, err)
		assert.Len(t, logs, 2)
	})

	t.Run("person type", func(t *testing.T) {
		logs, err := repo.Logs(ctx, LogFilter{PersonType: entities.PersonTeacher})
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, "T-1", logs[0].PersonBarcode)
	})
}

func TestRepository_ForPersonAndCheckedIn(t *testing.T) {
	repo, student, teacher := setup(t)
	ctx := context.Background()
	now := time.Now().UTC()

	appendRecord(t, repo, student, 1, entities.AttendanceIn, now)
	appendRecord(t, repo, student, 2, entities.AttendanceOut, now.Add(time.Minute))
	appendRecord(t, repo, teacher, 1, entities.AttendanceIn, now)

	records, err := repo.ForPerson(ctx, student, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 2, records[0].Seq)

	n, err := repo.CountCheckedIn(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.CountSince(ctx, now.Add(30*time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRepository_CountCheckedInCanceled(t *testing.T) {
	repo, student, _ := setup(t)
	appendRecord(t, repo, student, 1, entities.AttendanceIn, time.Now().UTC())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.CountCheckedIn(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

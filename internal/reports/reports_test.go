package reports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoollib/library/internal/database/dbtest"
	"github.com/schoollib/library/internal/entities"
)

func TestDashboard(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()
	now := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)

	dune := &entities.Book{Barcode: "B-1", Name: "Dune", Quantity: 3, BorrowedCount: 2}
	dune.Recompute()
	emma := &entities.Book{Barcode: "B-2", Name: "Emma", Quantity: 1}
	emma.Recompute()
	require.NoError(t, db.Create(dune).Error)
	require.NoError(t, db.Create(emma).Error)

	ana := &entities.Student{Name: "Ana", Barcode: "S-1", Class: "5B"}
	bo := &entities.Student{Name: "Bo", Barcode: "S-2", Class: "5B"}
	kim := &entities.Teacher{Name: "Kim", Barcode: "T-1"}
	require.NoError(t, db.Create(ana).Error)
	require.NoError(t, db.Create(bo).Error)
	require.NoError(t, db.Create(kim).Error)
	require.NoError(t, db.Create(&entities.User{Username: "desk", Name: "Desk", Role: entities.RoleLibrarian}).Error)

	loans := []entities.BorrowRecord{
		{PersonID: ana.ID, PersonType: entities.PersonStudent, BookID: dune.ID, BorrowDate: now.AddDate(0, 0, -20), DueDate: now.AddDate(0, 0, -6), Status: entities.BorrowOpen},
		{PersonID: kim.ID, PersonType: entities.PersonTeacher, BookID: dune.ID, BorrowDate: now.AddDate(0, 0, -1), DueDate: now.AddDate(0, 0, 13), Status: entities.BorrowOpen},
		{PersonID: bo.ID, PersonType: entities.PersonStudent, BookID: emma.ID, BorrowDate: now.AddDate(0, 0, -30), DueDate: now.AddDate(0, 0, -16), Status: entities.BorrowReturned},
	}
	require.NoError(t, db.Create(&loans).Error)

	attendance := []entities.AttendanceRecord{
		{PersonID: ana.ID, PersonType: entities.PersonStudent, Seq: 1, Type: entities.AttendanceIn, Timestamp: now.AddDate(0, 0, -1)},
		{PersonID: ana.ID, PersonType: entities.PersonStudent, Seq: 2, Type: entities.AttendanceOut, Timestamp: now.AddDate(0, 0, -1).Add(time.Hour)},
		{PersonID: kim.ID, PersonType: entities.PersonTeacher, Seq: 1, Type: entities.AttendanceIn, Timestamp: now.Add(-time.Hour)},
		{PersonID: bo.ID, PersonType: entities.PersonStudent, Seq: 1, Type: entities.AttendanceIn, Timestamp: now.Add(-2 * time.Hour)},
	}
	require.NoError(t, db.Create(&attendance).Error)

	svc := NewService(db)
	svc.now = func() time.Time { return now }

	d, err := svc.Dashboard(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(2), d.Books.Titles)
	assert.Equal(t, int64(4), d.Books.Copies)
	assert.Equal(t, int64(2), d.Books.Available)
	assert.Equal(t, int64(2), d.Books.Borrowed)
	assert.Equal(t, int64(2), d.ActiveBorrows)
	assert.Equal(t, int64(1), d.OverdueBorrows)
	assert.Equal(t, int64(2), d.Students)
	assert.Equal(t, int64(1), d.Teachers)
	assert.Equal(t, int64(1), d.Staff)
	assert.Equal(t, int64(2), d.CheckedIn)
	assert.Equal(t, int64(2), d.TodayAttendance)
	assert.Len(t, d.RecentBorrows, 3)
	assert.Equal(t, "Kim", d.RecentBorrows[0].PersonName)

	require.Len(t, d.Overdue, 1)
	assert.Equal(t, "Ana", d.Overdue[0].PersonName)
	assert.Equal(t, 6, d.Overdue[0].DaysOverdue)
}

func TestDashboard_Empty(t *testing.T) {
	d, err := NewService(dbtest.New(t)).Dashboard(context.Background())
	require.NoError(t, err)
	assert.Zero(t, d.Books.Titles)
	assert.Zero(t, d.ActiveBorrows)
	assert.Empty(t, d.Overdue)
}

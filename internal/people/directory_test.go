package people

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/schoollib/library/internal/apperr"
	"github.com/schoollib/library/internal/auth"
	"github.com/schoollib/library/internal/database/dbtest"
	"github.com/schoollib/library/internal/entities"
)

var admin = entities.Actor{ID: 1, Role: entities.RoleAdmin}

func setup(t *testing.T) (*Directory, *gorm.DB) {
	db := dbtest.New(t)
	return NewDirectory(db, 4, nil), db
}

func TestParseUserType(t *testing.T) {
	for _, s := range []string{"admin", "Student", " teacher "} {
		_, err := ParseUserType(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseUserType("janitor")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = ParseUserType("")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestRegister(t *testing.T) {
	d, db := setup(t)
	ctx := context.Background()

	s, err := d.Register(ctx, admin, TypeStudent, Profile{Name: "Ana", Password: "secret1", Barcode: "S-1", Class: "5B"})
	require.NoError(t, err)
	assert.Equal(t, TypeStudent, s.UserType)
	assert.Equal(t, entities.RoleStudent, s.Role)

	var stored entities.Student
	require.NoError(t, db.First(&stored, s.ID).Error)
	assert.NoError(t, auth.CheckPassword("secret1", stored.PasswordHash))

	tc, err := d.Register(ctx, admin, TypeTeacher, Profile{Name: "Mr. Kim", Password: "secret1", Barcode: "T-1"})
	require.NoError(t, err)
	assert.Equal(t, entities.RoleTeacher, tc.Role)

	a, err := d.Register(ctx, admin, TypeAdmin, Profile{Name: "Desk", Username: "desk", Password: "secret1", Role: entities.RoleLibrarian})
	require.NoError(t, err)
	assert.Equal(t, entities.RoleLibrarian, a.Role)

	a2, err := d.Register(ctx, admin, TypeAdmin, Profile{Name: "Boss", Username: "boss", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, entities.RoleAdmin, a2.Role, "staff role defaults to Admin")
}

func TestRegister_Validation(t *testing.T) {
	d, _ := setup(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		typ     UserType
		profile Profile
	}{
		{"missing name", TypeStudent, Profile{Password: "secret1", Barcode: "S", Class: "1A"}},
		{"student without class", TypeStudent, Profile{Name: "A", Password: "secret1", Barcode: "S"}},
		{"teacher without barcode", TypeTeacher, Profile{Name: "A", Password: "secret1"}},
		{"admin with bad username", TypeAdmin, Profile{Name: "A", Username: "a b", Password: "secret1"}},
		{"admin with student role", TypeAdmin, Profile{Name: "A", Username: "abc", Password: "secret1", Role: entities.RoleStudent}},
		{"short password", TypeTeacher, Profile{Name: "A", Password: "123", Barcode: "T"}},
		{"missing password", TypeTeacher, Profile{Name: "A", Barcode: "T"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Register(ctx, admin, tt.typ, tt.profile)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
}

func TestRegister_BarcodeUniqueAcrossKinds(t *testing.T) {
	d, _ := setup(t)
	ctx := context.Background()

	_, err := d.Register(ctx, admin, TypeStudent, Profile{Name: "Ana", Password: "secret1", Barcode: "X-1", Class: "5B"})
	require.NoError(t, err)

	_, err = d.Register(ctx, admin, TypeTeacher, Profile{Name: "Kim", Password: "secret1", Barcode: "X-1"})
	assert.ErrorIs(t, err, ErrBarcodeTaken)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = d.Register(ctx, admin, TypeStudent, Profile{Name: "Bo", Password: "secret1", Barcode: "X-1", Class: "5B"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = d.Register(ctx, admin, TypeAdmin, Profile{Name: "A", Username: "desk", Password: "secret1"})
	require.NoError(t, err)
	_, err = d.Register(ctx, admin, TypeAdmin, Profile{Name: "B", Username: "desk", Password: "secret1"})
	assert.ErrorIs(t, err, ErrUsernameTaken)
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestRegister_BarcodeClaimedAfterCheck(t *testing.T) {
	d, db := setup(t)
	ctx := context.Background()

	// Insert a student with the same barcode right after the barcode lookup
	// runs, so the write itself trips the unique index.
	fired := false
	err := db.Callback().Query().After("gorm:query").Register("test:claim_barcode", func(tx *gorm.DB) {
		if fired || tx.Statement.Table != "teachers" {
			return
		}
		fired = true
		other := &entities.Student{Name: "Bo", Barcode: "S-9", Class: "4A"}
		if err := tx.Session(&gorm.Session{NewDB: true}).Create(other).Error; err != nil {
			tx.AddError(err)
		}
	})
	require.NoError(t, err)

	_, err = d.Register(ctx, admin, TypeStudent, Profile{Name: "Ana", Password: "secret1", Barcode: "S-9", Class: "5B"})
	require.True(t, fired)
	assert.ErrorIs(t, err, ErrBarcodeTaken)
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestUpdate(t *testing.T) {
	d, db := setup(t)
	ctx := context.Background()

	s, err := d.Register(ctx, admin, TypeStudent, Profile{Name: "Ana", Password: "secret1", Barcode: "S-1", Class: "5B"})
	require.NoError(t, err)
	_, err = d.Register(ctx, admin, TypeTeacher, Profile{Name: "Kim", Password: "secret1", Barcode: "T-1"})
	require.NoError(t, err)

	updated, err := d.Update(ctx, admin, TypeStudent, s.ID, Profile{Name: "Ana Maria", Barcode: "S-1", Class: "6A"})
	require.NoError(t, err)
	assert.Equal(t, "Ana Maria", updated.Name)
	assert.Equal(t, "6A", updated.Class)

	var stored entities.Student
	require.NoError(t, db.First(&stored, s.ID).Error)
	assert.NoError(t, auth.CheckPassword("secret1", stored.PasswordHash), "empty password keeps the old hash")

	_, err = d.Update(ctx, admin, TypeStudent, s.ID, Profile{Name: "Ana", Barcode: "S-1", Class: "6A", Password: "newsecret"})
	require.NoError(t, err)
	require.NoError(t, db.First(&stored, s.ID).Error)
	assert.NoError(t, auth.CheckPassword("newsecret", stored.PasswordHash))

	_, err = d.Update(ctx, admin, TypeStudent, s.ID, Profile{Name: "Ana", Barcode: "T-1", Class: "6A"})
	assert.ErrorIs(t, err, ErrBarcodeTaken)

	_, err = d.Update(ctx, admin, TypeTeacher, 999, Profile{Name: "X", Barcode: "Z"})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestListAndGet(t *testing.T) {
	d, _ := setup(t)
	ctx := context.Background()

	_, err := d.Register(ctx, admin, TypeStudent, Profile{Name: "Ana", Password: "secret1", Barcode: "S-1", Class: "5B"})
	require.NoError(t, err)
	tc, err := d.Register(ctx, admin, TypeTeacher, Profile{Name: "Kim", Password: "secret1", Barcode: "T-1"})
	require.NoError(t, err)
	_, err = d.Register(ctx, admin, TypeAdmin, Profile{Name: "Desk", Username: "desk", Password: "secret1"})
	require.NoError(t, err)

	all, err := d.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	teachers, err := d.List(ctx, TypeTeacher)
	require.NoError(t, err)
	require.Len(t, teachers, 1)
	assert.Equal(t, "Kim", teachers[0].Name)

	got, err := d.Get(ctx, TypeTeacher, tc.ID)
	require.NoError(t, err)
	assert.Equal(t, "T-1", got.Barcode)

	_, err = d.Get(ctx, TypeStudent, tc.ID+100)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	p, err := d.FindByBarcode(ctx, " T-1 ")
	require.NoError(t, err)
	assert.Equal(t, entities.PersonTeacher, p.Type)

	_, err = d.FindByBarcode(ctx, "nope")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestDelete(t *testing.T) {
	d, db := setup(t)
	ctx := context.Background()

	s, err := d.Register(ctx, admin, TypeStudent, Profile{Name: "Ana", Password: "secret1", Barcode: "S-1", Class: "5B"})
	require.NoError(t, err)

	book := &entities.Book{Barcode: "B-1", Name: "Dune", Quantity: 1}
	book.Recompute()
	require.NoError(t, db.Create(book).Error)
	loan := &entities.BorrowRecord{
		PersonID: s.ID, PersonType: entities.PersonStudent, BookID: book.ID,
		BorrowDate: time.Now().UTC(), DueDate: time.Now().UTC().AddDate(0, 0, 14), Status: entities.BorrowOpen,
	}
	require.NoError(t, db.Create(loan).Error)

	err = d.Delete(ctx, admin, TypeStudent, s.ID)
	assert.ErrorIs(t, err, ErrHasActiveBorrows)

	require.NoError(t, db.Model(loan).Update("status", entities.BorrowReturned).Error)
	require.NoError(t, d.Delete(ctx, admin, TypeStudent, s.ID))

	err = d.Delete(ctx, admin, TypeStudent, s.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)

	staff, err := d.Register(ctx, admin, TypeAdmin, Profile{Name: "Desk", Username: "desk", Password: "secret1"})
	require.NoError(t, err)
	err = d.Delete(ctx, entities.Actor{ID: staff.ID, Role: entities.RoleAdmin}, TypeAdmin, staff.ID)
	assert.ErrorIs(t, err, ErrDeleteSelf)
	require.NoError(t, d.Delete(ctx, entities.Actor{ID: staff.ID + 1, Role: entities.RoleAdmin}, TypeAdmin, staff.ID))
}

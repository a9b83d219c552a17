// Package people provides database operations for students, teachers and
// staff accounts.
//
// Students and teachers live in separate tables; callers that only need
// identity work with entities.Person, which both convert to.
package people

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/schoollib/library/internal/entities"
)

// Repository handles all people database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new people repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateStudent(ctx context.Context, s *entities.Student) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *Repository) CreateTeacher(ctx context.Context, t *entities.Teacher) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *Repository) CreateUser(ctx context.Context, u *entities.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *Repository) GetStudent(ctx context.Context, id uint) (*entities.Student, error) {
	var s entities.Student
	if err := r.db.WithContext(ctx).First(&s, id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repository) GetTeacher(ctx context.Context, id uint) (*entities.Teacher, error) {
	var t entities.Teacher
	if err := r.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *Repository) GetUser(ctx context.Context, id uint) (*entities.User, error) {
	var u entities.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repository) GetStudentByBarcode(ctx context.Context, barcode string) (*entities.Student, error) {
	var s entities.Student
	if err := r.db.WithContext(ctx).Where("barcode = ?", barcode).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repository) GetTeacherByBarcode(ctx context.Context, barcode string) (*entities.Teacher, error) {
	var t entities.Teacher
	if err := r.db.WithContext(ctx).Where("barcode = ?", barcode).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*entities.User, error) {
	var u entities.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// FindByBarcode resolves a barcode to a person, trying students before
// teachers. It returns gorm.ErrRecordNotFound when neither matches.
func (r *Repository) FindByBarcode(ctx context.Context, barcode string) (*entities.Person, error) {
	s, err := r.GetStudentByBarcode(ctx, barcode)
	if err == nil {
		p := s.Person()
		return &p, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	t, err := r.GetTeacherByBarcode(ctx, barcode)
	if err != nil {
		return nil, err
	}
	p := t.Person()
	return &p, nil
}

// Find loads the person a reference points at.
func (r *Repository) Find(ctx context.Context, ref entities.PersonRef) (*entities.Person, error) {
	var p entities.Person
	switch ref.Type {
	case entities.PersonStudent:
		s, err := r.GetStudent(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		p = s.Person()
	case entities.PersonTeacher:
		t, err := r.GetTeacher(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		p = t.Person()
	default:
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

// BarcodeInUse reports whether any student or teacher other than except
// already carries barcode.
func (r *Repository) BarcodeInUse(ctx context.Context, barcode string, except *entities.PersonRef) (bool, error) {
	var n int64
	q := r.db.WithContext(ctx).Model(&entities.Student{}).Where("barcode = ?", barcode)
	if except != nil && except.Type == entities.PersonStudent {
		q = q.Where("id <> ?", except.ID)
	}
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}

	q = r.db.WithContext(ctx).Model(&entities.Teacher{}).Where("barcode = ?", barcode)
	if except != nil && except.Type == entities.PersonTeacher {
		q = q.Where("id <> ?", except.ID)
	}
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Repository) ListStudents(ctx context.Context) ([]entities.Student, error) {
	var out []entities.Student
	err := r.db.WithContext(ctx).Order("name ASC").Find(&out).Error
	return out, err
}

func (r *Repository) ListTeachers(ctx context.Context) ([]entities.Teacher, error) {
	var out []entities.Teacher
	err := r.db.WithContext(ctx).Order("name ASC").Find(&out).Error
	return out, err
}

func (r *Repository) ListUsers(ctx context.Context) ([]entities.User, error) {
	var out []entities.User
	err := r.db.WithContext(ctx).Order("username ASC").Find(&out).Error
	return out, err
}

// UpdateStudent writes name, barcode, class, photo and (when set) the password hash.
func (r *Repository) UpdateStudent(ctx context.Context, s *entities.Student) error {
	cols := []string{"name", "barcode", "class", "photo"}
	if s.PasswordHash != "" {
		cols = append(cols, "password_hash")
	}
	return r.db.WithContext(ctx).Model(s).Select(cols).Updates(s).Error
}

func (r *Repository) UpdateTeacher(ctx context.Context, t *entities.Teacher) error {
	cols := []string{"name", "barcode", "photo"}
	if t.PasswordHash != "" {
		cols = append(cols, "password_hash")
	}
	return r.db.WithContext(ctx).Model(t).Select(cols).Updates(t).Error
}

func (r *Repository) UpdateUser(ctx context.Context, u *entities.User) error {
	cols := []string{"username", "name", "role"}
	if u.PasswordHash != "" {
		cols = append(cols, "password_hash")
	}
	return r.db.WithContext(ctx).Model(u).Select(cols).Updates(u).Error
}

func (r *Repository) DeleteStudent(ctx context.Context, id uint) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&entities.Student{}, id)
	return res.RowsAffected, res.Error
}

func (r *Repository) DeleteTeacher(ctx context.Context, id uint) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&entities.Teacher{}, id)
	return res.RowsAffected, res.Error
}

func (r *Repository) DeleteUser(ctx context.Context, id uint) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&entities.User{}, id)
	return res.RowsAffected, res.Error
}

// Counts returns the number of students and teachers.
func (r *Repository) Counts(ctx context.Context) (students, teachers int64, err error) {
	if err = r.db.WithContext(ctx).Model(&entities.Student{}).Count(&students).Error; err != nil {
		return 0, 0, err
	}
	err = r.db.WithContext(ctx).Model(&entities.Teacher{}).Count(&teachers).Error
	return students, teachers, err
}

// CountUsers returns the number of staff accounts.
func (r *Repository) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entities.User{}).Count(&n).Error
	return n, err
}

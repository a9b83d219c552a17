// Package people manages the three account kinds: staff (admins and
// librarians), students and teachers.
//
// Students and teachers are scanned by barcode at the desk, so a barcode
// may belong to at most one person across both tables.
package people

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/schoollib/library/internal/apperr"
	"github.com/schoollib/library/internal/audit"
	"github.com/schoollib/library/internal/auth"
	"github.com/schoollib/library/internal/database/borrows"
	dbpeople "github.com/schoollib/library/internal/database/people"
	"github.com/schoollib/library/internal/entities"
)

// UserType selects which kind of account an operation addresses.
type UserType string

const (
	TypeAdmin   UserType = "admin"
	TypeStudent          = UserType(entities.PersonStudent)
	TypeTeacher          = UserType(entities.PersonTeacher)
)

// ParseUserType validates s. The empty string is rejected.
func ParseUserType(s string) (UserType, error) {
	switch t := UserType(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeAdmin, TypeStudent, TypeTeacher:
		return t, nil
	}
	return "", apperr.Validation("invalid user type %q", s)
}

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,64}$`)

var (
	ErrUserNotFound     = apperr.New(apperr.ErrNotFound, "user not found")
	ErrBarcodeTaken     = apperr.New(apperr.ErrConflict, "barcode already exists")
	ErrUsernameTaken    = apperr.New(apperr.ErrConflict, "username already exists")
	ErrHasActiveBorrows = apperr.New(apperr.ErrConflict, "cannot delete user with active borrows")
	ErrDeleteSelf       = apperr.New(apperr.ErrConflict, "cannot delete your own account")
)

// Entry is the uniform listing row for any account kind.
type Entry struct {
	ID        uint          `json:"id"`
	UserType  UserType      `json:"user_type"`
	Name      string        `json:"name"`
	Username  string        `json:"username,omitempty"`
	Role      entities.Role `json:"role"`
	Barcode   string        `json:"barcode,omitempty"`
	Class     string        `json:"class,omitempty"`
	Photo     string        `json:"photo,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// Profile carries the editable fields of an account. Fields that do not
// apply to the account kind are ignored. An empty Password on update keeps
// the current one.
type Profile struct {
	Name     string        `json:"name"`
	Password string        `json:"password"`
	Username string        `json:"username"`
	Role     entities.Role `json:"role"`
	Barcode  string        `json:"barcode"`
	Class    string        `json:"class"`
	Photo    string        `json:"photo"`
}

func (p *Profile) normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Username = strings.TrimSpace(p.Username)
	p.Barcode = strings.TrimSpace(p.Barcode)
	p.Class = strings.TrimSpace(p.Class)
}

func (p Profile) validate(t UserType, creating bool) error {
	if p.Name == "" {
		return apperr.Validation("name is required")
	}
	if creating && p.Password == "" {
		return apperr.Validation("password is required")
	}
	switch t {
	case TypeAdmin:
		if !usernamePattern.MatchString(p.Username) {
			return apperr.Validation("username must be 3-64 characters: letters, digits, dot, underscore or hyphen")
		}
		if p.Role != "" && !p.Role.Privileged() {
			return apperr.Validation("staff role must be Admin or Librarian")
		}
	case TypeStudent:
		if p.Barcode == "" || p.Class == "" {
			return apperr.Validation("barcode and class are required for students")
		}
	case TypeTeacher:
		if p.Barcode == "" {
			return apperr.Validation("barcode is required for teachers")
		}
	}
	return nil
}

type Directory struct {
	db         *gorm.DB
	bcryptCost int
	audit      *audit.Service
}

func NewDirectory(db *gorm.DB, bcryptCost int, auditSvc *audit.Service) *Directory {
	return &Directory{db: db, bcryptCost: bcryptCost, audit: auditSvc}
}

// Register creates an account of kind t.
func (d *Directory) Register(ctx context.Context, actor entities.Actor, t UserType, p Profile) (*Entry, error) {
	p.normalize()
	if err := p.validate(t, true); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(p.Password, d.bcryptCost)
	if err != nil {
		return nil, err
	}

	var entry Entry
	err = d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := dbpeople.NewRepository(tx)
		switch t {
		case TypeAdmin:
			role := p.Role
			if role == "" {
				role = entities.RoleAdmin
			}
			u := &entities.User{Username: p.Username, Name: p.Name, PasswordHash: hash, Role: role}
			if err := repo.CreateUser(ctx, u); err != nil {
				return apperr.FromDB(err, "create user", ErrUsernameTaken)
			}
			entry = userEntry(u)
		case TypeStudent:
			if err := ensureBarcodeFree(ctx, repo, p.Barcode, nil); err != nil {
				return err
			}
			s := &entities.Student{Name: p.Name, Barcode: p.Barcode, Class: p.Class, Photo: p.Photo, PasswordHash: hash}
			if err := repo.CreateStudent(ctx, s); err != nil {
				return apperr.FromDB(err, "create student", ErrBarcodeTaken)
			}
			entry = studentEntry(s)
		case TypeTeacher:
			if err := ensureBarcodeFree(ctx, repo, p.Barcode, nil); err != nil {
				return err
			}
			tc := &entities.Teacher{Name: p.Name, Barcode: p.Barcode, Photo: p.Photo, PasswordHash: hash}
			if err := repo.CreateTeacher(ctx, tc); err != nil {
				return apperr.FromDB(err, "create teacher", ErrBarcodeTaken)
			}
			entry = teacherEntry(tc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	d.audit.LogPeople(actor, "create", string(t), entry.ID, fmt.Sprintf("Created %s %q", t, entry.Name))
	return &entry, nil
}

// List returns accounts of kind t, or of every kind when t is empty.
func (d *Directory) List(ctx context.Context, t UserType) ([]Entry, error) {
	repo := dbpeople.NewRepository(d.db)
	out := []Entry{}

	if t == "" || t == TypeAdmin {
		users, err := repo.ListUsers(ctx)
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		for i := range users {
			out = append(out, userEntry(&users[i]))
		}
	}
	if t == "" || t == TypeStudent {
		students, err := repo.ListStudents(ctx)
		if err != nil {
			return nil, fmt.Errorf("list students: %w", err)
		}
		for i := range students {
			out = append(out, studentEntry(&students[i]))
		}
	}
	if t == "" || t == TypeTeacher {
		teachers, err := repo.ListTeachers(ctx)
		if err != nil {
			return nil, fmt.Errorf("list teachers: %w", err)
		}
		for i := range teachers {
			out = append(out, teacherEntry(&teachers[i]))
		}
	}
	return out, nil
}

func (d *Directory) Get(ctx context.Context, t UserType, id uint) (*Entry, error) {
	repo := dbpeople.NewRepository(d.db)
	var entry Entry
	switch t {
	case TypeAdmin:
		u, err := repo.GetUser(ctx, id)
		if err != nil {
			return nil, notFound(err, "load user")
		}
		entry = userEntry(u)
	case TypeStudent:
		s, err := repo.GetStudent(ctx, id)
		if err != nil {
			return nil, notFound(err, "load student")
		}
		entry = studentEntry(s)
	case TypeTeacher:
		tc, err := repo.GetTeacher(ctx, id)
		if err != nil {
			return nil, notFound(err, "load teacher")
		}
		entry = teacherEntry(tc)
	default:
		return nil, apperr.Validation("invalid user type %q", t)
	}
	return &entry, nil
}

// Update replaces the editable fields of an account.
func (d *Directory) Update(ctx context.Context, actor entities.Actor, t UserType, id uint, p Profile) (*Entry, error) {
	p.normalize()
	if err := p.validate(t, false); err != nil {
		return nil, err
	}
	var hash string
	if p.Password != "" {
		var err error
		if hash, err = auth.HashPassword(p.Password, d.bcryptCost); err != nil {
			return nil, err
		}
	}

	var entry Entry
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := dbpeople.NewRepository(tx)
		switch t {
		case TypeAdmin:
			u, err := repo.GetUser(ctx, id)
			if err != nil {
				return notFound(err, "load user")
			}
			u.Name, u.Username = p.Name, p.Username
			if hash != "" {
				u.PasswordHash = hash
			}
			if p.Role != "" {
				u.Role = p.Role
			}
			if err := repo.UpdateUser(ctx, u); err != nil {
				return apperr.FromDB(err, "update user", ErrUsernameTaken)
			}
			entry = userEntry(u)
		case TypeStudent:
			s, err := repo.GetStudent(ctx, id)
			if err != nil {
				return notFound(err, "load student")
			}
			if err := ensureBarcodeFree(ctx, repo, p.Barcode, &entities.PersonRef{ID: id, Type: entities.PersonStudent}); err != nil {
				return err
			}
			s.Name, s.Barcode, s.Class = p.Name, p.Barcode, p.Class
			if hash != "" {
				s.PasswordHash = hash
			}
			if p.Photo != "" {
				s.Photo = p.Photo
			}
			if err := repo.UpdateStudent(ctx, s); err != nil {
				return apperr.FromDB(err, "update student", ErrBarcodeTaken)
			}
			entry = studentEntry(s)
		case TypeTeacher:
			tc, err := repo.GetTeacher(ctx, id)
			if err != nil {
				return notFound(err, "load teacher")
			}
			if err := ensureBarcodeFree(ctx, repo, p.Barcode, &entities.PersonRef{ID: id, Type: entities.PersonTeacher}); err != nil {
				return err
			}
			tc.Name, tc.Barcode = p.Name, p.Barcode
			if hash != "" {
				tc.PasswordHash = hash
			}
			if p.Photo != "" {
				tc.Photo = p.Photo
			}
			if err := repo.UpdateTeacher(ctx, tc); err != nil {
				return apperr.FromDB(err, "update teacher", ErrBarcodeTaken)
			}
			entry = teacherEntry(tc)
		default:
			return apperr.Validation("invalid user type %q", t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	d.audit.LogPeople(actor, "update", string(t), id, fmt.Sprintf("Updated %s %q", t, entry.Name))
	return &entry, nil
}

// Delete removes an account. Students and teachers holding open borrows
// cannot be deleted, and staff cannot delete themselves.
func (d *Directory) Delete(ctx context.Context, actor entities.Actor, t UserType, id uint) error {
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := dbpeople.NewRepository(tx)

		var deleted int64
		var err error
		switch t {
		case TypeAdmin:
			if actor.Role.Privileged() && actor.ID == id {
				return ErrDeleteSelf
			}
			deleted, err = repo.DeleteUser(ctx, id)
		case TypeStudent, TypeTeacher:
			ref := entities.PersonRef{ID: id, Type: entities.PersonType(t)}
			open, cerr := borrows.NewRepository(tx).CountOpenForPerson(ctx, ref)
			if cerr != nil {
				return fmt.Errorf("count open borrows: %w", cerr)
			}
			if open > 0 {
				return ErrHasActiveBorrows
			}
			if t == TypeStudent {
				deleted, err = repo.DeleteStudent(ctx, id)
			} else {
				deleted, err = repo.DeleteTeacher(ctx, id)
			}
		default:
			return apperr.Validation("invalid user type %q", t)
		}
		if err != nil {
			return fmt.Errorf("delete %s: %w", t, err)
		}
		if deleted == 0 {
			return ErrUserNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	d.audit.LogPeople(actor, "delete", string(t), id, fmt.Sprintf("Deleted %s #%d", t, id))
	return nil
}

// FindByBarcode resolves a scanned barcode, trying students before teachers.
func (d *Directory) FindByBarcode(ctx context.Context, barcode string) (*entities.Person, error) {
	p, err := dbpeople.NewRepository(d.db).FindByBarcode(ctx, strings.TrimSpace(barcode))
	if err != nil {
		return nil, notFound(err, "resolve barcode")
	}
	return p, nil
}

func (d *Directory) Find(ctx context.Context, ref entities.PersonRef) (*entities.Person, error) {
	p, err := dbpeople.NewRepository(d.db).Find(ctx, ref)
	if err != nil {
		return nil, notFound(err, "load person")
	}
	return p, nil
}

// CountStaff returns the number of staff accounts.
func (d *Directory) CountStaff(ctx context.Context) (int64, error) {
	return dbpeople.NewRepository(d.db).CountUsers(ctx)
}

func ensureBarcodeFree(ctx context.Context, repo *dbpeople.Repository, barcode string, except *entities.PersonRef) error {
	taken, err := repo.BarcodeInUse(ctx, barcode, except)
	if err != nil {
		return fmt.Errorf("check barcode: %w", err)
	}
	if taken {
		return ErrBarcodeTaken
	}
	return nil
}

func notFound(err error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func userEntry(u *entities.User) Entry {
	return Entry{ID: u.ID, UserType: TypeAdmin, Name: u.Name, Username: u.Username, Role: u.Role, CreatedAt: u.CreatedAt}
}

func studentEntry(s *entities.Student) Entry {
	return Entry{ID: s.ID, UserType: TypeStudent, Name: s.Name, Role: entities.RoleStudent, Barcode: s.Barcode, Class: s.Class, Photo: s.Photo, CreatedAt: s.CreatedAt}
}

func teacherEntry(t *entities.Teacher) Entry {
	return Entry{ID: t.ID, UserType: TypeTeacher, Name: t.Name, Role: entities.RoleTeacher, Barcode: t.Barcode, Photo: t.Photo, CreatedAt: t.CreatedAt}
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/schoollib/library/internal/apperr"
	"github.com/schoollib/library/internal/config"
	"github.com/schoollib/library/internal/database/people"
	"github.com/schoollib/library/internal/entities"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidUserType    = apperr.New(apperr.ErrValidation, "user type must be admin, student or teacher")
	ErrTokenRevoked       = errors.New("token revoked")
	ErrAccountGone        = errors.New("account no longer exists")
)

// LoginResult is returned to a client after a successful login.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      Identity  `json:"user"`
}

// Service handles authentication for staff, students and teachers.
type Service struct {
	db      *gorm.DB
	config  config.Auth
	tokens  *TokenIssuer
	revoker Revoker
}

func NewService(db *gorm.DB, cfg config.Auth, tokens *TokenIssuer, revoker Revoker) *Service {
	if revoker == nil {
		revoker = NewMemoryRevoker()
	}
	return &Service{
		db:      db,
		config:  cfg,
		tokens:  tokens,
		revoker: revoker,
	}
}

// Authenticate checks credentials. Staff log in by username, students and
// teachers by barcode.
func (s *Service) Authenticate(ctx context.Context, userType, login, password string) (*Identity, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	repo := people.NewRepository(s.db)
	var (
		ident Identity
		hash  string
		err   error
	)
	switch userType {
	case UserTypeAdmin:
		var u *entities.User
		if u, err = repo.GetUserByUsername(ctx, login); err == nil {
			ident, hash = staffIdentity(u), u.PasswordHash
		}
	case string(entities.PersonStudent):
		var st *entities.Student
		if st, err = repo.GetStudentByBarcode(ctx, login); err == nil {
			ident, hash = studentIdentity(st), st.PasswordHash
		}
	case string(entities.PersonTeacher):
		var t *entities.Teacher
		if t, err = repo.GetTeacherByBarcode(ctx, login); err == nil {
			ident, hash = teacherIdentity(t), t.PasswordHash
		}
	default:
		return nil, ErrInvalidUserType
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}

	if hash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := CheckPassword(password, hash); err != nil {
		if errors.Is(err, ErrInvalidPassword) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	return &ident, nil
}

// Login authenticates and issues a bearer token.
func (s *Service) Login(ctx context.Context, userType, login, password string) (*LoginResult, error) {
	ident, err := s.Authenticate(ctx, userType, login, password)
	if err != nil {
		return nil, err
	}
	token, err := s.tokens.Issue(ident)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: ident.ExpiresAt, User: *ident}, nil
}

// ResolveToken verifies a bearer token, rejects revoked tokens and reloads
// the account so deletions and role changes apply immediately.
func (s *Service) ResolveToken(ctx context.Context, token string) (*Identity, error) {
	claimed, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	revoked, err := s.revoker.IsRevoked(ctx, claimed.TokenID)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	ident, err := s.Refresh(ctx, *claimed)
	if err != nil {
		return nil, err
	}
	ident.TokenID, ident.ExpiresAt, ident.Via = claimed.TokenID, claimed.ExpiresAt, AuthTypeBearer
	return ident, nil
}

// Refresh reloads the account ident refers to.
func (s *Service) Refresh(ctx context.Context, ident Identity) (*Identity, error) {
	repo := people.NewRepository(s.db)
	var (
		fresh Identity
		err   error
	)
	switch ident.UserType {
	case UserTypeAdmin:
		var u *entities.User
		if u, err = repo.GetUser(ctx, ident.ID); err == nil {
			fresh = staffIdentity(u)
		}
	case string(entities.PersonStudent):
		var st *entities.Student
		if st, err = repo.GetStudent(ctx, ident.ID); err == nil {
			fresh = studentIdentity(st)
		}
	case string(entities.PersonTeacher):
		var t *entities.Teacher
		if t, err = repo.GetTeacher(ctx, ident.ID); err == nil {
			fresh = teacherIdentity(t)
		}
	default:
		return nil, ErrInvalidUserType
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccountGone
	}
	if err != nil {
		return nil, err
	}
	return &fresh, nil
}

// Logout revokes the caller's bearer token until it expires.
func (s *Service) Logout(ctx context.Context, ident *Identity) error {
	if ident == nil || ident.TokenID == "" {
		return nil
	}
	return s.revoker.Revoke(ctx, ident.TokenID, ident.ExpiresAt)
}

// HasStaff reports whether any staff account exists.
func (s *Service) HasStaff(ctx context.Context) (bool, error) {
	n, err := people.NewRepository(s.db).CountUsers(ctx)
	return n > 0, err
}

func staffIdentity(u *entities.User) Identity {
	return Identity{ID: u.ID, UserType: UserTypeAdmin, Role: u.Role, Name: u.Name}
}

func studentIdentity(s *entities.Student) Identity {
	return Identity{ID: s.ID, UserType: string(entities.PersonStudent), Role: entities.RoleStudent, Name: s.Name}
}

func teacherIdentity(t *entities.Teacher) Identity {
	return Identity{ID: t.ID, UserType: string(entities.PersonTeacher), Role: entities.RoleTeacher, Name: t.Name}
}

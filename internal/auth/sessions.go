package auth

import (
	"database/sql"
	"encoding/gob"
	"net/http"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"

	"github.com/schoollib/library/internal/config"
	"github.com/schoollib/library/internal/entities"
)

// Session data keys
const (
	SessionKeyUserID   = "user_id"
	SessionKeyUserType = "user_type"
	SessionKeyRole     = "role"
	SessionKeyName     = "name"
	SessionKeyLoginAt  = "login_at"
)

func init() {
	gob.Register(time.Time{})
}

// SessionManager wraps scs.SessionManager for cookie logins from the
// library front desk.
type SessionManager struct {
	*scs.SessionManager
}

// NewSessionManager creates a configured session manager. Sessions are kept
// in the sqlite database when sqlDB is set and in memory otherwise.
func NewSessionManager(sqlDB *sql.DB, cfg config.Auth) (*SessionManager, error) {
	sm := scs.New()

	if sqlDB != nil {
		_, err := sqlDB.Exec(`CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		expiry REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS sessions_expiry_idx ON sessions(expiry);`)
		if err != nil {
			return nil, err
		}
		sm.Store = sqlite3store.New(sqlDB)
	} else {
		sm.Store = memstore.New()
	}

	lifetime := cfg.SessionLifetime
	if lifetime <= 0 {
		lifetime = 12 * time.Hour
	}
	sm.Lifetime = lifetime
	sm.IdleTimeout = lifetime / 2

	sm.Cookie.Name = "library_session"
	sm.Cookie.HttpOnly = true
	sm.Cookie.Secure = cfg.SecureCookies
	sm.Cookie.SameSite = http.SameSiteStrictMode
	sm.Cookie.Path = "/"

	return &SessionManager{SessionManager: sm}, nil
}

// CreateSession stores ident in a fresh session after a successful login.
func (sm *SessionManager) CreateSession(r *http.Request, ident *Identity) error {
	// Renew token to prevent session fixation
	if err := sm.RenewToken(r.Context()); err != nil {
		return err
	}

	sm.Put(r.Context(), SessionKeyUserID, int(ident.ID))
	sm.Put(r.Context(), SessionKeyUserType, ident.UserType)
	sm.Put(r.Context(), SessionKeyRole, string(ident.Role))
	sm.Put(r.Context(), SessionKeyName, ident.Name)
	sm.Put(r.Context(), SessionKeyLoginAt, time.Now().UTC())
	return nil
}

// DestroySession removes all session data and invalidates the session.
func (sm *SessionManager) DestroySession(r *http.Request) error {
	return sm.Destroy(r.Context())
}

// HasSession reports whether the request carries a logged-in session.
func (sm *SessionManager) HasSession(r *http.Request) bool {
	return sm.GetInt(r.Context(), SessionKeyUserID) != 0
}

// SessionData holds the session information for a request.
type SessionData struct {
	UserID   uint
	UserType string
	Role     entities.Role
	Name     string
	LoginAt  time.Time
}

// GetSessionData returns the logged-in session, or nil.
func (sm *SessionManager) GetSessionData(r *http.Request) *SessionData {
	ctx := r.Context()
	userID := sm.GetInt(ctx, SessionKeyUserID)
	if userID <= 0 {
		return nil
	}
	loginAt, _ := sm.Get(ctx, SessionKeyLoginAt).(time.Time)
	return &SessionData{
		UserID:   uint(userID),
		UserType: sm.GetString(ctx, SessionKeyUserType),
		Role:     entities.Role(sm.GetString(ctx, SessionKeyRole)),
		Name:     sm.GetString(ctx, SessionKeyName),
		LoginAt:  loginAt,
	}
}

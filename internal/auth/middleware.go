package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/schoollib/library/internal/entities"
)

// ContextKeyIdentity holds the authenticated *Identity in the gin context.
const ContextKeyIdentity = "auth_identity"

// AuthType indicates how the caller was authenticated
type AuthType string

const (
	AuthTypeSession AuthType = "session"
	AuthTypeBearer  AuthType = "bearer"
)

// UserTypeAdmin is the login kind of staff accounts; students and teachers
// use their entities.PersonType.
const UserTypeAdmin = "admin"

// Identity is the authenticated caller.
type Identity struct {
	ID        uint          `json:"id"`
	UserType  string        `json:"user_type"`
	Role      entities.Role `json:"role"`
	Name      string        `json:"name"`
	TokenID   string        `json:"-"`
	ExpiresAt time.Time     `json:"-"`
	Via       AuthType      `json:"-"`
}

func (i Identity) Actor() entities.Actor {
	return entities.Actor{ID: i.ID, Role: i.Role}
}

// Middleware authenticates requests by bearer token, then by session cookie.
type Middleware struct {
	service        *Service
	sessionManager *SessionManager
	publicPaths    map[string]bool
}

func NewMiddleware(service *Service, sessionManager *SessionManager) *Middleware {
	publicPaths := map[string]bool{
		"/health":         true,
		"/ping":           true,
		"/api/auth/login": true,
		"/api/auth/csrf":  true,
	}

	return &Middleware{
		service:        service,
		sessionManager: sessionManager,
		publicPaths:    publicPaths,
	}
}

// Handler returns a Gin middleware that resolves the caller and rejects
// unauthenticated requests to non-public paths.
func (m *Middleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if ident := m.tryBearerAuth(c); ident != nil {
			c.Set(ContextKeyIdentity, ident)
			c.Next()
			return
		}

		if ident := m.trySessionAuth(c); ident != nil {
			c.Set(ContextKeyIdentity, ident)
			c.Next()
			return
		}

		if m.publicPaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "authentication required",
		})
	}
}

func bearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func (m *Middleware) tryBearerAuth(c *gin.Context) *Identity {
	token := bearerToken(c.Request)
	if token == "" {
		return nil
	}
	ident, err := m.service.ResolveToken(c.Request.Context(), token)
	if err != nil {
		return nil
	}
	return ident
}

func (m *Middleware) trySessionAuth(c *gin.Context) *Identity {
	if m.sessionManager == nil {
		return nil
	}
	data := m.sessionManager.GetSessionData(c.Request)
	if data == nil {
		return nil
	}
	ident, err := m.service.Refresh(c.Request.Context(), Identity{ID: data.UserID, UserType: data.UserType})
	if err != nil {
		return nil
	}
	ident.Via = AuthTypeSession
	return ident
}

// RequireRole returns a middleware that requires one of roles.
func RequireRole(roles ...entities.Role) gin.HandlerFunc {
	roleSet := make(map[entities.Role]bool)
	for _, r := range roles {
		roleSet[r] = true
	}

	return func(c *gin.Context) {
		ident := GetIdentity(c)
		if ident == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		if !roleSet[ident.Role] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
			return
		}
		c.Next()
	}
}

// RequirePrivileged admits Admin and Librarian callers.
func RequirePrivileged() gin.HandlerFunc {
	return RequireRole(entities.RoleAdmin, entities.RoleLibrarian)
}

// RequirePerson admits students and teachers.
func RequirePerson() gin.HandlerFunc {
	return RequireRole(entities.RoleStudent, entities.RoleTeacher)
}

// GetIdentity returns the authenticated caller, or nil.
func GetIdentity(c *gin.Context) *Identity {
	if v, exists := c.Get(ContextKeyIdentity); exists {
		if ident, ok := v.(*Identity); ok {
			return ident
		}
	}
	return nil
}

// GetActor returns the caller as a domain actor. ok is false when the
// request is unauthenticated.
func GetActor(c *gin.Context) (entities.Actor, bool) {
	ident := GetIdentity(c)
	if ident == nil {
		return entities.Actor{}, false
	}
	return ident.Actor(), true
}

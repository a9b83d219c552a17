package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/schoollib/library/internal/entities"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupMiddlewareRouter(t *testing.T) (*gin.Engine, *Service, testAccounts) {
	t.Helper()

	service, _, acc := setupService(t)
	router := gin.New()
	router.Use(NewMiddleware(service, nil).Handler())

	whoami := func(c *gin.Context) {
		ident := GetIdentity(c)
		if ident == nil {
			c.JSON(http.StatusOK, gin.H{"anonymous": true})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": ident.ID, "role": ident.Role, "via": ident.Via})
	}
	router.GET("/health", whoami)
	router.GET("/api/books", whoami)
	router.GET("/api/reports/dashboard", RequirePrivileged(), whoami)
	router.POST("/api/attendance/checkin", RequirePerson(), whoami)
	return router, service, acc
}

func bearerRequest(method, path, token string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func loginToken(t *testing.T, service *Service, userType, login string) string {
	t.Helper()
	result, err := service.Login(context.Background(), userType, login, testPassword)
	if err != nil {
		t.Fatalf("Login(%s) error = %v", login, err)
	}
	return result.Token
}

func TestMiddleware_PublicPaths(t *testing.T) {
	router, _, _ := setupMiddlewareRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, bearerRequest(http.MethodGet, "/health", ""))
	if rr.Code != http.StatusOK {
		t.Errorf("GET /health: expected 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, bearerRequest(http.MethodGet, "/api/books", ""))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("GET /api/books: expected 401, got %d", rr.Code)
	}
}

func TestMiddleware_BearerAuth(t *testing.T) {
	router, service, acc := setupMiddlewareRouter(t)
	token := loginToken(t, service, "student", "S-1001")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, bearerRequest(http.MethodGet, "/api/books", token))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var body struct {
		ID   uint          `json:"id"`
		Role entities.Role `json:"role"`
		Via  AuthType      `json:"via"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.ID != acc.student.ID || body.Role != entities.RoleStudent || body.Via != AuthTypeBearer {
		t.Errorf("unexpected identity %+v", body)
	}

	// Public paths still see the caller.
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, bearerRequest(http.MethodGet, "/health", token))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil || body.ID != acc.student.ID {
		t.Errorf("expected identity on public path, got %s", rr.Body.String())
	}
}

func TestMiddleware_RejectsBadTokens(t *testing.T) {
	router, service, _ := setupMiddlewareRouter(t)
	token := loginToken(t, service, UserTypeAdmin, "librarian")

	ident, err := service.ResolveToken(context.Background(), token)
	if err != nil {
		t.Fatalf("ResolveToken() error = %v", err)
	}
	if err := service.Logout(context.Background(), ident); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}

	for name, tok := range map[string]string{"garbage": "abc.def.ghi", "revoked": token} {
		t.Run(name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, bearerRequest(http.MethodGet, "/api/books", tok))
			if rr.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rr.Code)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	router, service, _ := setupMiddlewareRouter(t)
	staff := loginToken(t, service, UserTypeAdmin, "librarian")
	student := loginToken(t, service, "student", "S-1001")
	teacher := loginToken(t, service, "teacher", "T-2001")

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"staff on dashboard", http.MethodGet, "/api/reports/dashboard", staff, http.StatusOK},
		{"student on dashboard", http.MethodGet, "/api/reports/dashboard", student, http.StatusForbidden},
		{"teacher checks in", http.MethodPost, "/api/attendance/checkin", teacher, http.StatusOK},
		{"staff checks in", http.MethodPost, "/api/attendance/checkin", staff, http.StatusForbidden},
		{"anonymous", http.MethodGet, "/api/reports/dashboard", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, bearerRequest(tt.method, tt.path, tt.token))
			if rr.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rr.Code)
			}
		})
	}
}

func TestGetActor(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if _, ok := GetActor(c); ok {
		t.Error("expected no actor on empty context")
	}

	c.Set(ContextKeyIdentity, &Identity{ID: 4, Role: entities.RoleTeacher})
	actor, ok := GetActor(c)
	if !ok || actor.ID != 4 || actor.Role != entities.RoleTeacher {
		t.Errorf("GetActor() = %+v, %v", actor, ok)
	}
	ref, ok := actor.PersonRef()
	if !ok || ref.Type != entities.PersonTeacher {
		t.Errorf("PersonRef() = %+v, %v", ref, ok)
	}
}

package auth

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/schoollib/library/internal/audit"
	"github.com/schoollib/library/internal/config"
	"github.com/schoollib/library/internal/entities"
)

// AuthController handles the login, logout and identity endpoints.
type AuthController struct {
	service        *Service
	sessionManager *SessionManager
	audit          *audit.Service
	rateLimiter    *RateLimiter
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	UserType string `json:"userType" binding:"required"`
}

// NewAuthController creates the controller. sessionManager may be nil when
// cookie sessions are disabled.
func NewAuthController(service *Service, sessionManager *SessionManager, auditSvc *audit.Service, cfg config.Auth) *AuthController {
	return &AuthController{
		service:        service,
		sessionManager: sessionManager,
		audit:          auditSvc,
		rateLimiter: NewRateLimiter(RateLimitConfig{
			MaxAttempts: cfg.MaxLoginAttempts,
			Window:      cfg.RateLimitWindow,
			Lockout:     cfg.LockoutDuration,
		}),
	}
}

func (ac *AuthController) RegisterRoutes(api *gin.RouterGroup) {
	g := api.Group("/auth")
	g.POST("/login", ac.Login)
	g.POST("/logout", ac.Logout)
	g.GET("/me", ac.Me)
	g.GET("/csrf", ac.CSRF)
}

// Stop releases the rate limiter's cleanup goroutine.
func (ac *AuthController) Stop() {
	ac.rateLimiter.Stop()
}

func (ac *AuthController) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username, password and userType are required"})
		return
	}

	ip := c.ClientIP()
	if allowed, retryAfter := ac.rateLimiter.Allow(ip, req.Username); !allowed {
		c.Header("Retry-After", strconv.Itoa(int(retryAfter.Round(time.Second).Seconds())))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many login attempts, try again later"})
		return
	}

	result, err := ac.service.Login(c.Request.Context(), req.UserType, req.Username, req.Password)
	switch {
	case errors.Is(err, ErrInvalidUserType):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, ErrInvalidCredentials):
		ac.rateLimiter.RecordFailure(ip, req.Username)
		ac.audit.LogAuth(entities.Actor{}, "login_failed", ip, c.Request.UserAgent(), false)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	case err != nil:
		log.Printf("[auth] login failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	ac.rateLimiter.RecordSuccess(ip, req.Username)
	if ac.sessionManager != nil {
		if err := ac.sessionManager.CreateSession(c.Request, &result.User); err != nil {
			log.Printf("[auth] failed to create session: %v", err)
		}
	}
	ac.audit.LogAuth(result.User.Actor(), "login", ip, c.Request.UserAgent(), true)
	c.JSON(http.StatusOK, result)
}

func (ac *AuthController) Logout(c *gin.Context) {
	ident := GetIdentity(c)
	if ident == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	if err := ac.service.Logout(c.Request.Context(), ident); err != nil {
		log.Printf("[auth] failed to revoke token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
		return
	}
	if ac.sessionManager != nil && ac.sessionManager.HasSession(c.Request) {
		if err := ac.sessionManager.DestroySession(c.Request); err != nil {
			log.Printf("[auth] failed to destroy session: %v", err)
		}
	}
	ac.audit.LogAuth(ident.Actor(), "logout", c.ClientIP(), c.Request.UserAgent(), true)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (ac *AuthController) Me(c *gin.Context) {
	ident := GetIdentity(c)
	if ident == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": ident, "via": ident.Via})
}

// CSRF returns the token cookie-authenticated clients must echo in
// the X-CSRF-Token header.
func (ac *AuthController) CSRF(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"token": GetCSRFToken(c), "header": CSRFTokenHeader})
}

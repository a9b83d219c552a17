package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/csrf"
)

// CSRFTokenHeader carries the token on cookie-authenticated writes.
const CSRFTokenHeader = "X-CSRF-Token"

const contextKeyCSRFToken = "csrf_token"

// CSRFMiddleware protects cookie sessions against cross-site writes.
// Requests authenticated by a valid bearer token skip the check, as do
// writes that carry no session cookie: they have no ambient credential to
// abuse. Safe methods always pass through the protector so a token can be
// handed out.
func CSRFMiddleware(secret []byte, secure bool, service *Service, sessions *SessionManager) gin.HandlerFunc {
	protect := csrf.Protect(
		secret,
		csrf.Secure(secure),
		csrf.HttpOnly(true),
		csrf.SameSite(csrf.SameSiteStrictMode),
		csrf.Path("/"),
		csrf.RequestHeader(CSRFTokenHeader),
		csrf.ErrorHandler(http.HandlerFunc(csrfErrorHandler)),
	)

	return func(c *gin.Context) {
		if hasValidBearer(c, service) {
			c.Next()
			return
		}
		if !isSafeMethod(c.Request.Method) && !hasSessionCookie(c.Request, sessions) {
			c.Next()
			return
		}

		req := c.Request
		if !secure {
			req = csrf.PlaintextHTTPRequest(req)
		}
		passed := false
		handler := protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			passed = true
			c.Set(contextKeyCSRFToken, csrf.Token(r))
			c.Request = r
			c.Next()
		}))
		handler.ServeHTTP(c.Writer, req)
		if !passed {
			c.Abort()
		}
	}
}

func csrfErrorHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(`{"error":"CSRF token invalid or missing"}`))
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

func hasSessionCookie(r *http.Request, sessions *SessionManager) bool {
	if sessions == nil {
		return false
	}
	_, err := r.Cookie(sessions.Cookie.Name)
	return err == nil
}

func hasValidBearer(c *gin.Context, service *Service) bool {
	token := bearerToken(c.Request)
	if token == "" || service == nil {
		return false
	}
	_, err := service.tokens.Parse(token)
	return err == nil
}

// GetCSRFToken returns the token issued for this request, if any.
func GetCSRFToken(c *gin.Context) string {
	return c.GetString(contextKeyCSRFToken)
}

// Package auth provides authentication and authorization for the library.
//
// Staff (Admin, Librarian) log in by username; students and teachers log in
// by their barcode. A successful login returns a signed bearer token and,
// when sessions are enabled, also starts a cookie session for browsers.
//
// # Configuration
//
//	AUTH_JWT_SECRET=<secret>            # Auto-generated if empty
//	AUTH_TOKEN_TTL=24h                  # Bearer token lifetime
//	AUTH_SESSIONS_ENABLED=true          # Cookie sessions (scs)
//	AUTH_SESSION_SECRET=<hex-32-bytes>  # CSRF key, auto-generated if empty
//	AUTH_SESSION_LIFETIME=12h
//	AUTH_BCRYPT_COST=12
//	AUTH_SECURE_COOKIES=true            # HTTPS-only cookies
//	AUTH_CSRF_ENABLED=true
//	REDIS_ADDR=localhost:6379           # Share logouts across instances
//
// # Usage
//
//	tokens := auth.NewTokenIssuer(secret, cfg.Auth.TokenTTL)
//	authService := auth.NewService(db, cfg.Auth, tokens, auth.NewRedisRevoker(client))
//	router.Use(auth.NewMiddleware(authService, sessionManager).Handler())
//
// Extract the caller in handlers:
//
//	actor, ok := auth.GetActor(c)
//
// Route guards: RequirePrivileged for staff-only routes, RequirePerson for
// student and teacher self-service.
package auth

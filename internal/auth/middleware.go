package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SessionCookie is the cookie the login handler sets and the middleware
// reads.
const SessionCookie = "fa_session"

const userContextKey = "auth.user"

// SessionValidator is the part of the service the middleware needs.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (User, error)
}

// RequireSession enforces a valid session on protected routes. The token
// comes from the session cookie or, failing that, a bearer header.
func RequireSession(v SessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := TokenFromRequest(c.Request)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		user, err := v.ValidateSession(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired session"})
			return
		}
		c.Set(userContextKey, user)
		c.Next()
	}
}

// UserFrom returns the authenticated user placed by RequireSession.
func UserFrom(c *gin.Context) (User, bool) {
	v, ok := c.Get(userContextKey)
	if !ok {
		return User{}, false
	}
	u, ok := v.(User)
	return u, ok
}

// TokenFromRequest extracts the session token from cookie or bearer header.
func TokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	authz := r.Header.Get("Authorization")
	if len(authz) > 7 && strings.EqualFold(authz[:7], "bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	return ""
}

// NewSessionCookie builds the HTTP-only session cookie. The Secure flag
// follows TLS or X-Forwarded-Proto so cookies work behind a proxy.
func NewSessionCookie(r *http.Request, token string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
	}
}

// ExpireSessionCookie builds a deletion cookie for logout.
func ExpireSessionCookie(r *http.Request) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
	}
}

func isSecureRequest(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return r.Header.Get("X-Forwarded-Proto") == "https"
}

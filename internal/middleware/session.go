package middleware

import (
	"context"
	"net/http"
	"time"

	apperrors "github.com/chatsounds/soundboard-server/internal/errors"
)

const (
	SessionCookie  = "session_id"
	StateCookie    = "oauth_state"
	StateMaxAge    = 10 * time.Minute
	csrfCookieLife = 24 * time.Hour
)

type contextKey string

const SessionIDContextKey contextKey = "sessionID"

// GetSessionID returns the id placed in the context by SessionMiddleware.
func GetSessionID(ctx context.Context) string {
	if id, ok := ctx.Value(SessionIDContextKey).(string); ok {
		return id
	}
	return ""
}

// SessionIDFromRequest reads the session cookie without checking it.
func SessionIDFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}

type SessionChecker interface {
	Authenticated(ctx context.Context, id string) bool
}

// SessionMiddleware rejects requests without a live dashboard session.
type SessionMiddleware struct {
	checker SessionChecker
}

func NewSessionMiddleware(checker SessionChecker) *SessionMiddleware {
	return &SessionMiddleware{checker: checker}
}

func (m *SessionMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := SessionIDFromRequest(r)
		if id == "" || !m.checker.Authenticated(r.Context(), id) {
			reject(w, 0, apperrors.Unauthorized("Not authenticated"))
			return
		}

		ctx := context.WithValue(r.Context(), SessionIDContextKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SetSessionCookie scopes the cookie lifetime to the session expiry.
func SetSessionCookie(w http.ResponseWriter, id string, expiresAt time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	clearCookie(w, SessionCookie, "/", secure)
}

func SetStateCookie(w http.ResponseWriter, state string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookie,
		Value:    state,
		Path:     "/api/auth",
		MaxAge:   int(StateMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func ClearStateCookie(w http.ResponseWriter, secure bool) {
	clearCookie(w, StateCookie, "/api/auth", secure)
}

func clearCookie(w http.ResponseWriter, name, path string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

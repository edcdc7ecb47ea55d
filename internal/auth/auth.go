// Package auth resolves the caller of a request and gates workflows on it.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/lankyjo/coast/internal/apperr"
	"github.com/lankyjo/coast/internal/db"
)

const SessionCookie = "coast_session"

// Session is the caller identity every workflow receives.
type Session struct {
	UserID string  `json:"id"`
	Role   db.Role `json:"role"`
	Name   string  `json:"name"`
	Email  string  `json:"email"`
}

func (s *Session) IsAdmin() bool {
	return s != nil && s.Role == db.RoleAdmin
}

type sessionKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}

// RequireAuth returns the caller's session or an Unauthorized error.
func RequireAuth(ctx context.Context) (*Session, error) {
	s := FromContext(ctx)
	if s == nil {
		return nil, apperr.Unauthorized()
	}
	return s, nil
}

// RequireAdmin is RequireAuth plus a role check.
func RequireAdmin(ctx context.Context) (*Session, error) {
	s, err := RequireAuth(ctx)
	if err != nil {
		return nil, err
	}
	if !s.IsAdmin() {
		return nil, apperr.AdminRequired()
	}
	return s, nil
}

// SessionStore looks up the user behind a session token.
type SessionStore interface {
	GetUserBySession(ctx context.Context, token string) (*db.User, error)
}

// Token extracts the session token from the cookie or a Bearer header.
func Token(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// Middleware attaches the caller's session to the request context when the
// token resolves. Requests without a valid session pass through anonymous;
// workflows decide whether that is acceptable.
func Middleware(store SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := Token(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			user, err := store.GetUserBySession(r.Context(), token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := WithSession(r.Context(), &Session{
				UserID: user.ID,
				Role:   user.Role,
				Name:   user.Name,
				Email:  user.Email,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func SetSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   30 * 24 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   SessionCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}

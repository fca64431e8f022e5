package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/sakif/promptcraft/internal/apperror"
	"github.com/sakif/promptcraft/internal/model"
)

// SessionCookieName is the HttpOnly cookie that carries the signed session token.
const SessionCookieName = "token"

// contextKey is an unexported type used for context keys in this package.
//
// WHY A CUSTOM TYPE FOR CONTEXT KEYS?
// context.WithValue uses any as the key type. If you use a plain string like
// context.WithValue(ctx, "session", s), ANY package that knows the string can
// read or shadow your value. Only THIS package can create a key of type
// contextKey, so only this package can read or write the session.
type contextKey string

const sessionKey contextKey = "session"

// SessionResolver turns a cookie value into a live session.
// service.AuthService implements it.
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (*model.Session, error)
}

// RequireSession is a middleware that enforces login on page routes.
//
// It reads the "token" cookie, resolves it to a session and stores the
// session in the request context. Browsers are redirected to /login when
// the cookie is missing, invalid, expired or revoked by logout.
//
// Any other resolver error (the session store is down) is not a logout: it
// goes to onError, which renders the error page. A nil onError writes a
// plain 500.
//
// MIDDLEWARE PATTERN IN GO:
// A middleware takes an http.Handler and returns a new one that wraps it.
// Chi applies them as a chain: req → M1 → M2 → Handler → M2 → M1 → resp
func RequireSession(resolver SessionResolver, onError func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	if onError == nil {
		onError = func(w http.ResponseWriter, _ *http.Request, _ error) {
			http.Error(w, "An internal error occurred", http.StatusInternalServerError)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}

			session, err := resolver.ResolveSession(r.Context(), token)
			if errors.Is(err, apperror.ErrUnauthenticated) {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			if err != nil {
				onError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
		})
	}
}

// TokenFromRequest returns the session cookie value, or "" if there is none.
func TokenFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// WithSession returns a copy of ctx carrying session.
func WithSession(ctx context.Context, session *model.Session) context.Context {
	return context.WithValue(ctx, sessionKey, session)
}

// SessionFromContext retrieves the session stored by RequireSession.
//
// Usage in handlers:
//
//	session, ok := auth.SessionFromContext(r.Context())
//	if !ok {
//	    // route was mounted without RequireSession
//	}
func SessionFromContext(ctx context.Context) (*model.Session, bool) {
	s, ok := ctx.Value(sessionKey).(*model.Session)
	return s, ok && s != nil
}

package middleware

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"net/http"
)

const (
	// CSRFCookieName holds the token. Not HttpOnly: the double-submit check
	// only needs the page to echo the value back, which templates do.
	CSRFCookieName = "csrf_token"
	// CSRFFieldName is the hidden form field carrying the token.
	CSRFFieldName = "csrf_token"
	// CSRFHeaderName is accepted as an alternative to the form field.
	CSRFHeaderName = "X-CSRF-Token"
)

type csrfContextKey struct{}

// CSRFConfig configures the CSRF middleware.
type CSRFConfig struct {
	CookieSecure bool
}

// CSRF returns a double-submit-cookie CSRF middleware.
//
// Safe methods (GET, HEAD, OPTIONS) make sure the browser has a token
// cookie and expose the token to handlers through CSRFToken. Every other
// method must echo the cookie value in the csrf_token form field or the
// X-CSRF-Token header, or it is rejected with 403.
func CSRF(cfg CSRFConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				token, err := ensureCSRFCookie(w, r, cfg)
				if err != nil {
					logger.Error("failed to generate CSRF token", slog.String("error", err.Error()))
					http.Error(w, "internal server error", http.StatusInternalServerError)
					return
				}
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), csrfContextKey{}, token)))
				return
			}

			cookie, err := r.Cookie(CSRFCookieName)
			if err != nil || cookie.Value == "" {
				rejectCSRF(w, r, logger, "missing cookie token")
				return
			}

			submitted := r.Header.Get(CSRFHeaderName)
			if submitted == "" {
				submitted = r.PostFormValue(CSRFFieldName)
			}
			if submitted == "" {
				rejectCSRF(w, r, logger, "missing submitted token")
				return
			}

			if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(submitted)) != 1 {
				rejectCSRF(w, r, logger, "token mismatch")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), csrfContextKey{}, cookie.Value)))
		})
	}
}

// CSRFToken returns the token for the current request, for embedding in forms.
func CSRFToken(r *http.Request) string {
	token, _ := r.Context().Value(csrfContextKey{}).(string)
	return token
}

func rejectCSRF(w http.ResponseWriter, r *http.Request, logger *slog.Logger, reason string) {
	logger.Warn("CSRF validation failed",
		slog.String("reason", reason),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)
	http.Error(w, "CSRF token validation failed", http.StatusForbidden)
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

// ensureCSRFCookie returns the existing token or sets a new one.
func ensureCSRFCookie(w http.ResponseWriter, r *http.Request, cfg CSRFConfig) (string, error) {
	if cookie, err := r.Cookie(CSRFCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	token, err := generateCSRFToken()
	if err != nil {
		return "", err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   86400,
		HttpOnly: false,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

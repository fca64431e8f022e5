package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sakif/promptcraft/internal/apperror"
	"github.com/sakif/promptcraft/internal/model"
)

// fakeResolver accepts exactly one token. A non-nil err is returned for
// every token instead.
type fakeResolver struct {
	token   string
	session *model.Session
	err     error
}

func (f *fakeResolver) ResolveSession(_ context.Context, token string) (*model.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	if token != f.token {
		return nil, apperror.Unauthenticated()
	}
	return f.session, nil
}

func newProtectedHandler(t *testing.T, resolver SessionResolver) (http.Handler, *bool) {
	t.Helper()
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		s, ok := SessionFromContext(r.Context())
		if !ok {
			t.Error("SessionFromContext() found no session inside a protected handler")
			return
		}
		w.Write([]byte(s.Username))
	})
	return RequireSession(resolver, nil)(next), &called
}

func TestRequireSession_ValidCookie(t *testing.T) {
	resolver := &fakeResolver{
		token:   "good",
		session: &model.Session{ID: "sess-1", UserID: "user-1", Username: "ada"},
	}
	h, called := newProtectedHandler(t, resolver)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "good"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !*called {
		t.Fatal("next handler was not called")
	}
	if rec.Body.String() != "ada" {
		t.Errorf("body = %q, want %q", rec.Body.String(), "ada")
	}
}

func TestRequireSession_RedirectsToLogin(t *testing.T) {
	resolver := &fakeResolver{token: "good", session: &model.Session{ID: "s"}}

	tests := []struct {
		name   string
		cookie *http.Cookie
	}{
		{"no cookie", nil},
		{"empty cookie", &http.Cookie{Name: SessionCookieName, Value: ""}},
		{"revoked token", &http.Cookie{Name: SessionCookieName, Value: "logged-out"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, called := newProtectedHandler(t, resolver)

			req := httptest.NewRequest(http.MethodGet, "/download/0/txt", nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if *called {
				t.Error("next handler should not run for an anonymous request")
			}
			if rec.Code != http.StatusSeeOther {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusSeeOther)
			}
			if loc := rec.Header().Get("Location"); loc != "/login" {
				t.Errorf("Location = %q, want /login", loc)
			}
		})
	}
}

func TestRequireSession_StoreFailureIsNotALogout(t *testing.T) {
	storeDown := fmt.Errorf("service/auth: loading session s: %w", errors.New("database is locked"))

	t.Run("default response", func(t *testing.T) {
		h, called := newProtectedHandler(t, &fakeResolver{err: storeDown})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "good"})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if *called {
			t.Error("next handler should not run when the session cannot be resolved")
		}
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
		}
		if loc := rec.Header().Get("Location"); loc != "" {
			t.Errorf("Location = %q, want no redirect", loc)
		}
	})

	t.Run("custom error page", func(t *testing.T) {
		var got error
		onError := func(w http.ResponseWriter, _ *http.Request, err error) {
			got = err
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		h := RequireSession(&fakeResolver{err: storeDown}, onError)(http.NotFoundHandler())

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "good"})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if !errors.Is(got, storeDown) {
			t.Errorf("onError got %v, want %v", got, storeDown)
		}
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
		}
	})
}

func TestSessionFromContext_Empty(t *testing.T) {
	if _, ok := SessionFromContext(context.Background()); ok {
		t.Error("SessionFromContext() on a bare context should report false")
	}
}

package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/promptcraft/internal/auth"
	"github.com/sakif/promptcraft/internal/model"
)

const oauthStateCookie = "oauth_state"

// Authenticator is the subset of service.AuthService the auth pages use.
type Authenticator interface {
	Signup(ctx context.Context, username, email, password string) (*model.User, error)
	AuthenticateByPassword(ctx context.Context, email, password string) (*model.User, error)
	BeginOAuth(ctx context.Context) (authURL, state string, err error)
	AuthenticateByOAuth(ctx context.Context, code, expectedState, returnedState string) (*model.User, error)
	StartSession(ctx context.Context, user *model.User) (*model.Session, string, error)
	EndSession(ctx context.Context, token string) error
}

// LoginRecorder counts login attempts. metrics.Collector implements it.
type LoginRecorder interface {
	ObserveLogin(method, result string)
}

// CookieConfig controls the cookies AuthHandler sets.
type CookieConfig struct {
	Secure     bool
	SessionTTL time.Duration
	StateTTL   time.Duration
}

// AuthHandler serves signup, password login, Google login and logout.
//
// HANDLER RESPONSIBILITIES:
//   - ShowSignup / Signup  → GET/POST /signup
//   - ShowLogin / Login    → GET/POST /login
//   - GoogleLogin          → GET /login/google, redirect to Google
//   - GoogleCallback       → GET /auth/callback, finish the OAuth handshake
//   - Logout               → GET /logout
//
// Every successful login ends with startSession: any session the browser
// already had is revoked, a new one is opened and its token is set in the
// HttpOnly "token" cookie.
type AuthHandler struct {
	auth     Authenticator
	pages    *Pages
	cookies  CookieConfig
	recorder LoginRecorder
	logger   *slog.Logger
}

// NewAuthHandler creates an AuthHandler. recorder may be nil.
func NewAuthHandler(a Authenticator, pages *Pages, cookies CookieConfig, recorder LoginRecorder, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:     a,
		pages:    pages,
		cookies:  cookies,
		recorder: recorder,
		logger:   logger,
	}
}

// =========================================================================
// SIGNUP
// =========================================================================

// ShowSignup renders the signup form.
func (h *AuthHandler) ShowSignup(w http.ResponseWriter, r *http.Request) {
	h.pages.render(w, http.StatusOK, "signup", newPageData(r, "Sign up", ""))
}

// Signup creates a password account and logs it in.
//
// HTTP: POST /signup (form: username, email, password)
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	username := r.PostFormValue("username")
	email := r.PostFormValue("email")

	user, err := h.auth.Signup(r.Context(), username, email, r.PostFormValue("password"))
	if err != nil {
		h.observe("signup", err)
		h.renderFormError(w, r, "signup", "Sign up", err, func(d *pageData) {
			d.FormUsername = username
			d.Email = email
		})
		return
	}

	h.observe("signup", nil)
	h.startSession(w, r, user)
}

// =========================================================================
// PASSWORD LOGIN
// =========================================================================

// ShowLogin renders the login form. ?error=oauth shows why a Google login
// bounced back here.
func (h *AuthHandler) ShowLogin(w http.ResponseWriter, r *http.Request) {
	data := newPageData(r, "Log in", "")
	if r.URL.Query().Get("error") == "oauth" {
		data.Error = "Google login failed. Please try again."
	}
	h.pages.render(w, http.StatusOK, "login", data)
}

// Login checks an email/password pair.
//
// HTTP: POST /login (form: email, password)
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue("email")

	user, err := h.auth.AuthenticateByPassword(r.Context(), email, r.PostFormValue("password"))
	if err != nil {
		h.observe("password", err)
		h.renderFormError(w, r, "login", "Log in", err, func(d *pageData) {
			d.Email = email
		})
		return
	}

	h.observe("password", nil)
	h.startSession(w, r, user)
}

// =========================================================================
// GOOGLE LOGIN
// =========================================================================

// GoogleLogin redirects the browser to Google's account chooser.
//
// HTTP: GET /login/google
//
// CSRF PROTECTION VIA STATE:
// The state is stored server-side (single use, with a TTL) AND in a short
// lived HttpOnly cookie. The callback only succeeds if the returned state
// matches the cookie and can still be consumed from the store, which proves
// the flow was started by this browser, on this server, recently.
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	authURL, state, err := h.auth.BeginOAuth(r.Context())
	if err != nil {
		h.pages.renderError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int(h.cookies.StateTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

// GoogleCallback completes the OAuth login flow.
//
// HTTP: GET /auth/callback?code=xxx&state=yyy
//
// Any failure (user denied access, state mismatch, provider error,
// unverified email) sends the browser back to /login?error=oauth.
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	var expected string
	if c, err := r.Cookie(oauthStateCookie); err == nil {
		expected = c.Value
	}
	// The state cookie is single use whatever the outcome.
	h.clearCookie(w, oauthStateCookie)

	q := r.URL.Query()
	if denied := q.Get("error"); denied != "" {
		h.logger.Info("oauth callback: provider returned an error", slog.String("error", denied))
		h.observe("google", errors.New(denied))
		http.Redirect(w, r, "/login?error=oauth", http.StatusSeeOther)
		return
	}

	user, err := h.auth.AuthenticateByOAuth(r.Context(), q.Get("code"), expected, q.Get("state"))
	if err != nil {
		level := slog.LevelWarn
		if statusFor(err) >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		h.logger.Log(r.Context(), level, "oauth callback failed", slog.String("error", err.Error()))
		h.observe("google", err)
		http.Redirect(w, r, "/login?error=oauth", http.StatusSeeOther)
		return
	}

	h.observe("google", nil)
	h.startSession(w, r, user)
}

// =========================================================================
// LOGOUT
// =========================================================================

// Logout revokes the session and clears the cookie.
//
// HTTP: GET /logout. Always redirects to /login, even without a session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.EndSession(r.Context(), auth.TokenFromRequest(r)); err != nil {
		h.logger.Error("logout: ending session failed", slog.String("error", err.Error()))
	}
	h.clearCookie(w, auth.SessionCookieName)
	h.clearCookie(w, oauthStateCookie)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// =========================================================================
// HELPERS
// =========================================================================

// startSession replaces whatever session the browser had with one for user.
func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, user *model.User) {
	if err := h.auth.EndSession(r.Context(), auth.TokenFromRequest(r)); err != nil {
		h.logger.Warn("could not end previous session", slog.String("error", err.Error()))
	}

	_, token, err := h.auth.StartSession(r.Context(), user)
	if err != nil {
		h.pages.renderError(w, r, err)
		return
	}

	// HttpOnly = JavaScript cannot read this cookie (XSS protection).
	// SameSite=Lax = sent on top-level navigations but not on cross-site POSTs.
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.cookies.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	h.clearCookie(w, oauthStateCookie)

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// renderFormError re-renders a form with the error message and the
// submitted values (never the password).
func (h *AuthHandler) renderFormError(w http.ResponseWriter, r *http.Request, name, title string, err error, fill func(*pageData)) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.pages.renderError(w, r, err)
		return
	}

	data := newPageData(r, title, "")
	data.Error = messageFor(err)
	fill(&data)
	h.pages.render(w, status, name, data)
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) observe(method string, err error) {
	if h.recorder == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	h.recorder.ObserveLogin(method, result)
}

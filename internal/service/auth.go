// Package service holds the authentication business logic.
//
// AuthService is the business logic layer for authentication. It sits between
// the HTTP handlers and the repository/auth utilities:
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository    (DB)
//	                                                  → SessionRepository (DB)
//	                   ↘ PasswordService / TokenService / GoogleProvider / StateStore
//
// KEY RESPONSIBILITIES:
//   - Signup and password login against the credential store
//   - The Google OpenID Connect handshake: state issue, state check, find-or-create
//   - Session lifecycle: open a session row + token, resolve it, revoke it
//
// WHAT THIS PACKAGE DOES NOT DO:
//   - It does NOT set cookies (that's the handler's job, an HTTP concern)
//   - It does NOT read HTTP requests
//   - It is NOT tied to Chi or any routing framework
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/promptcraft/internal/apperror"
	"github.com/sakif/promptcraft/internal/auth"
	"github.com/sakif/promptcraft/internal/model"
	"github.com/sakif/promptcraft/internal/repository"
)

// OAuthProvider is the identity provider half of the OAuth flow.
// auth.GoogleProvider implements it; tests use a fake.
type OAuthProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.Identity, error)
}

// AuthDeps bundles AuthService's collaborators.
type AuthDeps struct {
	Users     repository.UserRepository
	Sessions  repository.SessionRepository
	Passwords *auth.PasswordService
	Tokens    *auth.TokenService
	OAuth     OAuthProvider
	States    auth.StateStore
	Logger    *slog.Logger

	SessionTTL   time.Duration
	OAuthTimeout time.Duration
}

// AuthService handles the authentication business logic.
type AuthService struct {
	users     repository.UserRepository
	sessions  repository.SessionRepository
	passwords *auth.PasswordService
	tokens    *auth.TokenService
	oauth     OAuthProvider
	states    auth.StateStore
	logger    *slog.Logger

	sessionTTL   time.Duration
	oauthTimeout time.Duration
	now          func() time.Time
}

// NewAuthService creates an AuthService. Call this in server.go when wiring
// the dependency graph.
func NewAuthService(deps AuthDeps) *AuthService {
	return &AuthService{
		users:        deps.Users,
		sessions:     deps.Sessions,
		passwords:    deps.Passwords,
		tokens:       deps.Tokens,
		oauth:        deps.OAuth,
		states:       deps.States,
		logger:       deps.Logger,
		sessionTTL:   deps.SessionTTL,
		oauthTimeout: deps.OAuthTimeout,
		now:          time.Now,
	}
}

// =========================================================================
// PASSWORD ACCOUNTS
// =========================================================================

// Signup creates a password account.
//
// Inputs are trimmed before validation, and the trimmed password is what
// gets hashed, so " secret " and "secret" are the same password at login.
func (s *AuthService) Signup(ctx context.Context, username, email, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	password = strings.TrimSpace(password)

	if username == "" || email == "" || password == "" {
		return nil, apperror.ValidationFailed("", "All fields are required")
	}
	if len(password) > auth.MaxPasswordBytes {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("Password must be %d bytes or fewer", auth.MaxPasswordBytes))
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	// A duplicate email comes back from the repository as apperror.DuplicateEmail.
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user signed up", slog.String("userID", user.ID))
	return user, nil
}

// AuthenticateByPassword checks an email/password pair.
//
// Unknown email, an OAuth-only account and a wrong password all return the
// same apperror.InvalidCredentials, so the response never tells a caller
// which emails are registered.
func (s *AuthService) AuthenticateByPassword(ctx context.Context, email, password string) (*model.User, error) {
	email = strings.TrimSpace(email)
	password = strings.TrimSpace(password)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.InvalidCredentials()
		}
		return nil, fmt.Errorf("service/auth: looking up user: %w", err)
	}

	if !user.HasPassword() {
		return nil, apperror.InvalidCredentials()
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Warn("stored password hash is unreadable",
				slog.String("userID", user.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil, apperror.InvalidCredentials()
	}

	return user, nil
}

// =========================================================================
// GOOGLE OAUTH
// =========================================================================

// BeginOAuth issues a fresh state, remembers it and returns the provider
// URL to redirect the browser to. The caller also mirrors state into the
// oauth_state cookie.
func (s *AuthService) BeginOAuth(ctx context.Context) (authURL, state string, err error) {
	state = auth.NewState()
	if err := s.states.Save(ctx, state); err != nil {
		return "", "", fmt.Errorf("service/auth: saving oauth state: %w", err)
	}
	return s.oauth.AuthURL(state), state, nil
}

// AuthenticateByOAuth completes the Google callback.
//
// expectedState is the oauth_state cookie value, returnedState the "state"
// query parameter. Both must match AND the state must still be consumable
// from the store (not expired, not already used).
func (s *AuthService) AuthenticateByOAuth(ctx context.Context, code, expectedState, returnedState string) (*model.User, error) {
	if expectedState == "" || expectedState != returnedState {
		return nil, apperror.OAuthStateMismatch()
	}

	ok, err := s.states.Consume(ctx, returnedState)
	if err != nil {
		return nil, fmt.Errorf("service/auth: consuming oauth state: %w", err)
	}
	if !ok {
		return nil, apperror.OAuthStateMismatch()
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, s.oauthTimeout)
	defer cancel()

	identity, err := s.oauth.Exchange(exchangeCtx, code)
	if err != nil {
		return nil, apperror.ExternalService("Google login", err)
	}

	if !identity.EmailVerified {
		return nil, apperror.UnverifiedEmail(identity.Email)
	}

	user, err := s.findOrCreateOAuthUser(ctx, identity)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user authenticated via Google", slog.String("userID", user.ID))
	return user, nil
}

// findOrCreateOAuthUser links a Google identity to a user by email.
// An existing password account with the same email is reused as-is.
func (s *AuthService) findOrCreateOAuthUser(ctx context.Context, identity *auth.Identity) (*model.User, error) {
	user, err := s.users.GetByEmail(ctx, identity.Email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: looking up oauth user: %w", err)
	}

	user = &model.User{
		Username: identity.Name,
		Email:    identity.Email,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// Two callbacks for a brand-new account raced; the other one won.
		if errors.Is(err, apperror.ErrConflict) {
			return s.users.GetByEmail(ctx, identity.Email)
		}
		return nil, fmt.Errorf("service/auth: creating oauth user: %w", err)
	}
	return user, nil
}

// =========================================================================
// SESSIONS
// =========================================================================

// StartSession opens a session for user and returns it together with the
// signed token to put in the cookie.
func (s *AuthService) StartSession(ctx context.Context, user *model.User) (*model.Session, string, error) {
	if user == nil || user.ID == "" {
		return nil, "", fmt.Errorf("service/auth: cannot start a session without a user")
	}

	now := s.now()
	session := &model.Session{
		ID:        xid.New().String(),
		UserID:    user.ID,
		Username:  user.Username,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, "", fmt.Errorf("service/auth: creating session: %w", err)
	}

	token, err := s.tokens.Generate(session.ID, s.sessionTTL)
	if err != nil {
		return nil, "", fmt.Errorf("service/auth: generating token for session %s: %w", session.ID, err)
	}

	return session, token, nil
}

// EndSession revokes the session behind token. Empty, invalid or already
// revoked tokens are a no-op, so logout is always safe to call.
func (s *AuthService) EndSession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	sessionID, err := s.tokens.Validate(token)
	if err != nil {
		return nil
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("service/auth: deleting session %s: %w", sessionID, err)
	}
	return nil
}

// ResolveSession implements auth.SessionResolver.
//
// Returns apperror.ErrUnauthenticated when the token does not verify, or
// when its session has expired or was deleted by logout.
func (s *AuthService) ResolveSession(ctx context.Context, token string) (*model.Session, error) {
	sessionID, err := s.tokens.Validate(token)
	if err != nil {
		return nil, apperror.Unauthenticated()
	}

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthenticated()
		}
		return nil, fmt.Errorf("service/auth: loading session %s: %w", sessionID, err)
	}

	if session.Expired(s.now()) {
		return nil, apperror.Unauthenticated()
	}
	return session, nil
}

var _ auth.SessionResolver = (*AuthService)(nil)

// Package auth provides the credential primitives PromptCraft builds its login
// flows on: bcrypt password hashing, signed session cookies, the Google OpenID
// Connect client and the OAuth state store.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. User signs up or logs in with email/password, or visits /login/google
//  2. For Google, the provider calls back /auth/callback with a code and state
//  3. The service layer resolves (or creates) the user and opens a session row
//  4. The server issues a JWT whose subject is the session ID and stores it in
//     an HttpOnly "token" cookie
//  5. On every protected request, RequireSession reads the cookie, validates
//     the JWT and looks the session row up
//
// WHY JWT *AND* A SESSION ROW?
// The JWT signature lets us reject forged or expired cookies without touching
// the database. The row lets logout actually revoke a cookie: once the row is
// deleted, a replayed token still verifies but no longer resolves.
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: algorithm + token type → {"alg":"HS256","typ":"JWT"}
//	- Payload: claims (data) → {"sub":"sessionID","exp":1234567890}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// issuer is written into every token and required on validation, so tokens
// minted by another application sharing the secret are rejected.
const issuer = "promptcraft"

// TokenService handles JWT creation and validation.
//
// It holds the HMAC secret key used to sign and verify tokens.
// The same secret must be used for both operations.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// Example: SESSION_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: session secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// claims is the JWT payload. "sub" (Subject) carries the session ID.
type claims struct {
	jwt.RegisteredClaims
}

// Generate creates and signs a token for sessionID that expires after ttl.
//
// The token should never outlive the session row it points at, so callers
// pass the same TTL they used for the row.
func (s *TokenService) Generate(sessionID string, ttl time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    issuer,
		},
	}

	// jwt.NewWithClaims creates an unsigned token with the given algorithm.
	// SignedString(key) signs it and returns the complete JWT string.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a JWT string.
// Returns the session ID (stored in the "sub" claim) if the token is valid.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid (wasn't tampered with)
//   - Token is not expired (ExpiresAt is in the future)
//   - Issuer matches "promptcraft"
//   - Algorithm is HS256 (prevents algorithm confusion attacks)
//
// ALGORITHM CONFUSION ATTACK:
// Without checking the algorithm, an attacker could send a token signed with
// "none" and the library might accept it. Passing jwt.WithValidMethods prevents this.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}

	if c.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}

	return c.Subject, nil
}

package model

import "time"

// Session binds a browser to an authenticated user.
//
// The row lives in the database; the browser only holds a signed token whose
// subject is the session ID. Deleting the row (logout) therefore invalidates
// the token immediately, even though the JWT itself has not expired yet.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the session is past its expiry at time now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account.
//
// Accounts are created either by the signup form or by the first Google
// login for an email address. They are addressed by Email everywhere in the
// auth flow; ID is the internal primary key used by sessions and transcripts.
//
// WHY PasswordHash string (not *string)?
// OAuth-only accounts have no password. The column is nullable in the
// database, but in Go an empty string is the natural zero value and
// HasPassword() reads better at the call site than a nil check.
type User struct {
	ID           string    `json:"id"        db:"id"`
	Username     string    `json:"username"  db:"username"`
	Email        string    `json:"email"     db:"email"`
	PasswordHash string    `json:"-"         db:"password"` // never serialized
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// HasPassword reports whether the account can log in with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// Package repository declares the storage capabilities the services depend on.
//
// Services only see these interfaces; the sqlite package is the durable
// implementation and the tests provide in-memory fakes.
package repository

import (
	"context"

	"github.com/sakif/promptcraft/internal/model"
)

// UserRepository is the Credential Store: user records addressed by email.
type UserRepository interface {
	// Create inserts a new user. Returns apperror.ErrConflict if the email
	// is already registered.
	Create(ctx context.Context, user *model.User) error
	// GetByEmail returns apperror.ErrNotFound if no user has that email.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// SessionRepository persists server-side login sessions.
type SessionRepository interface {
	Create(ctx context.Context, session *model.Session) error
	// GetByID returns apperror.ErrNotFound for unknown or expired sessions.
	GetByID(ctx context.Context, id string) (*model.Session, error)
	// Delete is idempotent: deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error
}

// TranscriptStore persists each user's ordered chat transcript.
type TranscriptStore interface {
	// Load returns the user's turns in append order. Index is populated.
	Load(ctx context.Context, userID string) ([]model.ChatTurn, error)
	// Append stores turns at the end of the transcript, in order and
	// atomically, and sets their ID, Index and CreatedAt.
	Append(ctx context.Context, userID string, turns ...*model.ChatTurn) error
	// Clear removes every turn of the user.
	Clear(ctx context.Context, userID string) error
}

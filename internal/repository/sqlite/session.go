package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/promptcraft/internal/apperror"
	"github.com/sakif/promptcraft/internal/model"
	"github.com/sakif/promptcraft/internal/repository"
)

var _ repository.SessionRepository = (*SessionDB)(nil)

// SessionDB is the sessions table.
type SessionDB struct {
	conn *sql.DB
}

// Create inserts a session. The caller supplies ID and ExpiresAt.
func (s *SessionDB) Create(ctx context.Context, session *model.Session) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, username, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?)`,
		session.ID,
		session.UserID,
		session.Username,
		session.CreatedAt,
		session.ExpiresAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("session", session.ID)
		}
		return fmt.Errorf("sqlite: inserting session for user %s: %w", session.UserID, err)
	}
	return nil
}

// GetByID returns the session, or apperror.ErrNotFound if it does not exist
// or has expired. Expiry is checked in Go rather than SQL so the comparison
// does not depend on how the driver formats DATETIME values.
func (s *SessionDB) GetByID(ctx context.Context, id string) (*model.Session, error) {
	var session model.Session
	err := s.conn.QueryRowContext(ctx,
		`SELECT id, user_id, username, created_at, expires_at
		 FROM sessions WHERE id = ?`,
		id,
	).Scan(
		&session.ID,
		&session.UserID,
		&session.Username,
		&session.CreatedAt,
		&session.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("session", id)
		}
		return nil, fmt.Errorf("sqlite: getting session %s: %w", id, err)
	}

	if session.Expired(time.Now()) {
		return nil, apperror.NotFound("session", id)
	}
	return &session, nil
}

// Delete removes the session. Missing sessions are not an error.
func (s *SessionDB) Delete(ctx context.Context, id string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: deleting session %s: %w", id, err)
	}
	return nil
}

// DeleteExpired removes every session past its expiry and returns how many
// rows went away. The server calls it once at startup.
func (s *SessionDB) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("sqlite: deleting expired sessions: %w", err)
	}
	return res.RowsAffected()
}

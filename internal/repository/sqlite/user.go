package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sakif/promptcraft/internal/apperror"
	"github.com/sakif/promptcraft/internal/model"
	"github.com/sakif/promptcraft/internal/repository"
)

// compile-time check that *UserDB implements repository.UserRepository
var _ repository.UserRepository = (*UserDB)(nil)

// UserDB is the users table.
type UserDB struct {
	conn *sql.DB
}

// Create inserts a new user. ID (UUID) and CreatedAt are filled in here.
//
// The UNIQUE constraint on email is the only duplicate check: a second
// account for the same email fails here and is reported as
// apperror.ErrConflict.
func (u *UserDB) Create(ctx context.Context, user *model.User) error {
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now().UTC()

	// An OAuth-only account stores NULL, not an empty string.
	var password sql.NullString
	if user.PasswordHash != "" {
		password = sql.NullString{String: user.PasswordHash, Valid: true}
	}

	_, err := u.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		user.ID,
		user.Username,
		user.Email,
		password,
		user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.DuplicateEmail()
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Email, err)
	}

	return nil
}

// GetByEmail retrieves a user by email.
// Returns apperror.ErrNotFound if no user exists with that email.
func (u *UserDB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := u.conn.QueryRowContext(ctx,
		`SELECT id, username, email, password, created_at
		 FROM users WHERE email = ?`,
		email,
	)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email %s: %w", email, err)
	}
	return user, nil
}

// GetByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (u *UserDB) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := u.conn.QueryRowContext(ctx,
		`SELECT id, username, email, password, created_at
		 FROM users WHERE id = ?`,
		id,
	)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return user, nil
}

func scanUser(row *sql.Row) (*model.User, error) {
	var (
		user     model.User
		password sql.NullString
	)
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &password, &user.CreatedAt); err != nil {
		return nil, err
	}
	user.PasswordHash = password.String
	return &user, nil
}

// isUniqueViolation reports whether err is SQLite's UNIQUE constraint error.
// modernc.org/sqlite surfaces it as "constraint failed: UNIQUE constraint failed: ...".
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

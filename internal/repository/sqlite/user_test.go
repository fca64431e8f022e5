package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/promptcraft/internal/apperror"
	"github.com/sakif/promptcraft/internal/model"
)

// TESTING WITH IN-MEMORY SQLITE:
// Using ":memory:" creates a fresh database that exists only during the test.
// Each test gets its own database, so tests never see each other's rows.
//
// newTestDB is a "test helper". The `t.Helper()` call tells Go's test framework
// to report errors at the CALLER's line number, not inside this function.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	// t.Cleanup registers a function to run when the test finishes.
	t.Cleanup(func() { db.Close() })
	return db
}

// createTestUser is a test helper that creates a user and fails the test if it errors.
func createTestUser(t *testing.T, u *UserDB, username, email, hash string) *model.User {
	t.Helper()
	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	if err := u.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestUserCreate(t *testing.T) {
	u := newTestDB(t).Users()

	user := &model.User{
		Username:     "testuser",
		Email:        "test@example.com",
		PasswordHash: "$2a$04$hash",
	}

	if err := u.Create(context.Background(), user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Verify the user was modified in-place (pointer receiver)
	if user.ID == "" {
		t.Error("Create() did not set user.ID")
	}
	if user.CreatedAt.IsZero() {
		t.Error("Create() did not set user.CreatedAt")
	}
}

func TestUserCreate_DuplicateEmail(t *testing.T) {
	u := newTestDB(t).Users()
	createTestUser(t, u, "first", "dup@example.com", "hash")

	duplicate := &model.User{Username: "second", Email: "dup@example.com"}
	err := u.Create(context.Background(), duplicate)
	if err == nil {
		t.Fatal("Create() should have returned an error for duplicate email")
	}
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("Create() error = %v, want ErrConflict", err)
	}
}

// =========================================================================
// GET TESTS
// =========================================================================

func TestUserGetByEmail(t *testing.T) {
	u := newTestDB(t).Users()
	created := createTestUser(t, u, "alice", "alice@example.com", "secret-hash")

	found, err := u.GetByEmail(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}

	if found.ID != created.ID {
		t.Errorf("ID = %q, want %q", found.ID, created.ID)
	}
	if found.Username != "alice" {
		t.Errorf("Username = %q, want %q", found.Username, "alice")
	}
	if found.PasswordHash != "secret-hash" {
		t.Errorf("PasswordHash = %q, want %q", found.PasswordHash, "secret-hash")
	}
}

func TestUserGetByEmail_OAuthOnlyAccount(t *testing.T) {
	u := newTestDB(t).Users()
	createTestUser(t, u, "bob", "bob@example.com", "")

	found, err := u.GetByEmail(context.Background(), "bob@example.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if found.HasPassword() {
		t.Errorf("HasPassword() = true for an account created without a password")
	}
}

func TestUserGetByEmail_NotFound(t *testing.T) {
	u := newTestDB(t).Users()

	_, err := u.GetByEmail(context.Background(), "nobody@example.com")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByEmail() error = %v, want ErrNotFound", err)
	}
}

func TestUserGetByID(t *testing.T) {
	u := newTestDB(t).Users()
	created := createTestUser(t, u, "carol", "carol@example.com", "h")

	found, err := u.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if found.Email != "carol@example.com" {
		t.Errorf("Email = %q, want %q", found.Email, "carol@example.com")
	}
}

func TestUserGetByID_NotFound(t *testing.T) {
	u := newTestDB(t).Users()

	_, err := u.GetByID(context.Background(), "nonexistent-id")
	if err == nil {
		t.Fatal("GetByID() should have returned an error for nonexistent ID")
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestNew_MigrationsAreIdempotent(t *testing.T) {
	db := newTestDB(t)

	// Running the migrator again on an up-to-date schema must be a no-op.
	if err := db.migrate(); err != nil {
		t.Fatalf("second migrate() error = %v", err)
	}
}

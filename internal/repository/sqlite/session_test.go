package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/promptcraft/internal/apperror"
	"github.com/sakif/promptcraft/internal/model"
)

func TestSessionCreateAndGet(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db.Users(), "dave", "dave@example.com", "h")
	s := db.Sessions()

	session := &model.Session{
		ID:        "sess-1",
		UserID:    user.ID,
		Username:  user.Username,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := s.Create(context.Background(), session); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	found, err := s.GetByID(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if found.UserID != user.ID {
		t.Errorf("UserID = %q, want %q", found.UserID, user.ID)
	}
	if found.Username != "dave" {
		t.Errorf("Username = %q, want %q", found.Username, "dave")
	}
}

func TestSessionGet_Expired(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db.Users(), "erin", "erin@example.com", "h")
	s := db.Sessions()

	session := &model.Session{
		ID:        "sess-old",
		UserID:    user.ID,
		Username:  user.Username,
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	if err := s.Create(context.Background(), session); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, err := s.GetByID(context.Background(), "sess-old")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() on expired session error = %v, want ErrNotFound", err)
	}
}

func TestSessionDelete_Idempotent(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db.Users(), "frank", "frank@example.com", "h")
	s := db.Sessions()

	session := &model.Session{ID: "sess-2", UserID: user.ID, Username: "frank", ExpiresAt: time.Now().Add(time.Hour)}
	if err := s.Create(context.Background(), session); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := s.Delete(context.Background(), "sess-2"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := s.Delete(context.Background(), "sess-2"); err != nil {
		t.Fatalf("second Delete() error = %v, want nil", err)
	}

	if _, err := s.GetByID(context.Background(), "sess-2"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() after Delete error = %v, want ErrNotFound", err)
	}
}

func TestSessionDeleteExpired(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db.Users(), "gina", "gina@example.com", "h")
	s := db.Sessions()
	ctx := context.Background()

	live := &model.Session{ID: "live", UserID: user.ID, Username: "gina", ExpiresAt: time.Now().Add(time.Hour)}
	dead := &model.Session{ID: "dead", UserID: user.ID, Username: "gina", ExpiresAt: time.Now().Add(-time.Hour)}
	for _, sess := range []*model.Session{live, dead} {
		if err := s.Create(ctx, sess); err != nil {
			t.Fatalf("Create(%s) error = %v", sess.ID, err)
		}
	}

	n, err := s.DeleteExpired(ctx, time.Now())
	if err != nil {
		t.Fatalf("DeleteExpired() error = %v", err)
	}
	if n != 1 {
		t.Errorf("DeleteExpired() removed %d rows, want 1", n)
	}
	if _, err := s.GetByID(ctx, "live"); err != nil {
		t.Errorf("live session was removed: %v", err)
	}
}

package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

// newTestPasswordService returns a PasswordService with the minimum bcrypt
// cost so that tests run in milliseconds.
func newTestPasswordService() *PasswordService {
	return NewPasswordServiceForTest(bcrypt.MinCost)
}

// =========================================================================
// Hash TESTS
// =========================================================================

func TestHash_OutputLooksBcrypt(t *testing.T) {
	ps := newTestPasswordService()

	hash, err := ps.Hash("password123")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	// bcrypt hashes always start with $2a$ or $2b$
	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("Hash() does not look like a bcrypt hash: %q", hash)
	}
}

func TestHash_SaltIsRandom(t *testing.T) {
	ps := newTestPasswordService()

	hash1, _ := ps.Hash("same-password")
	hash2, _ := ps.Hash("same-password")

	if hash1 == hash2 {
		t.Error("Hash() produced identical hashes for the same password")
	}
}

func TestHash_LengthLimit(t *testing.T) {
	ps := newTestPasswordService()

	if _, err := ps.Hash(strings.Repeat("a", MaxPasswordBytes)); err != nil {
		t.Fatalf("Hash() should accept a %d-byte password, got error: %v", MaxPasswordBytes, err)
	}

	_, err := ps.Hash(strings.Repeat("a", MaxPasswordBytes+1))
	if !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("Hash() error = %v, want ErrPasswordTooLong", err)
	}
}

// =========================================================================
// Verify TESTS
// =========================================================================

func TestVerify(t *testing.T) {
	ps := newTestPasswordService()

	hash, err := ps.Hash("correct-horse-battery-staple")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	tests := []struct {
		name     string
		hash     string
		password string
		wantErr  error
	}{
		{"correct password", hash, "correct-horse-battery-staple", nil},
		{"wrong password", hash, "Tr0ub4dor&3", ErrPasswordMismatch},
		{"empty password", hash, "", ErrPasswordMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ps.Verify(tt.hash, tt.password)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Verify() error = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("Verify() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestVerify_GarbageHash(t *testing.T) {
	ps := newTestPasswordService()

	err := ps.Verify("not-a-valid-bcrypt-hash", "password")
	if err == nil {
		t.Fatal("Verify() should return an error for a garbage hash")
	}
	if errors.Is(err, ErrPasswordMismatch) {
		t.Error("a corrupt hash should not be reported as a plain mismatch")
	}
}

func TestHashVerify_RoundTrip(t *testing.T) {
	ps := newTestPasswordService()

	for _, password := range []string{"hello123", "p@$$w0rd!#%", "пароль-密码", "  padded  "} {
		hash, err := ps.Hash(password)
		if err != nil {
			t.Fatalf("Hash(%q) error = %v", password, err)
		}
		if err := ps.Verify(hash, password); err != nil {
			t.Errorf("Verify() failed for %q: %v", password, err)
		}
	}
}

package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is the longest password bcrypt can hash without silently
// truncating it. Signup rejects anything longer.
const MaxPasswordBytes = 72

// defaultCost is the bcrypt work factor used in production.
//
// Cost 12 takes roughly 250ms on a modern server: negligible for one login,
// brutal for anyone brute-forcing a leaked hash.
const defaultCost = 12

var (
	// ErrPasswordTooLong is returned by Hash for inputs over MaxPasswordBytes.
	ErrPasswordTooLong = fmt.Errorf("auth: password must be %d bytes or fewer", MaxPasswordBytes)

	// ErrPasswordMismatch is returned by Verify when the password is wrong.
	ErrPasswordMismatch = errors.New("auth: invalid password")
)

// PasswordService provides bcrypt hashing and verification.
//
// WHY BCRYPT?
// bcrypt generates a random salt per hash, embeds it (and the cost) in the
// output, and is deliberately slow. The stored string looks like:
//
//	$2a$12$<22-char salt><31-char hash>
//
// It's a struct (not free functions) so that the cost can be injected in
// tests; cost 4 makes a hash take microseconds instead of ~250ms.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the default cost.
func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceForTest creates a PasswordService with a caller-chosen
// cost. Tests in other packages pass bcrypt.MinCost (4).
//
// Do NOT use in production.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash hashes the given plaintext password with bcrypt.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify checks whether a plaintext password matches a stored bcrypt hash.
//
// Returns nil on a match, ErrPasswordMismatch on a wrong password, and a
// wrapped error when the stored hash itself is unreadable.
//
// bcrypt.CompareHashAndPassword compares in constant time, so response
// timing does not leak how much of the password was right.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}

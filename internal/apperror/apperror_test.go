// GO TESTING BASICS:
// 1. Test files MUST end in _test.go; Go's tooling auto-discovers them
// 2. Test functions MUST start with "Test" and take *testing.T as the only param
// 3. Same package as the code being tested (so we can access unexported stuff)
// 4. Run with: go test ./internal/apperror/ -v  (-v = verbose, shows each test name)
package apperror

import (
	"errors"
	"testing"
)

// TABLE-DRIVEN TESTS:
// This is Go's idiomatic pattern for testing multiple cases.
// Instead of writing 5 separate test functions, we define a slice of test cases
// and loop over them. Benefits:
// - Adding a new test case = adding one struct to the slice
// - Every case gets a name (shows up in test output)
// - DRY: the assertion logic is written once

func TestErrorsIs(t *testing.T) {
	// Each test case checks that errors.Is() correctly identifies the error type
	tests := []struct {
		name     string // Descriptive name for test output
		err      error  // The error to test
		target   error  // What we expect it to match
		wantMatch bool  // Should errors.Is() return true?
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("user", "abc123"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("name", "name is required"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Conflict wraps ErrConflict",
			err:       Conflict("session", "abc123"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "NotFound does NOT match ErrValidation",
			err:       NotFound("user", "abc123"),
			target:    ErrValidation,
			wantMatch: false,
		},
		{
			name:      "ValidationFailed does NOT match ErrNotFound",
			err:       ValidationFailed("name", "too long"),
			target:    ErrNotFound,
			wantMatch: false,
		},
		{
			name:      "IndexOutOfRange wraps ErrNotFound",
			err:       IndexOutOfRange(5, 2),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "DuplicateEmail wraps ErrConflict",
			err:       DuplicateEmail(),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "InvalidCredentials wraps ErrInvalidCredentials",
			err:       InvalidCredentials(),
			target:    ErrInvalidCredentials,
			wantMatch: true,
		},
		{
			name:      "QuotaExhausted wraps ErrQuotaExhausted",
			err:       QuotaExhausted("gemini"),
			target:    ErrQuotaExhausted,
			wantMatch: true,
		},
		{
			name:      "QuotaExhausted is also an ErrExternalService",
			err:       QuotaExhausted("gemini"),
			target:    ErrExternalService,
			wantMatch: true,
		},
		{
			name:      "ExternalService wraps ErrExternalService",
			err:       ExternalService("gemini", errors.New("boom")),
			target:    ErrExternalService,
			wantMatch: true,
		},
		{
			name:      "ExternalService is NOT ErrQuotaExhausted",
			err:       ExternalService("gemini", errors.New("boom")),
			target:    ErrQuotaExhausted,
			wantMatch: false,
		},
		{
			name:      "Unauthenticated wraps ErrUnauthenticated",
			err:       Unauthenticated(),
			target:    ErrUnauthenticated,
			wantMatch: true,
		},
	}

	// t.Run() creates a sub-test for each case.
	// Output looks like: TestErrorsIs/NotFound_wraps_ErrNotFound
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				// t.Errorf marks the test as failed but continues running other tests
				// (vs t.Fatalf which stops immediately)
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("user", "abc123"),
			wantMessage: "user not found with id abc123",
		},
		{
			name:        "ValidationFailed uses custom message",
			err:         ValidationFailed("name", "name is required"),
			wantMessage: "name is required",
		},
		{
			name:        "Conflict message includes resource and id",
			err:         Conflict("session", "abc123"),
			wantMessage: "session conflict with id abc123",
		},
		{
			name:        "IndexOutOfRange message includes index and length",
			err:         IndexOutOfRange(7, 3),
			wantMessage: "chat turn 7 out of range (transcript has 3 turns)",
		},
		{
			name:        "InvalidCredentials is uniform",
			err:         InvalidCredentials(),
			wantMessage: "Invalid email or password",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// .Error() should return the human-readable message
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	// Verify that Unwrap() returns the underlying sentinel error.
	// This is what makes errors.Is() work: it "unwraps" the chain.
	err := NotFound("user", "abc123")
	unwrapped := err.Unwrap()

	if unwrapped != ErrNotFound {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, ErrNotFound)
	}
}

func TestValidationFailedField(t *testing.T) {
	// Verify that the Field is set correctly for validation errors.
	// This lets handlers tell the frontend WHICH field was invalid.
	err := ValidationFailed("email", "invalid email format")

	if err.Field != "email" {
		t.Errorf("Field = %q, want %q", err.Field, "email")
	}
}

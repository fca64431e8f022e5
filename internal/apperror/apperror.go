// Package apperror defines the typed errors the service layer returns.
//
// Every AppError wraps one sentinel kind. Callers branch with errors.Is on
// the sentinel and show Message to the user; the underlying cause never
// reaches the browser.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("Validation Error")
	ErrConflict           = errors.New("conflict")
	ErrForbidden          = errors.New("forbidden")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrOAuthState         = errors.New("oauth state mismatch")
	ErrUnverifiedEmail    = errors.New("oauth email not verified")
	ErrExternalService    = errors.New("external service error")

	// ErrQuotaExhausted is a sub-kind of ErrExternalService:
	// errors.Is(err, ErrExternalService) holds for it too.
	ErrQuotaExhausted = fmt.Errorf("quota exhausted: %w", ErrExternalService)
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

// IndexOutOfRange reports a transcript index outside [0, length).
// It is a not-found condition at the HTTP boundary.
func IndexOutOfRange(index, length int) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("chat turn %d out of range (transcript has %d turns)", index, length),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// DuplicateEmail is the Conflict returned by signup for a taken address.
func DuplicateEmail() *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: "Email already exists",
		Field:   "email",
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthenticated is returned when an operation needs a live session.
func Unauthenticated() *AppError {
	return &AppError{
		Err:     ErrUnauthenticated,
		Message: "authentication required",
	}
}

// InvalidCredentials is deliberately uniform: unknown email, OAuth-only
// account and wrong password all produce this exact value.
func InvalidCredentials() *AppError {
	return &AppError{
		Err:     ErrInvalidCredentials,
		Message: "Invalid email or password",
	}
}

func OAuthStateMismatch() *AppError {
	return &AppError{
		Err:     ErrOAuthState,
		Message: "Google login could not be verified, please try again",
	}
}

func UnverifiedEmail(email string) *AppError {
	return &AppError{
		Err:     ErrUnverifiedEmail,
		Message: fmt.Sprintf("email %s is not verified by the identity provider", email),
	}
}

// ExternalService wraps a failure of a remote dependency. cause is kept in
// the chain for logging; Message stays generic.
func ExternalService(service string, cause error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %s: %w", ErrExternalService, service, cause),
		Message: fmt.Sprintf("%s is unavailable", service),
	}
}

// QuotaExhausted reports that a remote dependency refused the call because
// its usage quota is spent.
func QuotaExhausted(service string) *AppError {
	return &AppError{
		Err:     ErrQuotaExhausted,
		Message: fmt.Sprintf("%s quota exhausted", service),
	}
}

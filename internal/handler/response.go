package handler

// RESPONSE HELPERS:
// Every page handler ends in one of two ways: render a template, or render
// the error page for an error returned by a service. These helpers keep the
// status-code mapping in one place.
//
// ERROR MAPPING:
// The service layer returns apperror sentinels wrapped in AppError values.
// This file translates them to HTTP; the services never see status codes.
//
// errors.Is() UNWRAPPING:
// errors.Is(err, target) walks the entire error chain (via Unwrap()):
//
//	engine returns: fmt.Errorf("chat: ...: %w", apperror.IndexOutOfRange(5, 2))
//	which wraps:    AppError{Err: ErrNotFound, Message: "..."}
//	errors.Is walks: outer error → AppError → ErrNotFound ✓ match!

import (
	"errors"
	"net/http"

	"github.com/sakif/promptcraft/internal/apperror"
)

// genericErrorMessage is shown for any error that isn't a typed AppError.
// Raw errors may contain SQL, file paths or upstream responses.
const genericErrorMessage = "An internal error occurred"

// statusFor maps a domain error to an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrInvalidCredentials), errors.Is(err, apperror.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperror.ErrOAuthState), errors.Is(err, apperror.ErrUnverifiedEmail):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrExternalService):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// messageFor returns the user-facing message for err.
func messageFor(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && statusFor(err) != http.StatusInternalServerError {
		return appErr.Message
	}
	return genericErrorMessage
}

package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sakif/promptcraft/internal/apperror"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", apperror.ValidationFailed("email", "bad"), http.StatusBadRequest},
		{"invalid credentials", apperror.InvalidCredentials(), http.StatusUnauthorized},
		{"unauthenticated", apperror.Unauthenticated(), http.StatusUnauthorized},
		{"forbidden", apperror.Forbidden("no"), http.StatusForbidden},
		{"index out of range", apperror.IndexOutOfRange(5, 2), http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("chat: %w", apperror.IndexOutOfRange(5, 2)), http.StatusNotFound},
		{"duplicate email", apperror.DuplicateEmail(), http.StatusConflict},
		{"oauth state", apperror.OAuthStateMismatch(), http.StatusBadRequest},
		{"quota", apperror.QuotaExhausted("AI"), http.StatusBadGateway},
		{"untyped", errors.New("database is locked"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestMessageFor_HidesUntypedErrors(t *testing.T) {
	assert.Equal(t, genericErrorMessage, messageFor(errors.New("SELECT * FROM users failed")))
	assert.Equal(t, "Email already exists", messageFor(fmt.Errorf("service: %w", apperror.DuplicateEmail())))
}

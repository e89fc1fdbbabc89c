package apperrors

import (
	"errors"
	"fmt"
)

// Errors the session lifecycle surfaces to its callers.
// Each kind maps to a distinct outward response, so keep them distinguishable with errors.Is.
var (
	ErrValidationConflict = errors.New("validation conflict")
	ErrEmailTaken         = fmt.Errorf("email already registered: %w", ErrValidationConflict)
	ErrUsernameTaken      = fmt.Errorf("username already taken: %w", ErrValidationConflict)

	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account disabled")

	// Bad signature, expired claim, missing subject or superseded token: never tell them apart
	ErrInvalidToken = errors.New("invalid token")
)

// Store level errors
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrSessionNotFound = errors.New("session not found")
)

package apperrors

import "errors"

// Standardized Coordination Errors
var (
	ErrNotFound          = errors.New("record not found")
	ErrNotAuthorized     = errors.New("actor not authorized")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidInput      = errors.New("invalid input")
	ErrConflict          = errors.New("order no longer available")
	ErrNetwork           = errors.New("network error")
	ErrAuthExpired       = errors.New("authentication expired")
	ErrAPIDisabled       = errors.New("api disabled by circuit breaker")
)

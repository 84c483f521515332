package chat

import "errors"

// Expected, typed outcomes. Handlers translate these into user-facing
// responses; they are never retried automatically.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")
	ErrForbidden    = errors.New("forbidden")
	// ErrUnavailable wraps downstream store failures.
	ErrUnavailable = errors.New("unavailable")
)

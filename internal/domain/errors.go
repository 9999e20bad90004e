package domain

import "errors"

var (
	// ErrNotFound is returned when a user lookup by id or email finds nothing.
	ErrNotFound = errors.New("not found")
	// ErrConflict signals a uniqueness violation on email or fingerprint.
	ErrConflict = errors.New("conflict")
	// ErrUnauthorized covers bad credentials and missing or invalid tokens.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden signals a role or ownership mismatch.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidInput rejects malformed fields such as a short password or unknown role.
	ErrInvalidInput = errors.New("invalid input")
)

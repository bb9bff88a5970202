package services

import "errors"

// Domain errors returned by the services. Handlers map these to HTTP status
// codes at the request boundary; nothing below the boundary retries.
var (
	// ErrUnauthenticated means the caller's identity is missing or invalid.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden means the caller is authenticated but not allowed to
	// perform this mutation (e.g. a non-admin changing the song).
	ErrForbidden = errors.New("forbidden")

	// ErrSessionNotFound covers both a nonexistent session id and an ended
	// session. The two cases are deliberately indistinguishable so callers
	// cannot probe session lifecycle.
	ErrSessionNotFound = errors.New("session not found")

	// ErrNoActiveSession means no session currently has the active flag.
	ErrNoActiveSession = errors.New("no active session")

	// ErrValidation means a required field is missing or malformed.
	ErrValidation = errors.New("validation failed")

	// ErrEmailTaken means an account already exists for the email.
	ErrEmailTaken = errors.New("email already registered")
)

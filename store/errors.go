package store

import "errors"

var (
	// ErrUnauthorized is returned when an intent needs a logged-in user and there is none.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound is returned for operations on an idea id that does not exist.
	ErrNotFound = errors.New("idea not found")
	// ErrInvalidIdea wraps the validation failure of a new idea.
	ErrInvalidIdea = errors.New("invalid idea")
	// ErrInvalidStatus is returned when a status outside the enumeration is requested.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrMalformedStoredState marks unreadable durable user data. Restore treats it as absent.
	ErrMalformedStoredState = errors.New("malformed stored user")
	// ErrLoginInProgress rejects a second login while one is verifying.
	ErrLoginInProgress = errors.New("login already in progress")
	// ErrAlreadyLoggedIn rejects a login when a user is already installed.
	ErrAlreadyLoggedIn = errors.New("already logged in")
)

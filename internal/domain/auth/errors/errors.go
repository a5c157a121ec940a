package errors

import "errors"

var (
	// ErrLoginInProgress rejects starting a second login for the same id.
	ErrLoginInProgress = errors.New("login already in progress")

	// ErrNoActiveLogin means no session exists for the id.
	ErrNoActiveLogin = errors.New("no active login session")

	// ErrWrongState rejects an operation the session's current state does
	// not allow.
	ErrWrongState = errors.New("operation not allowed in current login state")

	// ErrInvalidPhone rejects a phone number that cannot be normalized.
	ErrInvalidPhone = errors.New("invalid phone number")
)

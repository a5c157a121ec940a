package errors

import "errors"

var (
	// ErrAccountExists rejects registering an id twice.
	ErrAccountExists = errors.New("account already exists")

	// ErrAccountNotFound means the id is not in the registry.
	ErrAccountNotFound = errors.New("account not found")

	// ErrDefaultProtected rejects removing the bootstrap account.
	ErrDefaultProtected = errors.New("default account cannot be removed")

	// ErrCredentialInvalid means the supplied credential did not produce an
	// authorized session.
	ErrCredentialInvalid = errors.New("credential is not authorized")
)

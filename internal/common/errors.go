package common

import "errors"

// Sentinel errors shared by the store, the auth service and the transport.
// Callers match them with errors.Is; wrapped causes are never inspected by
// string.
var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// ErrorStore tags any store fault the service does not anticipate
	// (connectivity, unexpected constraint violations). The cause is wrapped
	// next to it.
	ErrorStore = errors.New("store failure")

	// Service-level errors. The messages are user-facing.
	ErrorDuplicateEmail     = errors.New("User with this email already exists")
	ErrorInvalidCredentials = errors.New("Invalid credentials")
	ErrorInternal           = errors.New("internal error")

	// Token errors: malformed, unsigned, tampered or expired.
	ErrInvalidToken = errors.New("invalid token")

	// Boundary validation.
	ErrorValidation = errors.New("validation error")
)

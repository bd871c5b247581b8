package service

import "errors"

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("operation not allowed for this user")
	ErrInvalidInput    = errors.New("invalid input")

	// ErrInvalidSession and ErrInvalidCart report persisted state that failed
	// validation on load. Callers discard the data.
	ErrInvalidSession = errors.New("invalid persisted session")
	ErrInvalidCart    = errors.New("invalid persisted cart")
)

package services

import (
	"errors"
	"fmt"
)

var (
	// ErrStorageUnavailable is returned when every dispatched strategy failed to
	// read from its backing store.
	ErrStorageUnavailable = errors.New("storage unavailable")

	ErrInvalidMode       = errors.New("invalid mode")
	ErrLimitOutOfRange   = errors.New("limit out of range")
	ErrInvalidIdentifier = errors.New("invalid identifier")

	ErrInvalidToken = errors.New("invalid token")
)

// InvalidIdentifierError names the request field holding a non-positive id.
// It matches ErrInvalidIdentifier under errors.Is.
type InvalidIdentifierError struct {
	Field string
	ID    int64
}

func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("%s: %s %d", ErrInvalidIdentifier, e.Field, e.ID)
}

func (e *InvalidIdentifierError) Unwrap() error {
	return ErrInvalidIdentifier
}

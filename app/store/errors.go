package store

import (
	"errors"
	"fmt"
)

// ValidationError reports missing or invalid required input
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports an operation targeting a nonexistent id
type NotFoundError struct {
	Kind string // "location" or "job"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// PersistenceError reports a failed write. The in-memory state is already updated
// and stays authoritative for the session.
type PersistenceError struct {
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist %s: %v", e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsValidation checks if err is or wraps ValidationError
func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

// IsNotFound checks if err is or wraps NotFoundError
func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

// IsPersistence checks if err is or wraps PersistenceError
func IsPersistence(err error) bool {
	var e *PersistenceError
	return errors.As(err, &e)
}

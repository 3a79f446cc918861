package memory

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable is returned when a backend could not be initialized
	// or has been marked unusable.
	ErrUnavailable = errors.New("memory backend unavailable")

	// ErrNoBackends is returned when a manager is constructed with no
	// usable backends at all.
	ErrNoBackends = errors.New("no memory backends available")
)

// ValidationError reports a malformed entry or request rejected before
// any backend is touched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StorageError wraps a backend failure during a fan-out operation.
type StorageError struct {
	Backend string
	Op      string
	Err     error
}

func (e StorageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Err)
}

func (e StorageError) Unwrap() error {
	return e.Err
}

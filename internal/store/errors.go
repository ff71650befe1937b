package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the alert ID is unknown
	ErrNotFound = errors.New("alert not found")

	// ErrAlreadyAcknowledged is returned when acknowledging an alert
	// that is already acknowledged
	ErrAlreadyAcknowledged = errors.New("alert already acknowledged")

	// ErrAlreadyResolved is returned when acknowledging or resolving an
	// alert that is already resolved
	ErrAlreadyResolved = errors.New("alert already resolved")

	// ErrAlertExists is returned on a duplicate alert ID at creation
	ErrAlertExists = errors.New("alert already exists")
)

// TransientError wraps a store failure that the caller may retry, such as
// a timeout or connectivity loss.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient store failure during %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a retryable store failure
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

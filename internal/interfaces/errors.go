package interfaces

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the request id is unknown or the record expired.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists means a create-if-absent write hit an existing id.
	ErrAlreadyExists = errors.New("record already exists")

	// ErrConflict means a conditional write found the record in a
	// different status than expected, usually a duplicate delivery.
	ErrConflict = errors.New("status precondition failed")
)

// ValidationError marks client input that can never succeed. It is
// surfaced synchronously at submission and recorded as a terminal error
// when it slips through to processing.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// transientError wraps infrastructure failures that should be retried by
// queue redelivery rather than recorded as a terminal job error.
type transientError struct {
	err error
}

func (e *transientError) Error() string {
	return fmt.Sprintf("transient: %v", e.err)
}

func (e *transientError) Unwrap() error {
	return e.err
}

// Transient marks err as retryable infrastructure failure.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err was marked with Transient.
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

package domain

import "errors"

var (
	// ErrAlreadyClaimed is returned when attempting to claim a request that
	// is not in PENDING status
	ErrAlreadyClaimed = errors.New("submission request already claimed or not in PENDING status")

	// ErrMaxRetriesExceeded is returned when a request has exceeded its
	// retry limit
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// RetryableError wraps transient errors that should trigger a requeue
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}

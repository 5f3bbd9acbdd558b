package domain

import (
	"errors"
)

const (
	SubmissionStatusPending   = "PENDING"
	SubmissionStatusRunning   = "RUNNING"
	SubmissionStatusCompleted = "COMPLETED"
	SubmissionStatusFailed    = "FAILED"
)

var (
	ErrSubmissionNotFound = errors.New("submission request not found")
)

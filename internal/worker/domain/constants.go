package domain

// Submission request status constants
const (
	SubmissionStatusPending   = "PENDING"
	SubmissionStatusRunning   = "RUNNING"
	SubmissionStatusCompleted = "COMPLETED"
	SubmissionStatusFailed    = "FAILED"
)

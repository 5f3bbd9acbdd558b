package escrow

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyFile is returned when the deliverable file has no content.
	ErrEmptyFile = errors.New("deliverable file is empty")

	// ErrInvalidPreviewRef is returned when the preview reference is not a
	// well-formed http(s) locator.
	ErrInvalidPreviewRef = errors.New("preview reference is not a valid URL")

	// ErrActorNotAssigned is returned when the acting identity is not the
	// job's assigned worker.
	ErrActorNotAssigned = errors.New("actor is not the assigned worker")

	// ErrJobNotSubmittable is returned when the job snapshot is not in a
	// state that accepts a milestone submission.
	ErrJobNotSubmittable = errors.New("job does not accept submissions in its current state")

	// ErrMilestoneNotPending is returned when the targeted milestone has
	// already been submitted or resolved.
	ErrMilestoneNotPending = errors.New("milestone is not pending")

	// ErrSubmissionInFlight is returned when another submission for the same
	// job/milestone is already being processed by this orchestrator.
	ErrSubmissionInFlight = errors.New("submission already in flight for this milestone")
)

// StageError tags a pipeline failure with the stage it occurred in, so
// callers can decide between retry and abort per stage.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("submission failed at stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}

// RejectedError means the signer or the ledger rejected the transaction
// before a digest was durably submitted. Nothing landed; retrying is safe.
type RejectedError struct {
	Code string
	Err  error
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("transaction rejected (%s): %v", e.Code, e.Err)
}

func (e *RejectedError) Unwrap() error {
	return e.Err
}

// AmbiguousError means the transaction was submitted but confirmation failed
// or timed out. It may or may not have landed: callers must re-query ledger
// state before deciding to resubmit.
type AmbiguousError struct {
	Digest string
	Err    error
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("transaction confirmation ambiguous (digest %s): %v", e.Digest, e.Err)
}

func (e *AmbiguousError) Unwrap() error {
	return e.Err
}

// IsAmbiguous reports whether err stems from an ambiguous confirmation.
func IsAmbiguous(err error) bool {
	var ambiguous *AmbiguousError
	return errors.As(err, &ambiguous)
}

package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/escrow-be/internal/escrow"
	"github.com/cuongbtq/escrow-be/internal/worker/domain"
)

// processSubmission drives a single submission request through the
// deliverable pipeline with timeout, heartbeat, and status write-back.
func (w *Worker) processSubmission(ctx context.Context, msg *domain.SubmissionMessage) error {
	w.logger.Info("Processing submission",
		slog.String("submission_id", msg.SubmissionID),
		slog.String("worker_id", w.workerID),
	)

	// Step 1: Claim the request (PENDING -> RUNNING)
	task, err := w.storage.ClaimSubmission(ctx, msg.SubmissionID, w.workerID)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyClaimed) {
			w.logger.Warn("Submission already claimed, skipping",
				slog.String("submission_id", msg.SubmissionID),
			)
			return fmt.Errorf("submission already claimed: %w", err)
		}
		return fmt.Errorf("failed to claim submission: %w", err)
	}

	// Step 2: Bound the whole pipeline run
	taskCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	// Step 3: Heartbeat while the pipeline runs
	heartbeatDone := make(chan struct{})
	go w.sendHeartbeat(taskCtx, task.SubmissionID, heartbeatDone)
	defer close(heartbeatDone)

	// Step 4: Run the orchestrator, persisting progress and attempt digests
	// as they happen
	req := &escrow.SubmitRequest{
		JobID:      task.JobID,
		Milestone:  task.Milestone,
		File:       task.FileBytes,
		PreviewRef: task.PreviewRef,
		Actor:      escrow.Identity(task.Actor),
		Filename:   task.Filename,
		OnAttempt: func(attempt escrow.TransactionAttempt) {
			if attempt.Digest == "" {
				return
			}
			if err := w.storage.RecordDigest(ctx, task.SubmissionID, attempt.Digest); err != nil {
				w.logger.Warn("Failed to record transaction digest",
					slog.String("submission_id", task.SubmissionID),
					slog.String("error", err.Error()),
				)
			}
		},
	}

	onProgress := func(p escrow.Progress) {
		if err := w.storage.UpdateProgress(ctx, task.SubmissionID, string(p.Stage), p.Percent); err != nil {
			w.logger.Warn("Failed to persist progress",
				slog.String("submission_id", task.SubmissionID),
				slog.String("error", err.Error()),
			)
		}
	}

	submission, err := w.orchestrator.SubmitDeliverable(taskCtx, req, onProgress)
	if err != nil {
		return w.handleFailure(ctx, task, err)
	}

	// Step 5: Record the outcome
	if err := w.storage.MarkCompleted(ctx, task.SubmissionID, submission.ContentID); err != nil {
		w.logger.Error("Failed to mark submission completed",
			slog.String("submission_id", task.SubmissionID),
			slog.String("error", err.Error()),
		)
		// The pipeline succeeded; still ACK the message
	}

	w.logger.Info("Submission completed",
		slog.String("submission_id", task.SubmissionID),
		slog.String("job_id", task.JobID),
		slog.String("content_id", submission.ContentID),
	)

	return nil
}

// handleFailure classifies a pipeline failure and records it. The returned
// error feeds the ACK/NACK decision in the worker loop.
func (w *Worker) handleFailure(ctx context.Context, task *domain.SubmissionTask, err error) error {
	stage := ""
	var stageErr *escrow.StageError
	if errors.As(err, &stageErr) {
		stage = string(stageErr.Stage)
	}

	// Validation failures: no side effects happened, nothing to retry until
	// the caller corrects the request.
	if errors.Is(err, escrow.ErrEmptyFile) ||
		errors.Is(err, escrow.ErrInvalidPreviewRef) ||
		errors.Is(err, escrow.ErrActorNotAssigned) ||
		errors.Is(err, escrow.ErrJobNotSubmittable) ||
		errors.Is(err, escrow.ErrMilestoneNotPending) {
		if markErr := w.storage.MarkFailed(ctx, task.SubmissionID, stage, err.Error()); markErr != nil {
			w.logger.Error("Failed to mark submission failed",
				slog.String("submission_id", task.SubmissionID),
				slog.String("error", markErr.Error()),
			)
		}
		return err
	}

	// A concurrent duplicate for the same milestone: the other call owns the
	// pipeline, so this message is simply dropped.
	if errors.Is(err, escrow.ErrSubmissionInFlight) {
		if markErr := w.storage.MarkFailed(ctx, task.SubmissionID, stage, err.Error()); markErr != nil {
			w.logger.Error("Failed to mark submission failed",
				slog.String("submission_id", task.SubmissionID),
				slog.String("error", markErr.Error()),
			)
		}
		return err
	}

	// Ambiguous confirmation: the transaction may have landed. Re-query the
	// ledger before deciding anything; blind resubmission is never safe.
	if escrow.IsAmbiguous(err) {
		if landed, contentID := w.milestoneLanded(ctx, task); landed {
			w.logger.Info("Ambiguous transaction actually landed, reconciling from ledger state",
				slog.String("submission_id", task.SubmissionID),
				slog.String("job_id", task.JobID),
			)
			if markErr := w.storage.MarkCompleted(ctx, task.SubmissionID, contentID); markErr != nil {
				w.logger.Error("Failed to mark submission completed",
					slog.String("submission_id", task.SubmissionID),
					slog.String("error", markErr.Error()),
				)
			}
			return nil
		}
		// Did not land: the whole pipeline is safe to re-run. Duplicate
		// blobs cost storage, never correctness.
	}

	if task.RetryCount >= task.MaxRetries {
		w.logger.Warn("Submission exceeded max retries",
			slog.String("submission_id", task.SubmissionID),
			slog.Int("retry_count", task.RetryCount),
			slog.Int("max_retries", task.MaxRetries),
		)
		if markErr := w.storage.MarkFailed(ctx, task.SubmissionID, stage, err.Error()); markErr != nil {
			w.logger.Error("Failed to mark submission failed",
				slog.String("submission_id", task.SubmissionID),
				slog.String("error", markErr.Error()),
			)
		}
		return fmt.Errorf("%w: %v", domain.ErrMaxRetriesExceeded, err)
	}

	if markErr := w.storage.MarkRetrying(ctx, task.SubmissionID, stage, err.Error()); markErr != nil {
		w.logger.Error("Failed to mark submission for retry",
			slog.String("submission_id", task.SubmissionID),
			slog.String("error", markErr.Error()),
		)
	}

	w.logger.Info("Submission will be retried",
		slog.String("submission_id", task.SubmissionID),
		slog.String("stage", stage),
		slog.Int("retry_count", task.RetryCount),
		slog.Int("max_retries", task.MaxRetries),
	)

	return domain.NewRetryableError(err)
}

// milestoneLanded re-fetches the job and reports whether the targeted
// milestone was actually submitted, returning the recorded content id when
// it was.
func (w *Worker) milestoneLanded(ctx context.Context, task *domain.SubmissionTask) (bool, string) {
	job, err := w.ledger.FetchJob(ctx, task.JobID)
	if err != nil {
		w.logger.Warn("Failed to re-check ledger state after ambiguous confirmation",
			slog.String("job_id", task.JobID),
			slog.String("error", err.Error()),
		)
		return false, ""
	}

	m := job.MilestoneAt(task.Milestone)
	if m == nil || m.Status == escrow.MilestonePending {
		return false, ""
	}

	contentID := ""
	if m.Submission != nil {
		contentID = m.Submission.ContentID
	}
	return true, contentID
}

// sendHeartbeat periodically refreshes the submission's heartbeat timestamp
func (w *Worker) sendHeartbeat(ctx context.Context, submissionID string, done <-chan struct{}) {
	ticker := time.NewTicker(w.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return

		case <-ctx.Done():
			return

		case <-ticker.C:
			if err := w.storage.UpdateHeartbeat(ctx, submissionID); err != nil {
				w.logger.Warn("Failed to update submission heartbeat",
					slog.String("submission_id", submissionID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

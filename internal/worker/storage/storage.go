package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/escrow-be/internal/worker/domain"
	"github.com/jmoiron/sqlx"
)

// Storage handles all database operations for the worker
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// ClaimSubmission claims a pending submission request using optimistic
// locking (PENDING -> RUNNING). Returns the full task on success, or
// domain.ErrAlreadyClaimed if another worker got there first.
func (s *Storage) ClaimSubmission(ctx context.Context, submissionID, workerID string) (*domain.SubmissionTask, error) {
	query := `
		UPDATE submission_requests
		SET status = $1,
		    worker_id = $2,
		    started_at = NOW(),
		    last_heartbeat_at = NOW(),
		    updated_at = NOW()
		WHERE submission_id = $3
		  AND status = $4
		RETURNING submission_id, job_id, milestone, actor, preview_ref, filename, file_bytes, retry_count, max_retries
	`

	var task domain.SubmissionTask
	err := s.db.QueryRowContext(ctx, query, domain.SubmissionStatusRunning, workerID, submissionID, domain.SubmissionStatusPending).Scan(
		&task.SubmissionID,
		&task.JobID,
		&task.Milestone,
		&task.Actor,
		&task.PreviewRef,
		&task.Filename,
		&task.FileBytes,
		&task.RetryCount,
		&task.MaxRetries,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("Failed to claim submission - already claimed or not found",
				slog.String("submission_id", submissionID),
				slog.String("worker_id", workerID),
			)
			return nil, domain.ErrAlreadyClaimed
		}
		return nil, fmt.Errorf("failed to claim submission: %w", err)
	}

	task.Status = domain.SubmissionStatusRunning

	s.logger.Info("Submission claimed successfully",
		slog.String("submission_id", submissionID),
		slog.String("worker_id", workerID),
		slog.String("job_id", task.JobID),
	)

	return &task, nil
}

// UpdateProgress persists the current pipeline stage and percentage so the
// API can report progress to pollers. Progress only ever moves forward.
func (s *Storage) UpdateProgress(ctx context.Context, submissionID, stage string, percent int) error {
	query := `
		UPDATE submission_requests
		SET stage = $1,
		    percent = GREATEST(percent, $2),
		    updated_at = NOW()
		WHERE submission_id = $3 AND status = $4
	`

	_, err := s.db.ExecContext(ctx, query, stage, percent, submissionID, domain.SubmissionStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to update submission progress: %w", err)
	}

	return nil
}

// RecordDigest stores the digest of the latest ledger transaction attempt.
func (s *Storage) RecordDigest(ctx context.Context, submissionID, digest string) error {
	query := `
		UPDATE submission_requests
		SET digest = $1,
		    updated_at = NOW()
		WHERE submission_id = $2
	`

	_, err := s.db.ExecContext(ctx, query, digest, submissionID)
	if err != nil {
		return fmt.Errorf("failed to record transaction digest: %w", err)
	}

	return nil
}

// MarkCompleted records a successful pipeline run.
func (s *Storage) MarkCompleted(ctx context.Context, submissionID, contentID string) error {
	query := `
		UPDATE submission_requests
		SET status = $1,
		    content_id = $2,
		    file_bytes = NULL,
		    percent = 100,
		    error_message = NULL,
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE submission_id = $3
	`

	_, err := s.db.ExecContext(ctx, query, domain.SubmissionStatusCompleted, contentID, submissionID)
	if err != nil {
		return fmt.Errorf("failed to mark submission completed: %w", err)
	}

	s.logger.Info("Submission marked completed",
		slog.String("submission_id", submissionID),
		slog.String("content_id", contentID),
	)

	return nil
}

// MarkFailed records a terminal failure. The file payload is kept so the
// caller can correct and resubmit under a new idempotency key.
func (s *Storage) MarkFailed(ctx context.Context, submissionID, stage, errorMsg string) error {
	query := `
		UPDATE submission_requests
		SET status = $1,
		    stage = $2,
		    error_message = $3,
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE submission_id = $4
	`

	_, err := s.db.ExecContext(ctx, query, domain.SubmissionStatusFailed, stage, errorMsg, submissionID)
	if err != nil {
		return fmt.Errorf("failed to mark submission failed: %w", err)
	}

	s.logger.Info("Submission marked failed",
		slog.String("submission_id", submissionID),
		slog.String("stage", stage),
	)

	return nil
}

// MarkRetrying releases the claim (RUNNING -> PENDING) and bumps the retry
// counter so a requeued message can claim the row again.
func (s *Storage) MarkRetrying(ctx context.Context, submissionID, stage, errorMsg string) error {
	query := `
		UPDATE submission_requests
		SET status = $1,
		    stage = $2,
		    error_message = $3,
		    retry_count = retry_count + 1,
		    worker_id = NULL,
		    updated_at = NOW()
		WHERE submission_id = $4
	`

	_, err := s.db.ExecContext(ctx, query, domain.SubmissionStatusPending, stage, errorMsg, submissionID)
	if err != nil {
		return fmt.Errorf("failed to mark submission for retry: %w", err)
	}

	return nil
}

// UpdateHeartbeat updates the last_heartbeat_at timestamp for a running
// submission
func (s *Storage) UpdateHeartbeat(ctx context.Context, submissionID string) error {
	query := `
		UPDATE submission_requests
		SET last_heartbeat_at = NOW(),
		    updated_at = NOW()
		WHERE submission_id = $1 AND status = $2
	`

	result, err := s.db.ExecContext(ctx, query, submissionID, domain.SubmissionStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to update submission heartbeat: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		s.logger.Warn("Heartbeat update - no rows affected (submission may not be running)",
			slog.String("submission_id", submissionID),
		)
	}

	return nil
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cuongbtq/escrow-be/internal/api/domain"
	"github.com/cuongbtq/escrow-be/internal/api/model"
	"github.com/cuongbtq/escrow-be/shared/postgresql"
	"github.com/jmoiron/sqlx"
)

type Storage struct {
	db *sqlx.DB
}

func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{
		db: pg.GetDB(),
	}
}

func (s *Storage) CreateSubmission(ctx context.Context, req *model.SubmissionRequest) error {
	query := `
		INSERT INTO submission_requests (
			submission_id, idempotency_key, job_id, milestone,
			actor, preview_ref, filename, file_bytes,
			status, percent, retry_count, max_retries,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11, $12,
			$13, $14
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		req.SubmissionID,
		req.IdempotencyKey,
		req.JobID,
		req.Milestone,
		req.Actor,
		req.PreviewRef,
		req.Filename,
		req.FileBytes,
		req.Status,
		req.Percent,
		req.RetryCount,
		req.MaxRetries,
		req.CreatedAt,
		req.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create submission request: %w", err)
	}

	return nil
}

// GetByIdempotencyKey returns an existing request for the key, or
// domain.ErrSubmissionNotFound.
func (s *Storage) GetByIdempotencyKey(ctx context.Context, key string) (*model.SubmissionRequest, error) {
	var req model.SubmissionRequest
	query := `
		SELECT
			submission_id, idempotency_key, job_id, milestone,
			actor, preview_ref, filename, status, stage, percent,
			content_id, digest, error_message, retry_count, max_retries,
			created_at, updated_at
		FROM submission_requests
		WHERE idempotency_key = $1
	`

	err := s.db.GetContext(ctx, &req, query, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to get submission request by idempotency key: %w", err)
	}

	return &req, nil
}

func (s *Storage) GetBySubmissionID(ctx context.Context, submissionID string) (*model.SubmissionRequest, error) {
	var req model.SubmissionRequest
	query := `
		SELECT
			submission_id, idempotency_key, job_id, milestone,
			actor, preview_ref, filename, status, stage, percent,
			content_id, digest, error_message, retry_count, max_retries,
			created_at, updated_at
		FROM submission_requests
		WHERE submission_id = $1
	`

	err := s.db.GetContext(ctx, &req, query, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to get submission request: %w", err)
	}

	return &req, nil
}

type SubmissionFilter struct {
	JobID    string
	Actor    string
	Status   string
	PageSize int
	Cursor   *SubmissionCursor
}

type SubmissionCursor struct {
	CreatedAt    time.Time
	SubmissionID string
}

func (s *Storage) ListSubmissions(ctx context.Context, filter SubmissionFilter) ([]model.SubmissionRequest, error) {
	query := `
		SELECT
			submission_id, idempotency_key, job_id, milestone,
			actor, preview_ref, filename, status, stage, percent,
			content_id, digest, error_message, retry_count, max_retries,
			created_at, updated_at
		FROM submission_requests
		WHERE 1=1
	`
	args := []interface{}{}
	argIdx := 1

	// Filters
	if filter.JobID != "" {
		query += fmt.Sprintf(" AND job_id = $%d", argIdx)
		args = append(args, filter.JobID)
		argIdx++
	}

	if filter.Actor != "" {
		query += fmt.Sprintf(" AND actor = $%d", argIdx)
		args = append(args, filter.Actor)
		argIdx++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, submission_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.SubmissionID)
		argIdx += 2
	}

	// Order by created_at DESC, submission_id DESC for consistent pagination
	query += " ORDER BY created_at DESC, submission_id DESC"

	// Fetch one extra to determine if there are more results
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var requests []model.SubmissionRequest
	err := s.db.SelectContext(ctx, &requests, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list submission requests: %w", err)
	}

	return requests, nil
}

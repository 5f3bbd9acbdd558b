package model

import (
	"database/sql"
	"time"
)

// SubmissionRequest is the process-local bookkeeping row for one deliverable
// submission request. The ledger remains the source of truth for job and
// milestone state; this row only tracks pipeline progress and outcome for
// callers polling the API.
type SubmissionRequest struct {
	SubmissionID   string         `db:"submission_id"`
	IdempotencyKey string         `db:"idempotency_key"`
	JobID          string         `db:"job_id"`
	Milestone      int            `db:"milestone"`
	Actor          string         `db:"actor"`
	PreviewRef     string         `db:"preview_ref"`
	Filename       string         `db:"filename"`
	FileBytes      []byte         `db:"file_bytes"`
	Status         string         `db:"status"`
	Stage          sql.NullString `db:"stage"`
	Percent        int            `db:"percent"`
	ContentID      sql.NullString `db:"content_id"`
	Digest         sql.NullString `db:"digest"`
	ErrorMessage   sql.NullString `db:"error_message"`
	RetryCount     int            `db:"retry_count"`
	MaxRetries     int            `db:"max_retries"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

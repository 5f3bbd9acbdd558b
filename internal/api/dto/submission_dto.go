package dto

// CreateSubmissionRequest enqueues a deliverable submission. The file travels
// base64-encoded; the worker decrypts nothing here, it only hands the bytes
// to the encryption service.
type CreateSubmissionRequest struct {
	IdempotencyKey string `json:"idempotency_key" binding:"required"`
	JobID          string `json:"job_id" binding:"required"`
	Milestone      int    `json:"milestone"`
	Actor          string `json:"actor" binding:"required"`
	PreviewRef     string `json:"preview_ref" binding:"required"`
	Filename       string `json:"filename" binding:"required"`
	FileBase64     string `json:"file_base64" binding:"required"`
}

type ListSubmissionsRequest struct {
	JobID    string `form:"job_id"`
	Actor    string `form:"actor"`
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListSubmissionsResponse struct {
	Submissions []SubmissionDTO `json:"submissions"`
	NextCursor  string          `json:"next_cursor,omitempty"`
}

// SubmissionDTO is the API view of a submission request. Submitting is an
// optimistic, view-only flag derived from the row status; it never feeds back
// into lifecycle decisions.
type SubmissionDTO struct {
	SubmissionID   string `json:"submission_id"`
	IdempotencyKey string `json:"idempotency_key"`
	JobID          string `json:"job_id"`
	Milestone      int    `json:"milestone"`
	Actor          string `json:"actor"`
	PreviewRef     string `json:"preview_ref"`
	Filename       string `json:"filename"`
	Status         string `json:"status"`
	Submitting     bool   `json:"submitting"`
	Stage          string `json:"stage,omitempty"`
	Percent        int    `json:"percent"`
	ContentID      string `json:"content_id,omitempty"`
	Digest         string `json:"digest,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// JobDTO is the API view of a ledger job snapshot, with the lifecycle
// predicates evaluated for the requested actor.
type JobDTO struct {
	JobID             string         `json:"job_id"`
	Title             string         `json:"title"`
	Budget            int64          `json:"budget"`
	Deadline          string         `json:"deadline"`
	Client            string         `json:"client"`
	Worker            string         `json:"worker,omitempty"`
	State             string         `json:"state"`
	PendingCompletion bool           `json:"pending_completion"`
	Milestones        []MilestoneDTO `json:"milestones"`
	CanStart          *bool          `json:"can_start,omitempty"`
	CanSubmit         *bool          `json:"can_submit,omitempty"`
	CanClaim          *bool          `json:"can_claim_completion,omitempty"`
}

type MilestoneDTO struct {
	Ordinal int    `json:"ordinal"`
	Status  string `json:"status"`
}

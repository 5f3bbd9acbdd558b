package handler

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cuongbtq/escrow-be/internal/api/domain"
	"github.com/cuongbtq/escrow-be/internal/api/dto"
	"github.com/cuongbtq/escrow-be/internal/api/model"
	"github.com/cuongbtq/escrow-be/internal/api/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CreateSubmission handles POST /api/v1/submissions
// Accepts a deliverable submission request, stores it, and enqueues it for
// the worker service. The pipeline itself (encrypt, upload, ledger
// transactions) runs asynchronously.
func (h *SubmissionHandler) CreateSubmission(c *gin.Context) {
	var req dto.CreateSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	// Cheap syntax checks up front; the orchestrator re-validates before any
	// side effect.
	if !validPreviewRef(req.PreviewRef) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "preview_ref must be a valid http(s) URL",
		})
		return
	}

	file, err := base64.StdEncoding.DecodeString(req.FileBase64)
	if err != nil || len(file) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "file_base64 must be non-empty base64 data",
		})
		return
	}
	if h.maxFileBytes > 0 && int64(len(file)) > h.maxFileBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": "file exceeds the configured size limit",
		})
		return
	}

	// Idempotency: replay the existing request instead of enqueueing twice.
	if existing, err := h.storage.GetByIdempotencyKey(c.Request.Context(), req.IdempotencyKey); err == nil {
		c.JSON(http.StatusOK, toSubmissionDTO(existing))
		return
	} else if !errors.Is(err, domain.ErrSubmissionNotFound) {
		h.logger.Error("Failed to check idempotency key", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create submission request",
		})
		return
	}

	now := time.Now()
	request := model.SubmissionRequest{
		SubmissionID:   uuid.New().String(),
		IdempotencyKey: req.IdempotencyKey,
		JobID:          req.JobID,
		Milestone:      req.Milestone,
		Actor:          req.Actor,
		PreviewRef:     req.PreviewRef,
		Filename:       req.Filename,
		FileBytes:      file,
		Status:         domain.SubmissionStatusPending,
		MaxRetries:     h.maxRetries,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := h.storage.CreateSubmission(c.Request.Context(), &request); err != nil {
		h.logger.Error("Failed to create submission request", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create submission request",
		})
		return
	}

	message, _ := json.Marshal(map[string]string{"submission_id": request.SubmissionID})
	if err := h.rabbitClient.PublishWithRetry(c.Request.Context(), message, "application/json"); err != nil {
		h.logger.Error("Failed to enqueue submission request",
			slog.String("submission_id", request.SubmissionID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to enqueue submission request",
		})
		return
	}

	h.logger.Info("Submission request enqueued",
		slog.String("submission_id", request.SubmissionID),
		slog.String("job_id", request.JobID),
		slog.Int("milestone", request.Milestone),
	)

	c.JSON(http.StatusAccepted, toSubmissionDTO(&request))
}

// GetSubmission handles GET /api/v1/submissions/:submission_id
func (h *SubmissionHandler) GetSubmission(c *gin.Context) {
	submissionID := c.Param("submission_id")

	if _, err := uuid.Parse(submissionID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "submission_id must be a valid UUID",
		})
		return
	}

	request, err := h.storage.GetBySubmissionID(c.Request.Context(), submissionID)
	if err != nil {
		if errors.Is(err, domain.ErrSubmissionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "submission not found",
			})
			return
		}
		h.logger.Error("Failed to get submission request", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get submission request",
		})
		return
	}

	c.JSON(http.StatusOK, toSubmissionDTO(request))
}

// ListSubmissions handles GET /api/v1/submissions
// Lists submission requests with optional filtering and keyset pagination
func (h *SubmissionHandler) ListSubmissions(c *gin.Context) {
	var req dto.ListSubmissionsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodeSubmissionCursor(req.Cursor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	filter := storage.SubmissionFilter{
		JobID:    req.JobID,
		Actor:    req.Actor,
		Status:   req.Status,
		PageSize: req.PageSize,
		Cursor:   cursor,
	}

	requests, err := h.storage.ListSubmissions(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list submission requests", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list submission requests",
		})
		return
	}

	hasMore := len(requests) > req.PageSize
	if hasMore {
		requests = requests[:req.PageSize]
	}

	response := make([]dto.SubmissionDTO, len(requests))
	for i := range requests {
		response[i] = *toSubmissionDTO(&requests[i])
	}

	var nextCursor string
	if hasMore {
		last := requests[len(requests)-1]
		nextCursor, err = EncodeSubmissionCursor(&storage.SubmissionCursor{
			CreatedAt:    last.CreatedAt,
			SubmissionID: last.SubmissionID,
		})
		if err != nil {
			h.logger.Error("Failed to encode next cursor", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to encode next cursor",
			})
			return
		}
	}

	c.JSON(http.StatusOK, dto.ListSubmissionsResponse{
		Submissions: response,
		NextCursor:  nextCursor,
	})
}

func toSubmissionDTO(req *model.SubmissionRequest) *dto.SubmissionDTO {
	return &dto.SubmissionDTO{
		SubmissionID:   req.SubmissionID,
		IdempotencyKey: req.IdempotencyKey,
		JobID:          req.JobID,
		Milestone:      req.Milestone,
		Actor:          req.Actor,
		PreviewRef:     req.PreviewRef,
		Filename:       req.Filename,
		Status:         req.Status,
		Submitting:     req.Status == domain.SubmissionStatusPending || req.Status == domain.SubmissionStatusRunning,
		Stage:          req.Stage.String,
		Percent:        req.Percent,
		ContentID:      req.ContentID.String,
		Digest:         req.Digest.String,
		ErrorMessage:   req.ErrorMessage.String,
		CreatedAt:      req.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      req.UpdatedAt.Format(time.RFC3339),
	}
}

func validPreviewRef(ref string) bool {
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

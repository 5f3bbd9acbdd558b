package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/escrow-be/internal/api/dto"
	"github.com/cuongbtq/escrow-be/internal/escrow"
	"github.com/gin-gonic/gin"
)

// GetJob handles GET /api/v1/jobs/:job_id
// Returns the current ledger snapshot of a job. When an actor query
// parameter is given, the lifecycle predicates are evaluated for it so
// presentation layers never re-implement the transition table.
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")
	if jobID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id is required",
		})
		return
	}

	job, err := h.ledger.FetchJob(c.Request.Context(), jobID)
	if err != nil {
		h.logger.Error("Failed to fetch job from ledger",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "Failed to fetch job from ledger",
		})
		return
	}

	response := dto.JobDTO{
		JobID:             job.ID,
		Title:             job.Title,
		Budget:            job.Budget,
		Deadline:          job.Deadline.Format(time.RFC3339),
		Client:            string(job.Client),
		Worker:            string(job.Worker),
		State:             string(job.State),
		PendingCompletion: job.PendingCompletion,
	}
	for _, m := range job.Milestones {
		response.Milestones = append(response.Milestones, dto.MilestoneDTO{
			Ordinal: m.Ordinal,
			Status:  string(m.Status),
		})
	}

	if actor := escrow.Identity(c.Query("actor")); actor != "" {
		canStart := escrow.CanStart(job, actor)
		canSubmit := escrow.CanSubmit(job, actor)
		canClaim := escrow.CanClaimCompletion(job, actor)
		response.CanStart = &canStart
		response.CanSubmit = &canSubmit
		response.CanClaim = &canClaim
	}

	c.JSON(http.StatusOK, response)
}

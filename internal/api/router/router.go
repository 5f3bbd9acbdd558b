package router

import (
	"net/http"

	"github.com/cuongbtq/escrow-be/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "escrow-api-service",
		})
	})

	submissionHandler := handler.NewSubmissionHandler(deps)
	jobHandler := handler.NewJobHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		submissions := v1.Group("/submissions")
		{
			// POST /api/v1/submissions - Enqueue a deliverable submission
			submissions.POST("", submissionHandler.CreateSubmission)

			// GET /api/v1/submissions - List submissions with filtering and pagination
			submissions.GET("", submissionHandler.ListSubmissions)

			// GET /api/v1/submissions/:submission_id - Get submission progress/outcome
			submissions.GET("/:submission_id", submissionHandler.GetSubmission)
		}

		jobs := v1.Group("/jobs")
		{
			// GET /api/v1/jobs/:job_id - Ledger job snapshot + lifecycle predicates
			jobs.GET("/:job_id", jobHandler.GetJob)
		}
	}

	return r
}

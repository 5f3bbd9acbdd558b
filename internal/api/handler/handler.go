package handler

import (
	"log/slog"

	"github.com/cuongbtq/escrow-be/internal/api/storage"
	"github.com/cuongbtq/escrow-be/internal/escrow"
	"github.com/cuongbtq/escrow-be/shared/postgresql"
	"github.com/cuongbtq/escrow-be/shared/rabbitmq"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger       *slog.Logger
	DBClient     *postgresql.Client
	RabbitClient *rabbitmq.Client
	Ledger       escrow.Executor
	MaxFileBytes int64
	MaxRetries   int
}

// SubmissionHandler handles deliverable submission HTTP requests
type SubmissionHandler struct {
	logger       *slog.Logger
	storage      *storage.Storage
	rabbitClient *rabbitmq.Client
	maxFileBytes int64
	maxRetries   int
}

// NewSubmissionHandler creates a new SubmissionHandler instance
func NewSubmissionHandler(deps *Dependencies) *SubmissionHandler {
	return &SubmissionHandler{
		logger:       deps.Logger,
		storage:      storage.NewStorage(deps.DBClient),
		rabbitClient: deps.RabbitClient,
		maxFileBytes: deps.MaxFileBytes,
		maxRetries:   deps.MaxRetries,
	}
}

// JobHandler serves ledger job snapshots with lifecycle predicates
type JobHandler struct {
	logger *slog.Logger
	ledger escrow.Executor
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger: deps.Logger,
		ledger: deps.Ledger,
	}
}

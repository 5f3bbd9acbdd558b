package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/escrow-be/internal/escrow"
	"github.com/cuongbtq/escrow-be/internal/worker/domain"
	"github.com/cuongbtq/escrow-be/internal/worker/storage"
	"github.com/cuongbtq/escrow-be/shared/postgresql"
	"github.com/cuongbtq/escrow-be/shared/rabbitmq"
	"github.com/google/uuid"
)

// Config holds worker configuration
type Config struct {
	Logger            *slog.Logger
	DBClient          *postgresql.Client
	RabbitClient      *rabbitmq.Client
	Orchestrator      *escrow.Orchestrator
	Ledger            escrow.Executor
	Concurrency       int
	PrefetchCount     int
	JobTimeout        time.Duration
	HeartbeatInterval time.Duration
}

// submissionStore is the subset of the submission request store the worker
// uses to claim requests and write back their progress and outcome.
type submissionStore interface {
	ClaimSubmission(ctx context.Context, submissionID, workerID string) (*domain.SubmissionTask, error)
	UpdateProgress(ctx context.Context, submissionID, stage string, percent int) error
	RecordDigest(ctx context.Context, submissionID, digest string) error
	MarkCompleted(ctx context.Context, submissionID, contentID string) error
	MarkFailed(ctx context.Context, submissionID, stage, errorMsg string) error
	MarkRetrying(ctx context.Context, submissionID, stage, errorMsg string) error
	UpdateHeartbeat(ctx context.Context, submissionID string) error
}

// Worker consumes submission requests from RabbitMQ and drives them through
// the deliverable submission pipeline.
type Worker struct {
	logger            *slog.Logger
	storage           submissionStore
	rabbitClient      *rabbitmq.Client
	orchestrator      *escrow.Orchestrator
	ledger            escrow.Executor
	concurrency       int
	prefetchCount     int
	jobTimeout        time.Duration
	heartbeatInterval time.Duration
	workerID          string
	tasksChan         chan *domain.SubmissionMessage
	wg                sync.WaitGroup
	stopChan          chan struct{}
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	heartbeat := cfg.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}

	return &Worker{
		logger:            cfg.Logger,
		storage:           storage.NewStorage(cfg.DBClient.GetDB(), cfg.Logger),
		rabbitClient:      cfg.RabbitClient,
		orchestrator:      cfg.Orchestrator,
		ledger:            cfg.Ledger,
		concurrency:       cfg.Concurrency,
		prefetchCount:     cfg.PrefetchCount,
		jobTimeout:        cfg.JobTimeout,
		heartbeatInterval: heartbeat,
		workerID:          fmt.Sprintf("escrow-worker-%s", uuid.New().String()[:8]),
		tasksChan:         make(chan *domain.SubmissionMessage),
		stopChan:          make(chan struct{}),
	}
}

// Start begins consuming and processing submission requests. It blocks until
// the context is canceled or the consumer fails.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	deliveries, err := w.setupConsumer(ctx)
	if err != nil {
		return fmt.Errorf("failed to setup consumer: %w", err)
	}

	w.spawnWorkerPool(ctx)

	// Blocks until the context is canceled or the delivery channel closes.
	w.startMessageDispatcher(ctx, deliveries)

	return nil
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}

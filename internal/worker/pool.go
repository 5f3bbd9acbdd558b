package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/escrow-be/internal/escrow"
	"github.com/cuongbtq/escrow-be/internal/worker/domain"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}
}

// workerLoop is the main processing loop for each worker goroutine
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	w.logger.Info("Worker goroutine started",
		slog.String("worker_name", workerName),
	)

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Worker goroutine stopping - stopChan closed",
				slog.String("worker_name", workerName),
			)
			return

		case <-ctx.Done():
			w.logger.Info("Worker goroutine stopping - context canceled",
				slog.String("worker_name", workerName),
			)
			return

		case msg, ok := <-w.tasksChan:
			if !ok {
				w.logger.Info("Worker goroutine stopping - tasksChan closed",
					slog.String("worker_name", workerName),
				)
				return
			}

			err := w.processSubmission(ctx, msg)

			channel := w.rabbitClient.GetChannel()
			if channel == nil {
				w.logger.Error("Failed to get RabbitMQ channel for ACK/NACK",
					slog.String("worker_name", workerName),
					slog.String("submission_id", msg.SubmissionID),
				)
				continue
			}

			if err != nil {
				w.logger.Error("Submission processing failed",
					slog.String("worker_name", workerName),
					slog.String("submission_id", msg.SubmissionID),
					slog.String("error", err.Error()),
				)

				requeue := w.shouldRequeue(err)

				if nackErr := channel.Nack(msg.DeliveryTag, false, requeue); nackErr != nil {
					w.logger.Error("Failed to NACK message",
						slog.String("worker_name", workerName),
						slog.String("submission_id", msg.SubmissionID),
						slog.String("error", nackErr.Error()),
					)
				} else {
					w.logger.Info("Message NACKed",
						slog.String("worker_name", workerName),
						slog.String("submission_id", msg.SubmissionID),
						slog.Bool("requeue", requeue),
					)
				}
			} else {
				if ackErr := channel.Ack(msg.DeliveryTag, false); ackErr != nil {
					w.logger.Error("Failed to ACK message",
						slog.String("worker_name", workerName),
						slog.String("submission_id", msg.SubmissionID),
						slog.String("error", ackErr.Error()),
					)
				}
			}
		}
	}
}

// shouldRequeue determines if a submission should be requeued based on the
// error type. Ambiguous confirmation failures are requeued only after the
// processor has already re-checked ledger state (see processSubmission), so
// by the time the decision reaches here a RetryableError wrapper means the
// retry is known to be safe.
func (w *Worker) shouldRequeue(err error) bool {
	// Don't requeue if another worker already claimed the request
	if errors.Is(err, domain.ErrAlreadyClaimed) {
		return false
	}

	// Don't requeue if max retries exceeded
	if errors.Is(err, domain.ErrMaxRetriesExceeded) {
		return false
	}

	// Validation failures are terminal; correcting them requires a new
	// request from the caller
	if errors.Is(err, escrow.ErrEmptyFile) ||
		errors.Is(err, escrow.ErrInvalidPreviewRef) ||
		errors.Is(err, escrow.ErrActorNotAssigned) ||
		errors.Is(err, escrow.ErrJobNotSubmittable) ||
		errors.Is(err, escrow.ErrMilestoneNotPending) {
		return false
	}

	var retryableErr *domain.RetryableError
	if errors.As(err, &retryableErr) {
		return true
	}

	// Default: don't requeue for unknown errors
	return false
}

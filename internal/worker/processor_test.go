package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/escrow-be/internal/escrow"
	"github.com/cuongbtq/escrow-be/internal/worker/domain"
)

type fakeStore struct {
	mu sync.Mutex

	claimTask *domain.SubmissionTask
	claimErr  error

	completed []struct{ submissionID, contentID string }
	failed    []struct{ submissionID, stage, errMsg string }
	retrying  []struct{ submissionID, stage, errMsg string }
	progress  []struct {
		submissionID, stage string
		percent             int
	}
	digests    []string
	heartbeats int
}

func (f *fakeStore) ClaimSubmission(ctx context.Context, submissionID, workerID string) (*domain.SubmissionTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	return f.claimTask, nil
}

func (f *fakeStore) UpdateProgress(ctx context.Context, submissionID, stage string, percent int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress = append(f.progress, struct {
		submissionID, stage string
		percent             int
	}{submissionID, stage, percent})
	return nil
}

func (f *fakeStore) RecordDigest(ctx context.Context, submissionID, digest string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.digests = append(f.digests, digest)
	return nil
}

func (f *fakeStore) MarkCompleted(ctx context.Context, submissionID, contentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, struct{ submissionID, contentID string }{submissionID, contentID})
	return nil
}

func (f *fakeStore) MarkFailed(ctx context.Context, submissionID, stage, errorMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, struct{ submissionID, stage, errMsg string }{submissionID, stage, errorMsg})
	return nil
}

func (f *fakeStore) MarkRetrying(ctx context.Context, submissionID, stage, errorMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retrying = append(f.retrying, struct{ submissionID, stage, errMsg string }{submissionID, stage, errorMsg})
	return nil
}

func (f *fakeStore) UpdateHeartbeat(ctx context.Context, submissionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeats++
	return nil
}

type fakeLedger struct {
	mu         sync.Mutex
	job        *escrow.Job
	fetchErr   error
	fetchCalls int
	execCalls  int
}

func (f *fakeLedger) Execute(ctx context.Context, payload escrow.TransactionPayload) (*escrow.TransactionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execCalls++
	return &escrow.TransactionResult{
		Digest:    fmt.Sprintf("digest-%d", f.execCalls),
		Confirmed: true,
		Status:    "confirmed",
	}, nil
}

func (f *fakeLedger) FetchJob(ctx context.Context, jobID string) (*escrow.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.job, nil
}

func (f *fakeLedger) FetchProfile(ctx context.Context, identity escrow.Identity) (*escrow.Profile, error) {
	return nil, errors.New("not implemented")
}

type fakeSealer struct{}

func (fakeSealer) CreateAccessList(ctx context.Context, audience []escrow.Identity) (escrow.AccessGrant, error) {
	return escrow.AccessGrant{ListID: "al-1", CapabilityID: "cap-1"}, nil
}

func (fakeSealer) Encrypt(ctx context.Context, data []byte, listID string) (escrow.Sealed, error) {
	return escrow.Sealed{Ciphertext: append([]byte("sealed:"), data...), Nonce: "nonce-1"}, nil
}

type fakeBlobs struct{}

func (fakeBlobs) Upload(ctx context.Context, data []byte) (string, error) {
	return "cid-1", nil
}

func testTask() *domain.SubmissionTask {
	return &domain.SubmissionTask{
		SubmissionID: "sub-1",
		JobID:        "job-1",
		Milestone:    1,
		Actor:        "0xworker",
		PreviewRef:   "https://preview.test/app",
		Filename:     "deliverable.zip",
		FileBytes:    []byte("deliverable"),
		Status:       "RUNNING",
		RetryCount:   0,
		MaxRetries:   3,
	}
}

func newTestWorker(store *fakeStore, ledger *fakeLedger) *Worker {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &Worker{
		logger:  logger,
		storage: store,
		orchestrator: escrow.NewOrchestrator(&escrow.OrchestratorConfig{
			Logger: logger,
			Sealer: fakeSealer{},
			Blobs:  fakeBlobs{},
			Ledger: ledger,
		}),
		ledger:            ledger,
		jobTimeout:        time.Minute,
		heartbeatInterval: time.Minute,
		workerID:          "escrow-worker-test",
	}
}

func ambiguousStageErr(digest string) error {
	return &escrow.StageError{
		Stage: escrow.StageUploading,
		Err: fmt.Errorf("register storage: %w", &escrow.AmbiguousError{
			Digest: digest,
			Err:    errors.New("confirmation deadline exceeded"),
		}),
	}
}

func TestHandleFailure_AmbiguousConfirmation(t *testing.T) {
	t.Run("milestone landed completes from ledger state", func(t *testing.T) {
		store := &fakeStore{}
		ledger := &fakeLedger{job: &escrow.Job{
			ID:     "job-1",
			State:  escrow.JobStateInProgress,
			Client: "0xclient",
			Worker: "0xworker",
			Milestones: []escrow.Milestone{
				{
					Ordinal:    1,
					Status:     escrow.MilestoneSubmitted,
					Submission: &escrow.DeliverableSubmission{ContentID: "cid-ledger"},
				},
			},
		}}
		w := newTestWorker(store, ledger)

		err := w.handleFailure(context.Background(), testTask(), ambiguousStageErr("digest-reg"))

		// nil return means the message is ACKed, never redelivered
		require.NoError(t, err)
		assert.Equal(t, 1, ledger.fetchCalls)
		require.Len(t, store.completed, 1)
		assert.Equal(t, "sub-1", store.completed[0].submissionID)
		assert.Equal(t, "cid-ledger", store.completed[0].contentID)
		assert.Empty(t, store.retrying)
		assert.Empty(t, store.failed)
	})

	t.Run("milestone still pending marks retrying and requeues", func(t *testing.T) {
		store := &fakeStore{}
		ledger := &fakeLedger{job: &escrow.Job{
			ID:     "job-1",
			State:  escrow.JobStateInProgress,
			Client: "0xclient",
			Worker: "0xworker",
			Milestones: []escrow.Milestone{
				{Ordinal: 1, Status: escrow.MilestonePending},
			},
		}}
		w := newTestWorker(store, ledger)

		err := w.handleFailure(context.Background(), testTask(), ambiguousStageErr("digest-reg"))

		require.Error(t, err)
		var retryable *domain.RetryableError
		assert.ErrorAs(t, err, &retryable)
		assert.True(t, w.shouldRequeue(err))
		assert.Equal(t, 1, ledger.fetchCalls)
		require.Len(t, store.retrying, 1)
		assert.Equal(t, "sub-1", store.retrying[0].submissionID)
		assert.Equal(t, string(escrow.StageUploading), store.retrying[0].stage)
		assert.Empty(t, store.completed)
		assert.Empty(t, store.failed)
	})

	t.Run("ledger re-check failure never completes blindly", func(t *testing.T) {
		store := &fakeStore{}
		ledger := &fakeLedger{fetchErr: errors.New("gateway unavailable")}
		w := newTestWorker(store, ledger)

		err := w.handleFailure(context.Background(), testTask(), ambiguousStageErr("digest-reg"))

		require.Error(t, err)
		var retryable *domain.RetryableError
		assert.ErrorAs(t, err, &retryable)
		assert.Equal(t, 1, ledger.fetchCalls)
		assert.Empty(t, store.completed)
		require.Len(t, store.retrying, 1)
	})

	t.Run("still pending with retries exhausted marks failed", func(t *testing.T) {
		store := &fakeStore{}
		ledger := &fakeLedger{job: &escrow.Job{
			ID:     "job-1",
			State:  escrow.JobStateInProgress,
			Client: "0xclient",
			Worker: "0xworker",
			Milestones: []escrow.Milestone{
				{Ordinal: 1, Status: escrow.MilestonePending},
			},
		}}
		w := newTestWorker(store, ledger)

		task := testTask()
		task.RetryCount = task.MaxRetries

		err := w.handleFailure(context.Background(), task, ambiguousStageErr("digest-reg"))

		require.ErrorIs(t, err, domain.ErrMaxRetriesExceeded)
		assert.False(t, w.shouldRequeue(err))
		assert.Empty(t, store.completed)
		assert.Empty(t, store.retrying)
		require.Len(t, store.failed, 1)
	})
}

func TestHandleFailure_ValidationSentinel(t *testing.T) {
	store := &fakeStore{}
	ledger := &fakeLedger{}
	w := newTestWorker(store, ledger)

	err := w.handleFailure(context.Background(), testTask(), escrow.ErrMilestoneNotPending)

	require.ErrorIs(t, err, escrow.ErrMilestoneNotPending)
	assert.False(t, w.shouldRequeue(err))
	require.Len(t, store.failed, 1)
	assert.Equal(t, "sub-1", store.failed[0].submissionID)
	// Validation failures never touch the ledger
	assert.Zero(t, ledger.fetchCalls)
	assert.Empty(t, store.retrying)
	assert.Empty(t, store.completed)
}

func TestProcessSubmission(t *testing.T) {
	t.Run("successful pipeline marks completed with blob content id", func(t *testing.T) {
		store := &fakeStore{claimTask: testTask()}
		ledger := &fakeLedger{job: &escrow.Job{
			ID:     "job-1",
			State:  escrow.JobStateInProgress,
			Client: "0xclient",
			Worker: "0xworker",
			Milestones: []escrow.Milestone{
				{Ordinal: 1, Status: escrow.MilestonePending},
			},
		}}
		w := newTestWorker(store, ledger)

		err := w.processSubmission(context.Background(), &domain.SubmissionMessage{SubmissionID: "sub-1"})

		require.NoError(t, err)
		require.Len(t, store.completed, 1)
		assert.Equal(t, "cid-1", store.completed[0].contentID)
		// Registration and milestone digests were persisted as they confirmed
		assert.Equal(t, []string{"digest-1", "digest-2"}, store.digests)
		require.NotEmpty(t, store.progress)
		last := store.progress[len(store.progress)-1]
		assert.Equal(t, 100, last.percent)
		assert.Empty(t, store.failed)
		assert.Empty(t, store.retrying)
	})

	t.Run("already claimed skips without status writes", func(t *testing.T) {
		store := &fakeStore{claimErr: domain.ErrAlreadyClaimed}
		ledger := &fakeLedger{}
		w := newTestWorker(store, ledger)

		err := w.processSubmission(context.Background(), &domain.SubmissionMessage{SubmissionID: "sub-1"})

		require.ErrorIs(t, err, domain.ErrAlreadyClaimed)
		assert.False(t, w.shouldRequeue(err))
		assert.Empty(t, store.completed)
		assert.Empty(t, store.failed)
		assert.Empty(t, store.retrying)
	})
}

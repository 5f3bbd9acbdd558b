package escrow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
)

// OrchestratorConfig holds orchestrator dependencies.
type OrchestratorConfig struct {
	Logger *slog.Logger
	Sealer Sealer
	Blobs  BlobStore
	Ledger Executor
}

// Orchestrator sequences the deliverable submission pipeline: encryption,
// upload, storage registration on the ledger, then milestone submission. The
// ledger is never told about a deliverable that is not actually stored and
// access-controlled, which is why the storage-registration transaction must
// be confirmed before the milestone transaction is even constructed.
//
// At most one submission per job/milestone is processed at a time;
// submissions for different milestones are independent.
type Orchestrator struct {
	logger *slog.Logger
	sealer Sealer
	blobs  BlobStore
	ledger Executor

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewOrchestrator creates an orchestrator instance.
func NewOrchestrator(cfg *OrchestratorConfig) *Orchestrator {
	return &Orchestrator{
		logger:   cfg.Logger,
		sealer:   cfg.Sealer,
		blobs:    cfg.Blobs,
		ledger:   cfg.Ledger,
		inFlight: make(map[string]struct{}),
	}
}

// SubmitRequest carries one deliverable submission.
type SubmitRequest struct {
	JobID      string
	Milestone  int
	File       []byte
	PreviewRef string
	Actor      Identity
	Filename   string

	// OnAttempt, when set, observes every transaction attempt of this call
	// after its outcome is known. Request-scoped observability only.
	OnAttempt func(TransactionAttempt)
}

// SubmitDeliverable runs the full pipeline and returns the submission record
// only after the milestone transaction has confirmed. On failure the returned
// error is either a validation sentinel (no side effects occurred) or a
// *StageError naming the stage that failed; no partial record is ever
// returned and no step rolls back a prior step's effects.
func (o *Orchestrator) SubmitDeliverable(ctx context.Context, req *SubmitRequest, onProgress ProgressFunc) (*DeliverableSubmission, error) {
	// Validation happens before any external call.
	if len(req.File) == 0 {
		return nil, ErrEmptyFile
	}
	if err := validatePreviewRef(req.PreviewRef); err != nil {
		return nil, err
	}
	if req.Actor == "" {
		return nil, ErrActorNotAssigned
	}

	key := fmt.Sprintf("%s/%d", req.JobID, req.Milestone)
	if !o.acquire(key) {
		return nil, ErrSubmissionInFlight
	}
	defer o.release(key)

	progress := newProgressTracker(onProgress)
	attempts := &attemptLog{}

	// Stage 1: derive the decryption audience from the job's client.
	progress.report(StagePreparing, 0)

	job, err := o.ledger.FetchJob(ctx, req.JobID)
	if err != nil {
		return nil, stageErr(StagePreparing, fmt.Errorf("fetch job: %w", err))
	}
	if job.Worker != req.Actor {
		return nil, ErrActorNotAssigned
	}
	if !CanSubmit(job, req.Actor) {
		return nil, ErrJobNotSubmittable
	}
	if m := job.MilestoneAt(req.Milestone); m == nil || m.Status != MilestonePending {
		return nil, ErrMilestoneNotPending
	}

	audience := []Identity{job.Client}
	progress.report(StagePreparing, 10)

	// Stage 2: fresh access list + encryption. Failure here is terminal for
	// the attempt but touches no ledger or storage state.
	progress.report(StageEncrypting, 15)

	grant, err := o.sealer.CreateAccessList(ctx, audience)
	if err != nil {
		return nil, stageErr(StageEncrypting, fmt.Errorf("create access list: %w", err))
	}
	sealed, err := o.sealer.Encrypt(ctx, req.File, grant.ListID)
	if err != nil {
		return nil, stageErr(StageEncrypting, fmt.Errorf("encrypt: %w", err))
	}

	o.logger.Debug("Deliverable encrypted",
		slog.String("job_id", req.JobID),
		slog.Int("milestone", req.Milestone),
		slog.String("access_list_id", grant.ListID),
		slog.Int("ciphertext_bytes", len(sealed.Ciphertext)),
	)
	progress.report(StageEncrypting, 40)

	// Stage 3: upload, then register storage on the ledger. The registration
	// must reach durable inclusion before stage 4: a merely broadcast
	// registration can cause validators to reject the dependent milestone
	// transaction.
	progress.report(StageUploading, 45)

	contentID, err := o.blobs.Upload(ctx, sealed.Ciphertext)
	if err != nil {
		return nil, stageErr(StageUploading, fmt.Errorf("upload: %w", err))
	}
	progress.report(StageUploading, 60)

	registration := TransactionPayload{
		Kind:      TxRegisterStorage,
		Sender:    req.Actor,
		JobID:     req.JobID,
		Milestone: req.Milestone,
		Fields: map[string]string{
			"content_id":     contentID,
			"access_list_id": grant.ListID,
		},
	}
	if _, err := o.execute(ctx, req, attempts, registration); err != nil {
		return nil, stageErr(StageUploading, fmt.Errorf("register storage: %w", err))
	}
	progress.report(StageUploading, 75)

	// Stage 4: the milestone-submission transaction, the single ledger-visible
	// commit point of the whole pipeline.
	progress.report(StageSubmitting, 80)

	submission := &DeliverableSubmission{
		ContentID:    contentID,
		PreviewRef:   req.PreviewRef,
		AccessListID: grant.ListID,
		CapabilityID: grant.CapabilityID,
		Nonce:        sealed.Nonce,
		Filename:     req.Filename,
	}
	payload := TransactionPayload{
		Kind:      TxSubmitMilestone,
		Sender:    req.Actor,
		JobID:     req.JobID,
		Milestone: req.Milestone,
		Fields: map[string]string{
			"content_id":     submission.ContentID,
			"preview_ref":    submission.PreviewRef,
			"access_list_id": submission.AccessListID,
			"capability_id":  submission.CapabilityID,
			"nonce":          submission.Nonce,
			"filename":       submission.Filename,
		},
	}
	result, err := o.execute(ctx, req, attempts, payload)
	if err != nil {
		return nil, stageErr(StageSubmitting, fmt.Errorf("submit milestone: %w", err))
	}
	progress.report(StageSubmitting, 100)

	o.logger.Info("Deliverable submitted",
		slog.String("job_id", req.JobID),
		slog.Int("milestone", req.Milestone),
		slog.String("content_id", contentID),
		slog.String("digest", result.Digest),
		slog.Int("transactions", len(attempts.attempts)),
	)

	return submission, nil
}

// execute runs one ledger transaction through the executor, records the
// attempt in the request-scoped log, and notifies the request's observer.
func (o *Orchestrator) execute(ctx context.Context, req *SubmitRequest, attempts *attemptLog, payload TransactionPayload) (*TransactionResult, error) {
	attempt := attempts.begin(payload.Kind)

	result, err := o.ledger.Execute(ctx, payload)
	if err != nil {
		attempt.Outcome = AttemptFailed
		var ambiguous *AmbiguousError
		if errors.As(err, &ambiguous) {
			attempt.Outcome = AttemptTimedOut
			attempt.Digest = ambiguous.Digest
		}
		o.logger.Error("Transaction attempt failed",
			slog.String("kind", string(payload.Kind)),
			slog.String("job_id", payload.JobID),
			slog.Int("seq", attempt.Seq),
			slog.String("outcome", string(attempt.Outcome)),
			slog.String("error", err.Error()),
		)
		if req.OnAttempt != nil {
			req.OnAttempt(*attempt)
		}
		return nil, err
	}

	attempt.Digest = result.Digest
	attempt.Outcome = AttemptConfirmed
	if req.OnAttempt != nil {
		req.OnAttempt(*attempt)
	}

	o.logger.Debug("Transaction confirmed",
		slog.String("kind", string(payload.Kind)),
		slog.String("job_id", payload.JobID),
		slog.Int("seq", attempt.Seq),
		slog.String("digest", result.Digest),
	)

	return result, nil
}

func (o *Orchestrator) acquire(key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, taken := o.inFlight[key]; taken {
		return false
	}
	o.inFlight[key] = struct{}{}
	return true
}

func (o *Orchestrator) release(key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inFlight, key)
}

// validatePreviewRef checks the preview reference for well-formedness only;
// reachability is never probed.
func validatePreviewRef(ref string) error {
	u, err := url.Parse(ref)
	if err != nil {
		return ErrInvalidPreviewRef
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidPreviewRef
	}
	return nil
}

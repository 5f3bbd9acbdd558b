package escrow

import "time"

// TransactionKind discriminates the ledger transactions this core issues.
type TransactionKind string

const (
	// TxRegisterStorage registers an uploaded blob on the ledger and binds it
	// to the access list that guards it.
	TxRegisterStorage TransactionKind = "register_storage"
	// TxSubmitMilestone records a milestone deliverable on the job object.
	TxSubmitMilestone TransactionKind = "submit_milestone"
)

// TransactionPayload describes one ledger transaction to sign and submit.
// Fields carries the kind-specific arguments; the executor adapter owns the
// wire encoding.
type TransactionPayload struct {
	Kind      TransactionKind
	Sender    Identity
	JobID     string
	Milestone int
	Fields    map[string]string
}

// TransactionResult is the structured outcome of a confirmed transaction.
// Confirmed means durable inclusion reported by the ledger, not broadcast
// acknowledgment.
type TransactionResult struct {
	Digest    string
	Confirmed bool
	Status    string
	Events    []TransactionEvent
}

// TransactionEvent is an event emitted by a confirmed transaction.
type TransactionEvent struct {
	Type string
	Data map[string]string
}

// TransactionAttempt is a process-local record of one submit attempt, kept
// for observability and retry bookkeeping only. It is never ledger state.
type TransactionAttempt struct {
	Seq       int
	Kind      TransactionKind
	StartedAt time.Time
	Digest    string
	Outcome   AttemptOutcome
}

// AttemptOutcome classifies how a transaction attempt ended.
type AttemptOutcome string

const (
	AttemptConfirmed AttemptOutcome = "CONFIRMED"
	AttemptFailed    AttemptOutcome = "FAILED"
	AttemptTimedOut  AttemptOutcome = "TIMED_OUT"
)

// attemptLog is a request-scoped attempt counter. It lives for one
// SubmitDeliverable call so the orchestrator stays free of process-wide
// mutable state.
type attemptLog struct {
	attempts []TransactionAttempt
}

func (l *attemptLog) begin(kind TransactionKind) *TransactionAttempt {
	l.attempts = append(l.attempts, TransactionAttempt{
		Seq:       len(l.attempts) + 1,
		Kind:      kind,
		StartedAt: time.Now(),
	})
	return &l.attempts[len(l.attempts)-1]
}

package escrow

import "time"

// Identity is a ledger-recognized principal identifier (wallet address).
type Identity string

// JobState is the ledger-authoritative lifecycle state of a job.
// Only a confirmed ledger transaction may advance it; any state held
// locally is an advisory snapshot.
type JobState string

const (
	JobStateOpen           JobState = "OPEN"
	JobStateAssigned       JobState = "ASSIGNED"
	JobStateInProgress     JobState = "IN_PROGRESS"
	JobStateSubmitted      JobState = "SUBMITTED"
	JobStateAwaitingReview JobState = "AWAITING_REVIEW"
	JobStateCompleted      JobState = "COMPLETED"
	JobStateCancelled      JobState = "CANCELLED"
	JobStateDisputed       JobState = "DISPUTED"
)

// AllJobStates lists every JobState, for exhaustive table checks.
var AllJobStates = []JobState{
	JobStateOpen,
	JobStateAssigned,
	JobStateInProgress,
	JobStateSubmitted,
	JobStateAwaitingReview,
	JobStateCompleted,
	JobStateCancelled,
	JobStateDisputed,
}

// Terminal reports whether no further worker action can advance the job.
func (s JobState) Terminal() bool {
	return s == JobStateCompleted || s == JobStateCancelled || s == JobStateDisputed
}

// MilestoneStatus tracks a milestone within a job. It regresses only via an
// explicit rejection transaction on the ledger, never locally.
type MilestoneStatus string

const (
	MilestonePending   MilestoneStatus = "PENDING"
	MilestoneSubmitted MilestoneStatus = "SUBMITTED"
	MilestoneApproved  MilestoneStatus = "APPROVED"
	MilestoneRejected  MilestoneStatus = "REJECTED"
)

// Milestone is a discrete, separately payable unit of work within a job.
type Milestone struct {
	Ordinal    int
	Status     MilestoneStatus
	Submission *DeliverableSubmission
}

// Job is a read-only snapshot of a ledger-owned job object. The core never
// mutates a snapshot; after every confirmed transaction the caller re-fetches.
type Job struct {
	ID                string
	Title             string
	Budget            int64 // base currency units
	Deadline          time.Time
	Client            Identity
	Worker            Identity // zero until assigned
	State             JobState
	PendingCompletion bool
	Milestones        []Milestone
	DescriptionRef    string
}

// Assigned reports whether the job has an assigned worker.
func (j *Job) Assigned() bool {
	return j.Worker != ""
}

// MilestoneAt returns the milestone with the given ordinal, or nil.
func (j *Job) MilestoneAt(ordinal int) *Milestone {
	for i := range j.Milestones {
		if j.Milestones[i].Ordinal == ordinal {
			return &j.Milestones[i]
		}
	}
	return nil
}

// Profile is a snapshot of a worker's registered on-ledger profile handle.
type Profile struct {
	Owner  Identity
	Handle string
}

package escrow

// Lifecycle predicates classify a fetched Job snapshot and gate whether the
// orchestrator may attempt an action. They are pure: no stored state, no
// optimistic mutation. Ledger confirmation is the only thing that advances a
// job, so callers must re-fetch the snapshot after every confirmed
// transaction and re-classify.
//
// The "registered profile handle" precondition for starting work is checked
// by the caller against the ledger's profile registry; it is deliberately not
// folded into CanStart so the predicates stay functions of
// (state, assigned worker, actor) only.

// CanStart reports whether actor may move the job from ASSIGNED to
// IN_PROGRESS.
func CanStart(job *Job, actor Identity) bool {
	if job == nil || actor == "" {
		return false
	}
	return job.State == JobStateAssigned && job.Worker == actor
}

// CanSubmit reports whether actor may submit a milestone deliverable for the
// job.
func CanSubmit(job *Job, actor Identity) bool {
	if job == nil || actor == "" {
		return false
	}
	return job.State == JobStateInProgress && job.Worker == actor
}

// CanClaimCompletion reports whether actor may clear the pending-completion
// flag on a completed job.
func CanClaimCompletion(job *Job, actor Identity) bool {
	if job == nil || actor == "" {
		return false
	}
	return job.State == JobStateCompleted && job.PendingCompletion && job.Worker == actor
}

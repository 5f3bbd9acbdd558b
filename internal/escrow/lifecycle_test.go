package escrow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	testWorker Identity = "0xworker"
	testClient Identity = "0xclient"
	testOther  Identity = "0xsomeoneelse"
)

func TestCanStart(t *testing.T) {
	tests := []struct {
		name  string
		state JobState
		want  bool
	}{
		{"open", JobStateOpen, false},
		{"assigned", JobStateAssigned, true},
		{"in progress", JobStateInProgress, false},
		{"submitted", JobStateSubmitted, false},
		{"awaiting review", JobStateAwaitingReview, false},
		{"completed", JobStateCompleted, false},
		{"cancelled", JobStateCancelled, false},
		{"disputed", JobStateDisputed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &Job{State: tt.state, Worker: testWorker}
			assert.Equal(t, tt.want, CanStart(job, testWorker))
		})
	}

	t.Run("actor is not the assigned worker", func(t *testing.T) {
		job := &Job{State: JobStateAssigned, Worker: testWorker}
		assert.False(t, CanStart(job, testOther))
	})

	t.Run("nil job", func(t *testing.T) {
		assert.False(t, CanStart(nil, testWorker))
	})

	t.Run("empty actor", func(t *testing.T) {
		job := &Job{State: JobStateAssigned, Worker: testWorker}
		assert.False(t, CanStart(job, ""))
	})

	t.Run("unassigned job with empty actor", func(t *testing.T) {
		// Both sides empty must not coincide into a grant
		job := &Job{State: JobStateAssigned}
		assert.False(t, CanStart(job, ""))
	})
}

func TestCanSubmit(t *testing.T) {
	tests := []struct {
		name  string
		state JobState
		want  bool
	}{
		{"open", JobStateOpen, false},
		{"assigned", JobStateAssigned, false},
		{"in progress", JobStateInProgress, true},
		{"submitted", JobStateSubmitted, false},
		{"awaiting review", JobStateAwaitingReview, false},
		{"completed", JobStateCompleted, false},
		{"cancelled", JobStateCancelled, false},
		{"disputed", JobStateDisputed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &Job{State: tt.state, Worker: testWorker}
			assert.Equal(t, tt.want, CanSubmit(job, testWorker))
		})
	}

	t.Run("actor is not the assigned worker", func(t *testing.T) {
		job := &Job{State: JobStateInProgress, Worker: testWorker}
		assert.False(t, CanSubmit(job, testOther))
	})

	t.Run("nil job", func(t *testing.T) {
		assert.False(t, CanSubmit(nil, testWorker))
	})

	t.Run("empty actor", func(t *testing.T) {
		job := &Job{State: JobStateInProgress, Worker: testWorker}
		assert.False(t, CanSubmit(job, ""))
	})
}

func TestCanClaimCompletion(t *testing.T) {
	t.Run("pending completion flag gates the claim", func(t *testing.T) {
		for _, state := range AllJobStates {
			withFlag := &Job{State: state, Worker: testWorker, PendingCompletion: true}
			withoutFlag := &Job{State: state, Worker: testWorker, PendingCompletion: false}

			wantWithFlag := state == JobStateCompleted
			assert.Equal(t, wantWithFlag, CanClaimCompletion(withFlag, testWorker), "state %s with flag", state)
			assert.False(t, CanClaimCompletion(withoutFlag, testWorker), "state %s without flag", state)
		}
	})

	t.Run("actor is not the assigned worker", func(t *testing.T) {
		job := &Job{State: JobStateCompleted, Worker: testWorker, PendingCompletion: true}
		assert.False(t, CanClaimCompletion(job, testOther))
	})

	t.Run("nil job", func(t *testing.T) {
		assert.False(t, CanClaimCompletion(nil, testWorker))
	})

	t.Run("empty actor", func(t *testing.T) {
		job := &Job{State: JobStateCompleted, Worker: testWorker, PendingCompletion: true}
		assert.False(t, CanClaimCompletion(job, ""))
	})
}

func TestJobStateTerminal(t *testing.T) {
	tests := []struct {
		state JobState
		want  bool
	}{
		{JobStateOpen, false},
		{JobStateAssigned, false},
		{JobStateInProgress, false},
		{JobStateSubmitted, false},
		{JobStateAwaitingReview, false},
		{JobStateCompleted, true},
		{JobStateCancelled, true},
		{JobStateDisputed, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.Terminal())
		})
	}
}

func TestJobMilestoneAt(t *testing.T) {
	job := &Job{
		Milestones: []Milestone{
			{Ordinal: 1, Status: MilestoneApproved},
			{Ordinal: 2, Status: MilestonePending},
		},
	}

	t.Run("existing ordinal", func(t *testing.T) {
		m := job.MilestoneAt(2)
		assert.NotNil(t, m)
		assert.Equal(t, MilestonePending, m.Status)
	})

	t.Run("unknown ordinal", func(t *testing.T) {
		assert.Nil(t, job.MilestoneAt(7))
	})
}

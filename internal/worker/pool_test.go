package worker

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cuongbtq/escrow-be/internal/escrow"
	"github.com/cuongbtq/escrow-be/internal/worker/domain"
)

func TestShouldRequeue(t *testing.T) {
	w := &Worker{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "already claimed by another worker",
			err:  fmt.Errorf("claim: %w", domain.ErrAlreadyClaimed),
			want: false,
		},
		{
			name: "max retries exceeded",
			err:  fmt.Errorf("%w: upload failed", domain.ErrMaxRetriesExceeded),
			want: false,
		},
		{
			name: "empty file",
			err:  escrow.ErrEmptyFile,
			want: false,
		},
		{
			name: "invalid preview ref",
			err:  escrow.ErrInvalidPreviewRef,
			want: false,
		},
		{
			name: "actor not assigned",
			err:  escrow.ErrActorNotAssigned,
			want: false,
		},
		{
			name: "job not submittable",
			err:  escrow.ErrJobNotSubmittable,
			want: false,
		},
		{
			name: "milestone not pending",
			err:  escrow.ErrMilestoneNotPending,
			want: false,
		},
		{
			name: "retryable transient failure",
			err:  domain.NewRetryableError(errors.New("blobstore unreachable")),
			want: true,
		},
		{
			name: "retryable failure wrapped further",
			err:  fmt.Errorf("process: %w", domain.NewRetryableError(errors.New("gateway timeout"))),
			want: true,
		},
		{
			name: "unknown error defaults to drop",
			err:  errors.New("something unexpected"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.shouldRequeue(tt.err))
		})
	}
}

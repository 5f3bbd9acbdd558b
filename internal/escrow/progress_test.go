package escrow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker(t *testing.T) {
	t.Run("clamps out-of-range percentages", func(t *testing.T) {
		var got []int
		tracker := newProgressTracker(func(p Progress) {
			got = append(got, p.Percent)
		})

		tracker.report(StagePreparing, -5)
		tracker.report(StageSubmitting, 150)

		assert.Equal(t, []int{0, 100}, got)
	})

	t.Run("never decreases", func(t *testing.T) {
		var got []int
		tracker := newProgressTracker(func(p Progress) {
			got = append(got, p.Percent)
		})

		tracker.report(StagePreparing, 10)
		tracker.report(StageEncrypting, 40)
		tracker.report(StageUploading, 30)
		tracker.report(StageUploading, 75)

		assert.Equal(t, []int{10, 40, 40, 75}, got)
	})

	t.Run("carries the reported stage", func(t *testing.T) {
		var got []Stage
		tracker := newProgressTracker(func(p Progress) {
			got = append(got, p.Stage)
		})

		tracker.report(StagePreparing, 0)
		tracker.report(StageEncrypting, 15)

		assert.Equal(t, []Stage{StagePreparing, StageEncrypting}, got)
	})

	t.Run("nil callback is ignored", func(t *testing.T) {
		tracker := newProgressTracker(nil)

		assert.NotPanics(t, func() {
			tracker.report(StagePreparing, 10)
			tracker.report(StageSubmitting, 100)
		})
	})
}

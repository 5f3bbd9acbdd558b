package escrow

// Stage identifies which step of the submission pipeline is executing.
type Stage string

const (
	StagePreparing  Stage = "PREPARING"
	StageEncrypting Stage = "ENCRYPTING"
	StageUploading  Stage = "UPLOADING"
	StageSubmitting Stage = "SUBMITTING"
)

// Progress is a point-in-time report of pipeline progress. Percent is always
// within [0,100] and never decreases across reports for a single call.
type Progress struct {
	Stage   Stage
	Percent int
}

// ProgressFunc receives progress reports. Implementations must not block;
// the orchestrator calls it inline between pipeline steps.
type ProgressFunc func(Progress)

// progressTracker clamps and orders progress reports so consumers always see
// a non-decreasing percentage in [0,100], even if stages complete instantly.
type progressTracker struct {
	fn   ProgressFunc
	last int
}

func newProgressTracker(fn ProgressFunc) *progressTracker {
	return &progressTracker{fn: fn}
}

func (t *progressTracker) report(stage Stage, percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	if percent < t.last {
		percent = t.last
	}
	t.last = percent
	if t.fn != nil {
		t.fn(Progress{Stage: stage, Percent: percent})
	}
}

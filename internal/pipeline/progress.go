package pipeline

import (
	"context"
	"sync"

	"github.com/jonathan/report-renderer/internal/observability"
	"github.com/jonathan/report-renderer/internal/types"
)

// progressTracker writes Processing milestones for one job and never writes a
// value below the highest already written, so retries keep progress monotonic.
type progressTracker struct {
	jobs       JobStore
	jobID      string
	logger     *observability.Logger
	onProgress ProgressCallback

	mu        sync.Mutex
	highWater int
	attempt   int
}

func newProgressTracker(jobs JobStore, jobID string, start int, logger *observability.Logger, onProgress ProgressCallback) *progressTracker {
	return &progressTracker{jobs: jobs, jobID: jobID, highWater: start, logger: logger, onProgress: onProgress}
}

func (t *progressTracker) setAttempt(attempt int) {
	t.mu.Lock()
	t.attempt = attempt
	t.mu.Unlock()
}

// report records a Processing milestone. Write failures are logged and swallowed.
func (t *progressTracker) report(ctx context.Context, step Step) {
	progress := MilestoneProgress[step]

	t.mu.Lock()
	if progress <= t.highWater {
		t.mu.Unlock()
		return
	}
	t.highWater = progress
	attempt := t.attempt
	t.mu.Unlock()

	if err := t.jobs.UpdateJob(ctx, t.jobID, types.ProcessingUpdate(progress)); err != nil {
		t.logger.Warn("failed to record progress", "step", step, "progress", progress, "error", err)
	}
	t.emit(step, progress, attempt)
}

// complete notes that the terminal Download write already set progress to 100.
func (t *progressTracker) complete() {
	t.mu.Lock()
	t.highWater = MilestoneProgress[StepComplete]
	attempt := t.attempt
	t.mu.Unlock()
	t.emit(StepComplete, MilestoneProgress[StepComplete], attempt)
}

func (t *progressTracker) emit(step Step, progress, attempt int) {
	if t.onProgress != nil {
		t.onProgress(ProgressEvent{JobID: t.jobID, Step: step, Progress: progress, Attempt: attempt})
	}
}

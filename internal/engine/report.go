package engine

import (
	"time"

	"github.com/tracewright/tracewright/internal/step"
)

// Report is the read-only aggregate summary of a finished session. It is
// computed once at FinishSession time and holds no reference back to the
// session's live state.
type Report struct {
	// TestID identifies the test the session instrumented.
	TestID string `json:"test_id"`
	// Passed is the caller-supplied overall verdict.
	Passed bool `json:"passed"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	// TotalDurationMs spans session start to finish. It is at least the
	// sum of the individual step durations (inter-step overhead counts).
	TotalDurationMs int64 `json:"total_duration_ms"`

	TotalSteps     int `json:"total_steps"`
	SucceededSteps int `json:"succeeded_steps"`
	FailedSteps    int `json:"failed_steps"`

	// TracePath is the session trace archive, empty when tracing was
	// disabled or its capture failed.
	TracePath string `json:"trace_path,omitempty"`
	// ManifestPath is the artifact manifest, empty when capture was
	// disabled or the manifest write failed.
	ManifestPath string `json:"manifest_path,omitempty"`

	// Steps are the recorded step summaries in sequence order.
	Steps []step.Step `json:"steps"`
}

// buildReport projects a finished session into its Report. Caller holds
// the session lock.
func buildReport(sess *session, passed bool, tracePath, manifestPath string) Report {
	finished := time.Now()
	steps := sess.recorder.Steps()

	succeeded := 0
	failed := 0
	for _, s := range steps {
		if s.Outcome == step.OutcomeSuccess {
			succeeded++
		} else {
			failed++
		}
	}

	total := finished.Sub(sess.startedAt).Milliseconds()
	if total < 0 {
		total = 0
	}

	return Report{
		TestID:          sess.testID,
		Passed:          passed,
		StartedAt:       sess.startedAt,
		FinishedAt:      finished,
		TotalDurationMs: total,
		TotalSteps:      len(steps),
		SucceededSteps:  succeeded,
		FailedSteps:     failed,
		TracePath:       tracePath,
		ManifestPath:    manifestPath,
		Steps:           steps,
	}
}

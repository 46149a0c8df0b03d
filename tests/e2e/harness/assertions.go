package harness

import (
	"os"
	"path/filepath"

	"github.com/tracewright/tracewright/internal/flow"
)

// AssertFlowPassed verifies the run passed.
func (env *E2EEnvironment) AssertFlowPassed(res *flow.Result) {
	env.T.Helper()

	env.Logger.Expected("passed", true, res.Passed, res.Passed)
	if !res.Passed {
		env.T.Errorf("flow %s failed: %v", res.Flow, res.Err)
	}
}

// AssertFlowFailed verifies the run failed at the named step.
func (env *E2EEnvironment) AssertFlowFailed(res *flow.Result, atStep string) {
	env.T.Helper()

	env.Logger.Expected("passed", false, res.Passed, !res.Passed)
	if res.Passed {
		env.T.Errorf("flow %s unexpectedly passed", res.Flow)
		return
	}
	if res.FirstFailure != atStep {
		env.T.Errorf("flow %s failed at %q, expected %q", res.Flow, res.FirstFailure, atStep)
	}
}

// AssertStepCounts verifies the report's step totals.
func (env *E2EEnvironment) AssertStepCounts(res *flow.Result, total, failed int) {
	env.T.Helper()

	ok := res.Report.TotalSteps == total && res.Report.FailedSteps == failed
	env.Logger.Expected("steps (total/failed)",
		[2]int{total, failed},
		[2]int{res.Report.TotalSteps, res.Report.FailedSteps}, ok)
	if !ok {
		env.T.Errorf("report has %d total / %d failed steps, expected %d/%d",
			res.Report.TotalSteps, res.Report.FailedSteps, total, failed)
	}
}

// AssertArtifactExists verifies a file exists under the artifact dir.
func (env *E2EEnvironment) AssertArtifactExists(rel string) {
	env.T.Helper()

	path := filepath.Join(env.ArtifactDir, rel)
	_, err := os.Stat(path)
	env.Logger.Expected("artifact "+rel, "exists", err, err == nil)
	if err != nil {
		env.T.Errorf("artifact %s: %v", rel, err)
	}
}

// AssertHistoryCount verifies the number of saved reports.
func (env *E2EEnvironment) AssertHistoryCount(expected int) {
	env.T.Helper()

	rows, err := env.History.ListReports(expected + 10)
	if err != nil {
		env.T.Fatalf("AssertHistoryCount: %v", err)
	}
	ok := len(rows) == expected
	env.Logger.Expected("history count", expected, len(rows), ok)
	if !ok {
		env.T.Errorf("history has %d reports, expected %d", len(rows), expected)
	}
}

// writeFakeTrace persists a minimal trace file, standing in for a real
// browser trace stream.
func writeFakeTrace(destination string) error {
	if err := os.MkdirAll(filepath.Dir(destination), 0o750); err != nil {
		return err
	}
	return os.WriteFile(destination, []byte(`{"traceEvents":[]}`), 0o640)
}

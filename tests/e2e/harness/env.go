// Package harness provides the end-to-end test environment: an engine
// and flow runner wired to a temp artifact directory, an in-memory
// history store, and a scripted page standing in for a real browser.
package harness

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/tracewright/tracewright/internal/artifact"
	"github.com/tracewright/tracewright/internal/driver"
	"github.com/tracewright/tracewright/internal/engine"
	"github.com/tracewright/tracewright/internal/flow"
	"github.com/tracewright/tracewright/internal/history"
)

// E2EEnvironment bundles everything a scenario test needs.
type E2EEnvironment struct {
	T      *testing.T
	Logger *StepLogger

	ArtifactDir string
	Engine      *engine.Engine
	Runner      *flow.Runner
	History     *history.DB
}

// NewE2EEnvironment creates a fully wired environment with capture
// enabled. Cleanup is registered on t.
func NewE2EEnvironment(t *testing.T) *E2EEnvironment {
	t.Helper()

	dir := t.TempDir()
	eng := engine.New(artifact.NewWriter(dir), engine.CaptureConfig{
		Enabled: true,
		Tracing: true,
	}, nil)
	runner := flow.NewRunner(eng, flow.Options{
		StepTimeout: 5 * time.Second,
		WaitTimeout: time.Second,
	}, nil)

	db, err := history.Open(":memory:")
	if err != nil {
		t.Fatalf("opening history: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return &E2EEnvironment{
		T:           t,
		Logger:      NewStepLogger(t),
		ArtifactDir: dir,
		Engine:      eng,
		Runner:      runner,
		History:     db,
	}
}

// RunFlow parses and executes flow YAML against page, saving the report
// to history. Flow failure is an ordinary result, not a test error.
func (env *E2EEnvironment) RunFlow(yaml string, page *ScriptedPage) *flow.Result {
	env.T.Helper()

	f, err := flow.Parse([]byte(yaml))
	if err != nil {
		env.T.Fatalf("parsing flow: %v", err)
	}

	env.Logger.Step("Running flow %q (%d steps)", f.Name, len(f.Steps))
	res, err := env.Runner.Run(context.Background(), f, page)
	if err != nil {
		env.T.Fatalf("running flow %q: %v", f.Name, err)
	}
	env.Logger.Result("%s (%d steps, %dms)",
		map[bool]string{true: "PASS", false: "FAIL"}[res.Passed],
		res.Report.TotalSteps, res.Report.TotalDurationMs)

	if _, err := env.History.SaveReport(res.Report); err != nil {
		env.T.Fatalf("saving report: %v", err)
	}
	return res
}

// ScriptedPage is a canned browser: a deterministic Actor whose page
// state the scenario configures up front.
type ScriptedPage struct {
	Location  string
	PageTitle string
	// Texts maps CSS selectors to element text.
	Texts map[string]string
	// FailOn maps "<action> <target>" to an injected error.
	FailOn map[string]error
	// ConsoleLines is returned from RecentConsole.
	ConsoleLines []string
}

func (p *ScriptedPage) fail(key string) error {
	if p.FailOn == nil {
		return nil
	}
	return p.FailOn[key]
}

func (p *ScriptedPage) Navigate(_ context.Context, url string) error {
	if err := p.fail("navigate " + url); err != nil {
		return err
	}
	p.Location = url
	return nil
}

func (p *ScriptedPage) Click(_ context.Context, selector string) error {
	return p.fail("click " + selector)
}

func (p *ScriptedPage) TypeText(_ context.Context, selector, _ string) error {
	return p.fail("type " + selector)
}

func (p *ScriptedPage) WaitVisible(_ context.Context, selector string, _ time.Duration) error {
	return p.fail("wait " + selector)
}

func (p *ScriptedPage) Text(_ context.Context, selector string) (string, error) {
	if err := p.fail("text " + selector); err != nil {
		return "", err
	}
	text, ok := p.Texts[selector]
	if !ok {
		return "", fmt.Errorf("no element matches %s", selector)
	}
	return text, nil
}

func (p *ScriptedPage) Eval(_ context.Context, _ string) error {
	return p.fail("eval")
}

func (p *ScriptedPage) CurrentLocation(context.Context) (string, error) {
	return p.Location, nil
}

func (p *ScriptedPage) Title(context.Context) (string, error) {
	return p.PageTitle, nil
}

func (p *ScriptedPage) ViewportSize(context.Context) (driver.Viewport, error) {
	return driver.Viewport{Width: 1920, Height: 1080}, nil
}

func (p *ScriptedPage) Screenshot(context.Context) ([]byte, error) {
	if err := p.fail("screenshot"); err != nil {
		return nil, err
	}
	return []byte("fake-png"), nil
}

func (p *ScriptedPage) HTML(context.Context) (string, error) {
	return "<html><body>scripted</body></html>", nil
}

func (p *ScriptedPage) StartTracing(context.Context) error {
	return p.fail("start-tracing")
}

func (p *ScriptedPage) StopTracing(_ context.Context, destination string) error {
	if err := p.fail("stop-tracing"); err != nil {
		return err
	}
	return writeFakeTrace(destination)
}

func (p *ScriptedPage) RecentConsole() []string {
	return p.ConsoleLines
}

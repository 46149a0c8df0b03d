package flow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/tracewright/tracewright/internal/driver"
	"github.com/tracewright/tracewright/internal/engine"
	"github.com/tracewright/tracewright/internal/logging"
	"github.com/tracewright/tracewright/internal/step"
)

// Actor is the browser surface the runner drives: the engine's
// diagnostic capabilities plus page interactions. *driver.Browser
// satisfies it.
type Actor interface {
	driver.Driver

	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, selector string) error
	TypeText(ctx context.Context, selector, text string) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	Text(ctx context.Context, selector string) (string, error)
	Eval(ctx context.Context, expression string) error
}

// CheckStatus classifies an assertion step's outcome. A recognized
// alternative text ("known error") is an ordinary, non-failing result:
// the step succeeds and the flow continues, but the match is surfaced
// on the run result so the caller can see the page did not confirm.
type CheckStatus string

const (
	CheckConfirmed  CheckStatus = "confirmed"
	CheckKnownError CheckStatus = "known_error"
)

// KnownErrorHit records an assertion step that matched one of its
// declared known-error texts instead of the expected text.
type KnownErrorHit struct {
	Step    string `json:"step"`
	Matched string `json:"matched"`
	Text    string `json:"text"`
}

// Result is the outcome of one flow run.
type Result struct {
	Flow   string        `json:"flow"`
	Passed bool          `json:"passed"`
	Report engine.Report `json:"report"`

	KnownErrors []KnownErrorHit `json:"known_errors,omitempty"`

	// FirstFailure names the step that failed the flow, empty when the
	// flow passed.
	FirstFailure string `json:"first_failure,omitempty"`
	// Err is the first step failure, preserved unwrapped.
	Err error `json:"-"`
}

// Options tunes the runner's per-step behavior.
type Options struct {
	// StepTimeout bounds each step's browser work.
	StepTimeout time.Duration
	// WaitTimeout is the default bound for wait_visible steps that do
	// not set their own timeout.
	WaitTimeout time.Duration
}

// Runner executes flows through an instrumentation engine.
type Runner struct {
	engine *engine.Engine
	opts   Options
	logger *log.Logger
}

// NewRunner creates a flow runner. A nil logger discards log output.
func NewRunner(e *engine.Engine, opts Options, logger *log.Logger) *Runner {
	if logger == nil {
		logger = logging.Nop()
	}
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = 30 * time.Second
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 10 * time.Second
	}
	return &Runner{engine: e, opts: opts, logger: logger}
}

// Run executes every step of f against drv inside an engine session and
// returns the run result with the session's report. A step failure does
// not return an error: it fails the flow, which Run reports through
// Result. The returned error covers runner-level problems only (session
// bookkeeping, an unknown action that slipped past validation).
func (r *Runner) Run(ctx context.Context, f *Flow, drv Actor) (*Result, error) {
	if err := r.engine.StartSession(ctx, f.Name, drv); err != nil {
		return nil, fmt.Errorf("starting session for flow %q: %w", f.Name, err)
	}

	res := &Result{Flow: f.Name, Passed: true}

	for i := range f.Steps {
		s := &f.Steps[i]
		hit, err := r.runStep(ctx, f, s, drv)
		if hit != nil {
			res.KnownErrors = append(res.KnownErrors, *hit)
		}
		if err != nil {
			if res.Err == nil {
				res.Err = err
				res.FirstFailure = s.Name
			}
			res.Passed = false
			if !s.ContinueOnFailure {
				break
			}
			r.logger.Warn("step failed, continuing", "flow", f.Name, "step", s.Name, "err", err)
		}
	}

	report, err := r.engine.FinishSession(ctx, f.Name, res.Passed)
	if err != nil {
		return nil, fmt.Errorf("finishing session for flow %q: %w", f.Name, err)
	}
	res.Report = report

	r.logger.Info("flow finished",
		"flow", f.Name,
		"passed", res.Passed,
		"steps", report.TotalSteps,
		"duration_ms", report.TotalDurationMs,
	)
	return res, nil
}

// runStep executes one flow step through the engine's step wrapper.
// The step timeout bounds only the operation itself; the engine gets
// the flow's context, so when a step fails by hitting its deadline the
// failure diagnostics (error screenshot, HTML, page context) are still
// captured on a live context.
func (r *Runner) runStep(ctx context.Context, f *Flow, s *Step, drv Actor) (*KnownErrorHit, error) {
	stepCtx, cancel := context.WithTimeout(ctx, r.opts.StepTimeout)
	defer cancel()

	meta := step.Metadata{
		Name:           s.Name,
		Description:    s.Description,
		Action:         s.describe(),
		ExpectedResult: s.Expect,
	}

	var hit *KnownErrorHit
	_, err := engine.RunStep(ctx, r.engine, f.Name, meta, func() (string, error) {
		switch s.Action {
		case ActionNavigate:
			return "", drv.Navigate(stepCtx, resolveURL(f.BaseURL, s.URL))
		case ActionClick:
			return "", drv.Click(stepCtx, s.Selector)
		case ActionType:
			return "", drv.TypeText(stepCtx, s.Selector, s.Text)
		case ActionWaitVisible:
			timeout := r.opts.WaitTimeout
			if s.TimeoutSecs > 0 {
				timeout = time.Duration(s.TimeoutSecs) * time.Second
			}
			return "", drv.WaitVisible(stepCtx, s.Selector, timeout)
		case ActionAssertText:
			text, err := drv.Text(stepCtx, s.Selector)
			if err != nil {
				return "", err
			}
			status, matched, err := s.check(text)
			if err != nil {
				return text, err
			}
			if status == CheckKnownError {
				hit = &KnownErrorHit{Step: s.Name, Matched: matched, Text: text}
			}
			return text, nil
		case ActionAssertTitle:
			title, err := drv.Title(stepCtx)
			if err != nil {
				return "", err
			}
			status, matched, err := s.check(title)
			if err != nil {
				return title, err
			}
			if status == CheckKnownError {
				hit = &KnownErrorHit{Step: s.Name, Matched: matched, Text: title}
			}
			return title, nil
		case ActionEval:
			return "", drv.Eval(stepCtx, s.Script)
		case ActionSleep:
			return "", sleep(stepCtx, time.Duration(s.TimeoutSecs)*time.Second)
		default:
			return "", fmt.Errorf("unknown action %q", s.Action)
		}
	})
	return hit, err
}

// check classifies observed page text against the step's expectation.
// Matching is substring containment: confirmed when the expected text
// appears, known error when one of the declared alternatives does, and
// an error describing the mismatch otherwise.
func (s *Step) check(text string) (CheckStatus, string, error) {
	if strings.Contains(text, s.Expect) {
		return CheckConfirmed, s.Expect, nil
	}
	for _, known := range s.KnownErrors {
		if strings.Contains(text, known) {
			return CheckKnownError, known, nil
		}
	}
	return "", "", fmt.Errorf("expected %q, got %q", s.Expect, text)
}

func resolveURL(base, url string) string {
	if base == "" || strings.Contains(url, "://") {
		return url
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(url, "/")
}

// sleep pauses for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

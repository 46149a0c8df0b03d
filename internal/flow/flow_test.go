package flow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/tracewright/tracewright/internal/artifact"
	"github.com/tracewright/tracewright/internal/driver"
	"github.com/tracewright/tracewright/internal/engine"
)

// scriptedActor plays back canned page state so runner tests need no
// browser.
type scriptedActor struct {
	location string
	title    string
	// texts maps selector to text content.
	texts map[string]string
	// failOn maps "action selector-or-url" to an injected error.
	failOn map[string]error

	calls []string
}

func (a *scriptedActor) record(format string, args ...any) {
	a.calls = append(a.calls, fmt.Sprintf(format, args...))
}

func (a *scriptedActor) fail(key string) error {
	if a.failOn == nil {
		return nil
	}
	return a.failOn[key]
}

func (a *scriptedActor) Navigate(_ context.Context, url string) error {
	a.record("navigate %s", url)
	if err := a.fail("navigate " + url); err != nil {
		return err
	}
	a.location = url
	return nil
}

func (a *scriptedActor) Click(_ context.Context, selector string) error {
	a.record("click %s", selector)
	return a.fail("click " + selector)
}

func (a *scriptedActor) TypeText(_ context.Context, selector, text string) error {
	a.record("type %s %s", selector, text)
	return a.fail("type " + selector)
}

func (a *scriptedActor) WaitVisible(_ context.Context, selector string, _ time.Duration) error {
	a.record("wait %s", selector)
	return a.fail("wait " + selector)
}

func (a *scriptedActor) Text(_ context.Context, selector string) (string, error) {
	a.record("text %s", selector)
	if err := a.fail("text " + selector); err != nil {
		return "", err
	}
	text, ok := a.texts[selector]
	if !ok {
		return "", fmt.Errorf("no element matches %s", selector)
	}
	return text, nil
}

func (a *scriptedActor) Eval(_ context.Context, expression string) error {
	a.record("eval")
	return a.fail("eval")
}

func (a *scriptedActor) CurrentLocation(context.Context) (string, error) { return a.location, nil }
func (a *scriptedActor) Title(context.Context) (string, error)           { return a.title, nil }
func (a *scriptedActor) ViewportSize(context.Context) (driver.Viewport, error) {
	return driver.Viewport{Width: 1280, Height: 800}, nil
}
func (a *scriptedActor) Screenshot(context.Context) ([]byte, error) {
	return []byte("png"), nil
}
func (a *scriptedActor) HTML(context.Context) (string, error)            { return "<html></html>", nil }
func (a *scriptedActor) StartTracing(context.Context) error              { return nil }
func (a *scriptedActor) StopTracing(context.Context, string) error       { return nil }
func (a *scriptedActor) RecentConsole() []string                         { return nil }

func newTestRunner(t *testing.T) *Runner {
	t.Helper()
	w := artifact.NewWriter(t.TempDir())
	eng := engine.New(w, engine.CaptureConfig{}, nil)
	return NewRunner(eng, Options{StepTimeout: 5 * time.Second}, nil)
}

func TestParseValidFlow(t *testing.T) {
	f, err := Parse([]byte(`
name: booking-smoke
base_url: https://shop.test
steps:
  - name: open
    action: navigate
    url: /home
  - action: click
    selector: "#book"
  - name: confirm
    action: assert_text
    selector: ".msg"
    expect: Booked
    known_errors: ["Sold out"]
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if f.Name != "booking-smoke" {
		t.Fatalf("name = %q", f.Name)
	}
	if len(f.Steps) != 3 {
		t.Fatalf("got %d steps, want 3", len(f.Steps))
	}
	// Unnamed steps get positional names.
	if f.Steps[1].Name != "step-2" {
		t.Fatalf("step 2 name = %q, want step-2", f.Steps[1].Name)
	}
}

func TestParseRejectsInvalidFlows(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"missing name", "steps:\n  - action: navigate\n    url: /\n"},
		{"no steps", "name: empty\n"},
		{"navigate without url", "name: f\nsteps:\n  - action: navigate\n"},
		{"click without selector", "name: f\nsteps:\n  - action: click\n"},
		{"assert_text without expect", "name: f\nsteps:\n  - action: assert_text\n    selector: .x\n"},
		{"unknown action", "name: f\nsteps:\n  - action: hover\n    selector: .x\n"},
		{"sleep without timeout", "name: f\nsteps:\n  - action: sleep\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse([]byte(tc.yaml)); !errors.Is(err, ErrInvalidFlow) {
				t.Fatalf("Parse() error = %v, want ErrInvalidFlow", err)
			}
		})
	}
}

func TestRunPassingFlow(t *testing.T) {
	actor := &scriptedActor{
		title: "Shop",
		texts: map[string]string{".msg": "Booked successfully"},
	}
	f, err := Parse([]byte(`
name: booking
base_url: https://shop.test
steps:
  - action: navigate
    url: /home
  - action: click
    selector: "#book"
  - action: assert_text
    selector: ".msg"
    expect: Booked
  - action: assert_title
    expect: Shop
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	res, err := newTestRunner(t).Run(context.Background(), f, actor)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.Passed {
		t.Fatalf("flow failed: %v", res.Err)
	}
	if res.Report.TotalSteps != 4 || res.Report.FailedSteps != 0 {
		t.Fatalf("report = %d total / %d failed, want 4/0", res.Report.TotalSteps, res.Report.FailedSteps)
	}
	if actor.calls[0] != "navigate https://shop.test/home" {
		t.Fatalf("base_url not applied: %q", actor.calls[0])
	}
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	boom := errors.New("element detached")
	actor := &scriptedActor{
		failOn: map[string]error{"click #book": boom},
	}
	f, err := Parse([]byte(`
name: booking
steps:
  - action: navigate
    url: https://shop.test/
  - name: book
    action: click
    selector: "#book"
  - action: click
    selector: "#never"
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	res, err := newTestRunner(t).Run(context.Background(), f, actor)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Passed {
		t.Fatal("flow should have failed")
	}
	if !errors.Is(res.Err, boom) {
		t.Fatalf("res.Err = %v, want original failure", res.Err)
	}
	if res.FirstFailure != "book" {
		t.Fatalf("FirstFailure = %q, want book", res.FirstFailure)
	}
	// The step after the failure never ran.
	for _, c := range actor.calls {
		if strings.Contains(c, "#never") {
			t.Fatalf("step after failure ran: %v", actor.calls)
		}
	}
	if res.Report.TotalSteps != 2 || res.Report.FailedSteps != 1 {
		t.Fatalf("report = %d total / %d failed, want 2/1", res.Report.TotalSteps, res.Report.FailedSteps)
	}
}

func TestRunContinueOnFailure(t *testing.T) {
	actor := &scriptedActor{
		failOn: map[string]error{"click #optional": errors.New("not found")},
	}
	f, err := Parse([]byte(`
name: resilient
steps:
  - action: click
    selector: "#optional"
    continue_on_failure: true
  - action: click
    selector: "#after"
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	res, err := newTestRunner(t).Run(context.Background(), f, actor)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Passed {
		t.Fatal("a continued failure still fails the flow")
	}
	if res.Report.TotalSteps != 2 {
		t.Fatalf("got %d steps, want 2 (flow continued)", res.Report.TotalSteps)
	}
}

func TestRunKnownErrorIsNotAFailure(t *testing.T) {
	actor := &scriptedActor{
		texts: map[string]string{".msg": "Sorry, sold out"},
	}
	f, err := Parse([]byte(`
name: booking
steps:
  - name: confirm
    action: assert_text
    selector: ".msg"
    expect: Booked
    known_errors: ["sold out"]
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	res, err := newTestRunner(t).Run(context.Background(), f, actor)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.Passed {
		t.Fatalf("known error should not fail the flow: %v", res.Err)
	}
	if len(res.KnownErrors) != 1 {
		t.Fatalf("got %d known-error hits, want 1", len(res.KnownErrors))
	}
	hit := res.KnownErrors[0]
	if hit.Step != "confirm" || hit.Matched != "sold out" {
		t.Fatalf("hit = %+v", hit)
	}
}

func TestRunAssertMismatchFailsWithObservedText(t *testing.T) {
	actor := &scriptedActor{
		texts: map[string]string{".msg": "Server error"},
	}
	f, err := Parse([]byte(`
name: booking
steps:
  - action: assert_text
    selector: ".msg"
    expect: Booked
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	res, err := newTestRunner(t).Run(context.Background(), f, actor)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Passed {
		t.Fatal("mismatch should fail the flow")
	}
	if !strings.Contains(res.Err.Error(), "Server error") {
		t.Fatalf("failure should carry observed text, got %v", res.Err)
	}
}

// deadlineActor simulates the dominant browser failure mode: an action
// that blocks until its context deadline fires. Its capture methods
// honor context cancellation the way a real browser backend does, so
// they fail if called on an already-done context.
type deadlineActor struct {
	scriptedActor
}

func (a *deadlineActor) Click(ctx context.Context, selector string) error {
	<-ctx.Done()
	return fmt.Errorf("clicking %s: %w", selector, ctx.Err())
}

func (a *deadlineActor) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []byte("png"), nil
}

func (a *deadlineActor) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "<html><body>slow</body></html>", nil
}

func (a *deadlineActor) CurrentLocation(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return a.location, nil
}

func (a *deadlineActor) Title(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return a.title, nil
}

func TestTimedOutStepStillCapturesDiagnostics(t *testing.T) {
	w := artifact.NewWriter(t.TempDir())
	eng := engine.New(w, engine.CaptureConfig{Enabled: true}, nil)
	runner := NewRunner(eng, Options{StepTimeout: 50 * time.Millisecond}, nil)

	actor := &deadlineActor{scriptedActor{
		location: "https://shop.test/slow",
		title:    "Slow page",
	}}
	f, err := Parse([]byte(`
name: slow
steps:
  - name: stuck
    action: click
    selector: "#never-appears"
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	res, err := runner.Run(context.Background(), f, actor)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Passed {
		t.Fatal("flow should have failed")
	}
	if !errors.Is(res.Err, context.DeadlineExceeded) {
		t.Fatalf("res.Err = %v, want deadline exceeded", res.Err)
	}

	st := res.Report.Steps[0]
	if st.Artifacts.ErrorScreenshot == "" {
		t.Fatal("timed-out step has no error screenshot")
	}
	if st.Artifacts.HTMLSnapshot == "" {
		t.Fatal("timed-out step has no HTML snapshot")
	}
	if st.Error == nil {
		t.Fatal("timed-out step has no error detail")
	}
	if st.Error.Location != "https://shop.test/slow" {
		t.Fatalf("error location = %q, want the page address", st.Error.Location)
	}
	if st.Error.Title != "Slow page" {
		t.Fatalf("error title = %q", st.Error.Title)
	}
}

func TestResolveURL(t *testing.T) {
	cases := []struct {
		base, url, want string
	}{
		{"https://shop.test", "/home", "https://shop.test/home"},
		{"https://shop.test/", "home", "https://shop.test/home"},
		{"", "/home", "/home"},
		{"https://shop.test", "https://other.test/x", "https://other.test/x"},
	}
	for _, tc := range cases {
		if got := resolveURL(tc.base, tc.url); got != tc.want {
			t.Fatalf("resolveURL(%q, %q) = %q, want %q", tc.base, tc.url, got, tc.want)
		}
	}
}

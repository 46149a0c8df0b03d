package harness

import (
	"fmt"
	"io"
	"os"
	"testing"
	"time"
)

// StepLogger provides structured scenario logging with timestamps.
//
// Output format:
//
//	[2026-08-24 10:23:45.123] STEP 1: Running booking flow
//	  -> Result: PASS (4 steps, 120ms)
type StepLogger struct {
	t     *testing.T
	out   io.Writer
	start time.Time
	step  int
}

// NewStepLogger creates a logger for the given test.
//
// Output goes to stderr when running with -v, otherwise discarded.
func NewStepLogger(t *testing.T) *StepLogger {
	t.Helper()

	var out io.Writer = io.Discard
	if testing.Verbose() {
		out = os.Stderr
	}

	return &StepLogger{
		t:     t,
		out:   out,
		start: time.Now(),
	}
}

// Step logs the next numbered scenario step.
func (l *StepLogger) Step(format string, args ...any) {
	l.t.Helper()
	l.step++
	msg := fmt.Sprintf(format, args...)
	l.write("[%s] STEP %d: %s\n", l.timestamp(), l.step, msg)
}

// Result logs a step result (indented).
func (l *StepLogger) Result(format string, args ...any) {
	l.t.Helper()
	msg := fmt.Sprintf(format, args...)
	l.write("  -> Result: %s\n", msg)
}

// Expected logs an expected vs actual comparison.
func (l *StepLogger) Expected(what string, expected, actual any, ok bool) {
	l.t.Helper()
	mark := "X"
	if ok {
		mark = "OK"
	}
	l.write("  -> Expected %s: %v, got %v [%s]\n", what, expected, actual, mark)
}

// Elapsed logs elapsed time since start.
func (l *StepLogger) Elapsed() {
	l.t.Helper()
	l.write("[%s] Elapsed: %s\n", l.timestamp(), time.Since(l.start).Round(time.Millisecond))
}

func (l *StepLogger) timestamp() string {
	return time.Now().Format("2006-01-02 15:04:05.000")
}

func (l *StepLogger) write(format string, args ...any) {
	fmt.Fprintf(l.out, format, args...)
}

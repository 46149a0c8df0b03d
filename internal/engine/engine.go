// Package engine implements the test instrumentation engine: per-test
// sessions, the step execution wrapper with diagnostic capture, and the
// aggregate report emitted when a session finishes.
//
// One Engine instance serves a whole process. Sessions for distinct test
// identifiers may start, step, and finish concurrently; steps within one
// session are sequential by contract (browser interactions on a single
// page are inherently ordered).
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/tracewright/tracewright/internal/artifact"
	"github.com/tracewright/tracewright/internal/driver"
	"github.com/tracewright/tracewright/internal/logging"
	"github.com/tracewright/tracewright/internal/step"
)

// Session lifecycle errors.
var (
	// ErrSessionNotFound is returned when a step or finish call names a
	// test identifier with no live session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrDuplicateSession is returned when StartSession is called twice
	// for the same live test identifier.
	ErrDuplicateSession = errors.New("session already started")
)

// CaptureConfig controls diagnostic capture. It is resolved once per
// session at StartSession and frozen on the session, so a mid-test
// configuration change never produces a half-captured session.
type CaptureConfig struct {
	// Enabled is the master switch. When false no artifacts are written
	// and tracing is never started.
	Enabled bool
	// ScreenshotOnSuccess also captures an "after" screenshot for
	// successful steps, not just failure diagnostics.
	ScreenshotOnSuccess bool
	// Tracing starts a browser tracing session alongside the test and
	// persists the trace archive at finish.
	Tracing bool
}

// session is the instrumentation state for one test execution. It is
// owned by the Engine's registry for its whole lifetime and never handed
// out by mutable reference.
type session struct {
	mu        sync.Mutex
	testID    string
	drv       driver.Driver
	startedAt time.Time
	recorder  *step.Recorder
	capture   CaptureConfig
	tracing   bool
	finished  bool
}

// Engine is the process-wide registry of live sessions plus the step
// execution wrapper. Construct it explicitly and inject it into the test
// flow; there is no package-level instance.
//
// A caller that crashes without calling FinishSession leaks its registry
// entry. That is a documented limitation: lifecycle is explicit init and
// explicit teardown, with no implicit cleanup.
type Engine struct {
	mu       sync.Mutex
	sessions map[string]*session

	artifacts *artifact.Writer
	capture   CaptureConfig
	logger    *log.Logger
}

// New creates an engine writing artifacts through w. A nil logger
// discards log output.
func New(w *artifact.Writer, capture CaptureConfig, logger *log.Logger) *Engine {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Engine{
		sessions:  make(map[string]*session),
		artifacts: w,
		capture:   capture,
		logger:    logger,
	}
}

// ActiveSessions returns the number of live sessions.
func (e *Engine) ActiveSessions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

// StartSession registers instrumentation state for testID and, when
// capture is enabled, begins a browser tracing session through drv.
// Fails with ErrDuplicateSession if testID already has a live session;
// the original session is left untouched.
func (e *Engine) StartSession(ctx context.Context, testID string, drv driver.Driver) error {
	if testID == "" {
		return fmt.Errorf("test id is required")
	}

	sess := &session{
		testID:    testID,
		drv:       drv,
		startedAt: time.Now(),
		recorder:  step.NewRecorder(),
		capture:   e.capture,
	}

	e.mu.Lock()
	if _, exists := e.sessions[testID]; exists {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateSession, testID)
	}
	e.sessions[testID] = sess
	e.mu.Unlock()

	if sess.capture.Enabled {
		if err := e.artifacts.EnsureSessionDir(testID); err != nil {
			e.logger.Warn("artifact dir unavailable, captures will be skipped", "test", testID, "err", err)
		}
		if sess.capture.Tracing {
			if err := drv.StartTracing(ctx); err != nil {
				e.logger.Warn("tracing unavailable", "test", testID, "err", err)
			} else {
				sess.tracing = true
			}
		}
	}

	e.logger.Debug("session started", "test", testID, "capture", sess.capture.Enabled)
	return nil
}

// lookup returns the live session for testID.
func (e *Engine) lookup(testID string) (*session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	sess, ok := e.sessions[testID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, testID)
	}
	return sess, nil
}

// FinishSession ends the session for testID: stops tracing and persists
// the trace archive when capture was enabled, writes the artifact
// manifest, computes the aggregate Report, and removes the session from
// the registry. The removal is atomic with respect to concurrent step
// calls for the same testID: once FinishSession has claimed the session,
// RunStep fails with ErrSessionNotFound.
//
// passed is the caller's overall verdict. It is recorded as supplied,
// never inferred from step outcomes: a caller may mark a session passed
// after a recovered, expected failure step.
func (e *Engine) FinishSession(ctx context.Context, testID string, passed bool) (Report, error) {
	e.mu.Lock()
	sess, ok := e.sessions[testID]
	if ok {
		delete(e.sessions, testID)
	}
	e.mu.Unlock()
	if !ok {
		return Report{}, fmt.Errorf("%w: %s", ErrSessionNotFound, testID)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.finished = true

	tracePath := ""
	if sess.tracing {
		dest := e.artifacts.TracePath(testID)
		if err := sess.drv.StopTracing(ctx, dest); err != nil {
			e.logger.Warn("trace capture failed", "test", testID, "err", err)
		} else {
			tracePath = dest
		}
	}

	manifestPath := ""
	if sess.capture.Enabled {
		path, err := e.artifacts.WriteManifest(testID)
		if err != nil {
			e.logger.Warn("manifest write failed", "test", testID, "err", err)
		} else {
			manifestPath = path
		}
	}

	report := buildReport(sess, passed, tracePath, manifestPath)
	e.logger.Debug("session finished",
		"test", testID,
		"passed", passed,
		"steps", report.TotalSteps,
		"failed", report.FailedSteps,
	)
	return report, nil
}

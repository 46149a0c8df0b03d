package engine

import (
	"context"
	"fmt"

	"github.com/tracewright/tracewright/internal/artifact"
	"github.com/tracewright/tracewright/internal/step"
	"github.com/tracewright/tracewright/internal/timing"
)

// RunStep executes op as the next step of testID's session.
//
// The wrapper measures wall-clock duration, captures diagnostics around
// the operation (a "before" screenshot when capture is enabled, error
// screenshot/HTML/page context on failure), and appends the finalized
// step to the session's log. The operation's result and error pass
// through untouched: a failing op's error is re-raised unchanged after
// recording, so the caller observes exactly the failure it would have
// seen without instrumentation.
//
// RunStep is a free function because the operation's result type is
// generic and Go methods cannot be.
func RunStep[T any](ctx context.Context, e *Engine, testID string, meta step.Metadata, op func() (T, error)) (T, error) {
	var zero T

	sess, err := e.lookup(testID)
	if err != nil {
		return zero, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.finished {
		// The registry entry was claimed by FinishSession while we were
		// waiting; treat it the same as a missing session.
		return zero, fmt.Errorf("%w: %s", ErrSessionNotFound, testID)
	}

	seq := sess.recorder.NextSeq()
	rec := step.Step{Seq: seq, Metadata: meta}

	if sess.capture.Enabled {
		rec.Artifacts.BeforeScreenshot = e.captureScreenshot(ctx, sess, seq, artifact.LabelBefore)
	}

	h := timing.Start()
	result, opErr := op()
	rec.DurationMs = timing.Stop(h)

	if opErr == nil {
		rec.Outcome = step.OutcomeSuccess
		if sess.capture.Enabled && sess.capture.ScreenshotOnSuccess {
			rec.Artifacts.AfterScreenshot = e.captureScreenshot(ctx, sess, seq, artifact.LabelAfter)
		}
		if err := sess.recorder.Append(rec); err != nil {
			return zero, err
		}
		return result, nil
	}

	rec.Outcome = step.OutcomeFailure
	rec.Error = e.captureErrorDetail(ctx, sess, opErr)
	if sess.capture.Enabled {
		rec.Artifacts.ErrorScreenshot = e.captureScreenshot(ctx, sess, seq, artifact.LabelError)
		rec.Artifacts.HTMLSnapshot = e.captureHTML(ctx, sess, seq)
	}
	if err := sess.recorder.Append(rec); err != nil {
		// An append failure here is an engine bug, but swallowing the
		// operation's error would be worse. Log and re-raise the
		// original failure.
		e.logger.Error("step append failed", "test", testID, "seq", seq, "err", err)
	}
	return zero, opErr
}

// captureScreenshot takes and persists a screenshot for one step.
// Capture is best effort: on failure it logs a warning and returns an
// empty path, never affecting the step outcome.
func (e *Engine) captureScreenshot(ctx context.Context, sess *session, seq int, label artifact.Label) string {
	data, err := sess.drv.Screenshot(ctx)
	if err != nil {
		e.logger.Warn("screenshot capture failed", "test", sess.testID, "seq", seq, "label", label, "err", err)
		return ""
	}
	path, err := e.artifacts.WriteStep(sess.testID, seq, label, data)
	if err != nil {
		e.logger.Warn("screenshot write failed", "test", sess.testID, "seq", seq, "label", label, "err", err)
		return ""
	}
	return path
}

// captureHTML persists the failing page's markup. Best effort.
func (e *Engine) captureHTML(ctx context.Context, sess *session, seq int) string {
	html, err := sess.drv.HTML(ctx)
	if err != nil {
		e.logger.Warn("html capture failed", "test", sess.testID, "seq", seq, "err", err)
		return ""
	}
	path, err := e.artifacts.WriteStep(sess.testID, seq, artifact.LabelHTML, []byte(html))
	if err != nil {
		e.logger.Warn("html write failed", "test", sess.testID, "seq", seq, "err", err)
		return ""
	}
	return path
}

// captureErrorDetail gathers whatever page context is obtainable at
// failure time. Each field is independent; an unavailable capability
// just leaves its field empty.
func (e *Engine) captureErrorDetail(ctx context.Context, sess *session, opErr error) *step.ErrorDetail {
	detail := &step.ErrorDetail{Message: opErr.Error()}

	if loc, err := sess.drv.CurrentLocation(ctx); err == nil {
		detail.Location = loc
	}
	if title, err := sess.drv.Title(ctx); err == nil {
		detail.Title = title
	}
	if vp, err := sess.drv.ViewportSize(ctx); err == nil {
		detail.ViewportWidth = vp.Width
		detail.ViewportHeight = vp.Height
	}
	detail.Console = sess.drv.RecentConsole()

	return detail
}

package step

import (
	"errors"
	"fmt"
)

// ErrInvalidStep is returned when an appended step's sequence number is
// not exactly one past the previous maximum. A gap indicates an engine
// bug: in correct usage the session controller is the only writer and
// always supplies sequential numbers.
var ErrInvalidStep = errors.New("invalid step sequence")

// Recorder owns the ordered step log for one session.
//
// A Recorder is not safe for unsynchronized concurrent writers; steps
// within one test's flow are sequential, and the owning session
// serializes access.
type Recorder struct {
	steps []Step
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// NextSeq returns the sequence number the next appended step must carry.
func (r *Recorder) NextSeq() int {
	return len(r.steps) + 1
}

// Append adds a finalized step to the log. The step's Seq must equal
// NextSeq; anything else fails with ErrInvalidStep and records nothing.
func (r *Recorder) Append(s Step) error {
	if want := r.NextSeq(); s.Seq != want {
		return fmt.Errorf("%w: got seq %d, want %d", ErrInvalidStep, s.Seq, want)
	}
	if (s.Outcome == OutcomeFailure) != (s.Error != nil) {
		return fmt.Errorf("%w: error detail must be present exactly when outcome is failure", ErrInvalidStep)
	}
	r.steps = append(r.steps, s)
	return nil
}

// Steps returns a read-only snapshot of the recorded steps in append
// order. The returned slice is a copy; mutating it does not affect the
// recorder.
func (r *Recorder) Steps() []Step {
	out := make([]Step, len(r.steps))
	copy(out, r.steps)
	return out
}

// Len returns the number of recorded steps.
func (r *Recorder) Len() int {
	return len(r.steps)
}

// Package step defines the per-step record and the ordered recorder that
// owns a session's step log.
package step

// Outcome is the final status of a recorded step.
type Outcome string

// Step outcomes.
const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Metadata describes a step before it runs. It is supplied by the caller
// of the step wrapper and carried verbatim into the record.
type Metadata struct {
	// Name is a short machine-friendly step name.
	Name string `json:"name"`
	// Description is the human-readable intent of the step.
	Description string `json:"description,omitempty"`
	// Action describes what the step attempts (e.g. "click #submit").
	Action string `json:"action,omitempty"`
	// ExpectedResult describes what the step expects to observe.
	ExpectedResult string `json:"expected_result,omitempty"`
}

// Artifacts holds paths of diagnostics captured for one step. Empty
// fields mean the capture was disabled or failed (capture is best
// effort and never affects the step outcome).
type Artifacts struct {
	BeforeScreenshot string `json:"before_screenshot,omitempty"`
	AfterScreenshot  string `json:"after_screenshot,omitempty"`
	ErrorScreenshot  string `json:"error_screenshot,omitempty"`
	HTMLSnapshot     string `json:"html_snapshot,omitempty"`
}

// ErrorDetail captures the failure context of a failed step.
type ErrorDetail struct {
	// Message is the operation error's message.
	Message string `json:"message"`
	// Location is the page address at failure time, if obtainable.
	Location string `json:"location,omitempty"`
	// Title is the page title at failure time, if obtainable.
	Title string `json:"title,omitempty"`
	// ViewportWidth and ViewportHeight are the viewport dimensions at
	// failure time; zero when unavailable.
	ViewportWidth  int `json:"viewport_width,omitempty"`
	ViewportHeight int `json:"viewport_height,omitempty"`
	// Console holds recent browser console output, when the driver
	// supports capturing it. Nil otherwise.
	Console []string `json:"console,omitempty"`
}

// Step is one recorded unit of work within a session. It is created by
// the session controller and immutable once appended to the recorder.
type Step struct {
	// Seq is the 1-based position of the step within its session.
	Seq int `json:"seq"`

	Metadata

	// Outcome is the final status.
	Outcome Outcome `json:"outcome"`
	// DurationMs is the measured wall-clock duration in milliseconds,
	// set exactly once when the operation settles.
	DurationMs int64 `json:"duration_ms"`

	Artifacts Artifacts `json:"artifacts,omitempty"`

	// Error is present if and only if Outcome is OutcomeFailure.
	Error *ErrorDetail `json:"error,omitempty"`
}

// Package flow loads and executes YAML-defined browser test flows. A
// flow is the engine's caller: each flow step runs through the
// instrumentation engine's step wrapper, so every run yields a full
// report with timing and failure diagnostics.
package flow

import (
	"errors"
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// Step actions.
const (
	ActionNavigate    = "navigate"
	ActionClick       = "click"
	ActionType        = "type"
	ActionWaitVisible = "wait_visible"
	ActionAssertText  = "assert_text"
	ActionAssertTitle = "assert_title"
	ActionEval        = "eval"
	ActionSleep       = "sleep"
)

// ErrInvalidFlow is returned when a flow file fails validation.
var ErrInvalidFlow = errors.New("invalid flow")

// Flow is one named browser test: an ordered list of steps.
type Flow struct {
	// Name identifies the flow; it doubles as the engine's test
	// identifier, so it must be unique among concurrently running flows.
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	// BaseURL is prefixed to relative navigation targets.
	BaseURL string `yaml:"base_url,omitempty"`
	Steps   []Step `yaml:"steps"`
}

// Step is one flow step. Which fields are required depends on Action.
type Step struct {
	Name        string `yaml:"name,omitempty"`
	Description string `yaml:"description,omitempty"`
	Action      string `yaml:"action"`

	URL      string `yaml:"url,omitempty"`
	Selector string `yaml:"selector,omitempty"`
	Text     string `yaml:"text,omitempty"`
	Script   string `yaml:"script,omitempty"`

	// Expect is the asserted text (assert_text, assert_title).
	Expect string `yaml:"expect,omitempty"`
	// KnownErrors are alternative texts that count as a recognized
	// outcome rather than an unexpected failure (e.g. a "sold out"
	// banner where a confirmation was expected).
	KnownErrors []string `yaml:"known_errors,omitempty"`

	// TimeoutSecs bounds wait_visible, and is the sleep duration for
	// the sleep action. Zero means the runner's default.
	TimeoutSecs int `yaml:"timeout,omitempty"`

	// ContinueOnFailure keeps the flow running after this step fails.
	// The flow is still reported as failed overall.
	ContinueOnFailure bool `yaml:"continue_on_failure,omitempty"`
}

// Load reads and validates a flow file.
func Load(path string) (*Flow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading flow file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates flow YAML.
func Parse(data []byte) (*Flow, error) {
	var f Flow
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFlow, err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *Flow) validate() error {
	if f.Name == "" {
		return fmt.Errorf("%w: flow name is required", ErrInvalidFlow)
	}
	if len(f.Steps) == 0 {
		return fmt.Errorf("%w: flow %q has no steps", ErrInvalidFlow, f.Name)
	}

	for i := range f.Steps {
		s := &f.Steps[i]
		if s.Name == "" {
			s.Name = fmt.Sprintf("step-%d", i+1)
		}
		if err := s.validate(); err != nil {
			return fmt.Errorf("%w: step %q: %v", ErrInvalidFlow, s.Name, err)
		}
	}
	return nil
}

func (s *Step) validate() error {
	switch s.Action {
	case ActionNavigate:
		if s.URL == "" {
			return errors.New("navigate requires url")
		}
	case ActionClick, ActionWaitVisible:
		if s.Selector == "" {
			return fmt.Errorf("%s requires selector", s.Action)
		}
	case ActionType:
		if s.Selector == "" {
			return errors.New("type requires selector")
		}
	case ActionAssertText:
		if s.Selector == "" || s.Expect == "" {
			return errors.New("assert_text requires selector and expect")
		}
	case ActionAssertTitle:
		if s.Expect == "" {
			return errors.New("assert_title requires expect")
		}
	case ActionEval:
		if s.Script == "" {
			return errors.New("eval requires script")
		}
	case ActionSleep:
		if s.TimeoutSecs <= 0 {
			return errors.New("sleep requires timeout > 0")
		}
	case "":
		return errors.New("action is required")
	default:
		return fmt.Errorf("unknown action %q", s.Action)
	}
	if s.TimeoutSecs < 0 {
		return errors.New("timeout cannot be negative")
	}
	return nil
}

// describe renders a human-readable summary of the step's action.
func (s *Step) describe() string {
	switch s.Action {
	case ActionNavigate:
		return "navigate " + s.URL
	case ActionClick:
		return "click " + s.Selector
	case ActionType:
		return "type into " + s.Selector
	case ActionWaitVisible:
		return "wait for " + s.Selector
	case ActionAssertText:
		return fmt.Sprintf("assert %s contains %q", s.Selector, s.Expect)
	case ActionAssertTitle:
		return fmt.Sprintf("assert title contains %q", s.Expect)
	case ActionEval:
		return "evaluate script"
	case ActionSleep:
		return fmt.Sprintf("sleep %ds", s.TimeoutSecs)
	default:
		return s.Action
	}
}

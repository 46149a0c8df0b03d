// Package output renders run results and reports for humans (text,
// tab-aligned tables) and machines (JSON). Human-readable rendering goes
// to stderr so stdout stays clean for JSON consumers.
package output

import (
	"os"
	"sync/atomic"

	"golang.org/x/term"
)

// Mode is the global output mode used by the rendering helpers.
type Mode string

const (
	ModeText Mode = "text"
	ModeJSON Mode = "json"
)

var mode atomic.Value

func init() {
	mode.Store(ModeText)
}

// SetJSON switches the global output mode.
func SetJSON(json bool) {
	if json {
		mode.Store(ModeJSON)
		return
	}
	mode.Store(ModeText)
}

// CurrentMode returns the global output mode.
func CurrentMode() Mode {
	if v, ok := mode.Load().(Mode); ok {
		return v
	}
	return ModeText
}

// IsJSON reports whether the global output mode is JSON.
func IsJSON() bool {
	return CurrentMode() == ModeJSON
}

// StdoutIsTerminal reports whether stdout is attached to a terminal.
// Piped output (CI, redirects) is not, which callers use to default to
// machine-friendly rendering.
func StdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

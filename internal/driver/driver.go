// Package driver defines the narrow browser capability the instrumentation
// engine consumes, and provides the chromedp-backed implementation.
//
// The engine never drives the browser itself (clicking, navigating,
// typing); it only asks a Driver for diagnostic captures and page context.
package driver

import (
	"context"
	"errors"
)

// ErrUnsupported is returned by drivers for capabilities they do not
// implement. Callers treat the affected capture as optional metadata.
var ErrUnsupported = errors.New("capability not supported by driver")

// Viewport holds the page viewport dimensions in CSS pixels.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Driver is the diagnostic-capture surface of a browser automation
// backend. All captures are best effort from the engine's point of view:
// a failed capture is logged and skipped, never fatal to a step.
type Driver interface {
	// CurrentLocation returns the current page address.
	CurrentLocation(ctx context.Context) (string, error)

	// Title returns the current page title.
	Title(ctx context.Context) (string, error)

	// ViewportSize returns the current viewport dimensions.
	ViewportSize(ctx context.Context) (Viewport, error)

	// Screenshot captures the visible page as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)

	// HTML captures the full document markup.
	HTML(ctx context.Context) (string, error)

	// StartTracing begins a browser tracing session. At most one tracing
	// session is active per driver at a time.
	StartTracing(ctx context.Context) error

	// StopTracing ends the tracing session and persists the trace
	// archive to destination.
	StopTracing(ctx context.Context, destination string) error

	// RecentConsole returns recent browser console output, oldest first.
	// Drivers that do not capture console output return nil.
	RecentConsole() []string
}

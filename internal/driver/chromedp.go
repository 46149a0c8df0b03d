package driver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/io"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/tracing"
	"github.com/chromedp/chromedp"
)

// Options configures a Browser.
type Options struct {
	// Headless runs the browser without a visible window.
	Headless bool
	// WindowWidth and WindowHeight set the browser window size.
	WindowWidth  int
	WindowHeight int
	// OperationTimeout bounds the whole browser context; zero means no
	// bound beyond the parent context.
	OperationTimeout time.Duration
	// ConsoleBufferSize bounds the recent-console window.
	ConsoleBufferSize int
	// Logf receives chromedp's internal log output; nil discards it.
	Logf func(format string, args ...any)
}

// DefaultOptions returns the options used when none are supplied.
func DefaultOptions() Options {
	return Options{
		Headless:          true,
		WindowWidth:       1920,
		WindowHeight:      1080,
		ConsoleBufferSize: 50,
	}
}

// Browser is the chromedp-backed Driver. It owns a dedicated browser
// instance for one test flow; concurrent flows each get their own
// Browser.
type Browser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	console     *consoleBuffer
	tracingOn   bool
}

// NewBrowser launches a browser and returns a driver bound to it.
// Close must be called to release the browser process.
func NewBrowser(parent context.Context, opts Options) (*Browser, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, allocOpts...)

	var ctxOpts []chromedp.ContextOption
	if opts.Logf != nil {
		ctxOpts = append(ctxOpts, chromedp.WithLogf(opts.Logf))
	}
	ctx, cancel := chromedp.NewContext(allocCtx, ctxOpts...)

	if opts.OperationTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, opts.OperationTimeout)
	}

	b := &Browser{
		ctx:         ctx,
		cancel:      cancel,
		allocCancel: allocCancel,
		console:     newConsoleBuffer(opts.ConsoleBufferSize),
	}
	b.listenConsole()

	// Force browser startup now so a missing Chrome binary surfaces as a
	// construction error, not a failure of the first step.
	if err := chromedp.Run(ctx); err != nil {
		b.Close()
		return nil, fmt.Errorf("starting browser: %w", err)
	}
	return b, nil
}

// Context returns the chromedp context for page interactions.
func (b *Browser) Context() context.Context {
	return b.ctx
}

// Close tears down the browser and its allocator.
func (b *Browser) Close() {
	if b.cancel != nil {
		b.cancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
}

// listenConsole mirrors browser console API calls into the bounded
// recent-console buffer.
func (b *Browser) listenConsole() {
	chromedp.ListenTarget(b.ctx, func(ev any) {
		msg, ok := ev.(*runtime.EventConsoleAPICalled)
		if !ok {
			return
		}
		var args []string
		for _, arg := range msg.Args {
			if arg.Value != nil {
				args = append(args, string(arg.Value))
			}
		}
		b.console.Append(fmt.Sprintf("[%s] %s", msg.Type, strings.Join(args, " ")))
	})
}

// CurrentLocation implements Driver.
func (b *Browser) CurrentLocation(ctx context.Context) (string, error) {
	var loc string
	if err := chromedp.Run(b.run(ctx), chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("reading location: %w", err)
	}
	return loc, nil
}

// Title implements Driver.
func (b *Browser) Title(ctx context.Context) (string, error) {
	var title string
	if err := chromedp.Run(b.run(ctx), chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("reading title: %w", err)
	}
	return title, nil
}

// ViewportSize implements Driver.
func (b *Browser) ViewportSize(ctx context.Context) (Viewport, error) {
	var dims []int
	err := chromedp.Run(b.run(ctx),
		chromedp.Evaluate(`[window.innerWidth, window.innerHeight]`, &dims),
	)
	if err != nil {
		return Viewport{}, fmt.Errorf("reading viewport: %w", err)
	}
	if len(dims) != 2 {
		return Viewport{}, fmt.Errorf("reading viewport: unexpected result %v", dims)
	}
	return Viewport{Width: dims[0], Height: dims[1]}, nil
}

// Screenshot implements Driver.
func (b *Browser) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := chromedp.Run(b.run(ctx), chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", err)
	}
	return buf, nil
}

// HTML implements Driver.
func (b *Browser) HTML(ctx context.Context) (string, error) {
	var html string
	if err := chromedp.Run(b.run(ctx), chromedp.OuterHTML("html", &html)); err != nil {
		return "", fmt.Errorf("capturing html: %w", err)
	}
	return html, nil
}

// StartTracing implements Driver. The trace is collected by the browser
// and retrieved as a stream at StopTracing time.
func (b *Browser) StartTracing(ctx context.Context) error {
	if b.tracingOn {
		return fmt.Errorf("tracing already started")
	}
	err := chromedp.Run(b.run(ctx), chromedp.ActionFunc(func(ctx context.Context) error {
		return tracing.Start().
			WithTransferMode(tracing.TransferModeReturnAsStream).
			WithStreamFormat(tracing.StreamFormatJSON).
			Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("starting tracing: %w", err)
	}
	b.tracingOn = true
	return nil
}

// StopTracing implements Driver. It ends the tracing session, drains the
// resulting stream, and writes the Chrome JSON trace to destination.
func (b *Browser) StopTracing(ctx context.Context, destination string) error {
	if !b.tracingOn {
		return fmt.Errorf("tracing not started")
	}
	b.tracingOn = false

	complete := make(chan *tracing.EventTracingComplete, 1)
	lctx, lcancel := context.WithCancel(b.ctx)
	defer lcancel()
	chromedp.ListenTarget(lctx, func(ev any) {
		if e, ok := ev.(*tracing.EventTracingComplete); ok {
			select {
			case complete <- e:
			default:
			}
		}
	})

	if err := chromedp.Run(b.run(ctx), chromedp.ActionFunc(func(ctx context.Context) error {
		return tracing.End().Do(ctx)
	})); err != nil {
		return fmt.Errorf("stopping tracing: %w", err)
	}

	var ev *tracing.EventTracingComplete
	select {
	case ev = <-complete:
	case <-ctx.Done():
		return fmt.Errorf("waiting for trace: %w", ctx.Err())
	case <-b.ctx.Done():
		return fmt.Errorf("waiting for trace: %w", b.ctx.Err())
	}
	if ev.Stream == "" {
		return fmt.Errorf("stopping tracing: browser returned no trace stream")
	}

	var trace strings.Builder
	err := chromedp.Run(b.run(ctx), chromedp.ActionFunc(func(ctx context.Context) error {
		defer func() {
			_ = io.Close(ev.Stream).Do(ctx)
		}()
		for {
			data, eof, err := io.Read(ev.Stream).Do(ctx)
			if err != nil {
				return err
			}
			trace.WriteString(data)
			if eof {
				return nil
			}
		}
	}))
	if err != nil {
		return fmt.Errorf("reading trace stream: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(destination), 0o750); err != nil {
		return fmt.Errorf("creating trace dir: %w", err)
	}
	if err := os.WriteFile(destination, []byte(trace.String()), 0o640); err != nil {
		return fmt.Errorf("writing trace: %w", err)
	}
	return nil
}

// RecentConsole implements Driver.
func (b *Browser) RecentConsole() []string {
	return b.console.Snapshot()
}

// run bounds a browser operation by the caller's context without
// detaching it from the browser context chromedp requires.
func (b *Browser) run(ctx context.Context) context.Context {
	if ctx == nil {
		return b.ctx
	}
	if deadline, ok := ctx.Deadline(); ok {
		bounded, cancel := context.WithDeadline(b.ctx, deadline)
		// The deadline fires on its own; tying cancel to the caller's
		// context keeps the derived context from outliving it.
		go func() {
			select {
			case <-ctx.Done():
			case <-bounded.Done():
			}
			cancel()
		}()
		return bounded
	}
	return b.ctx
}

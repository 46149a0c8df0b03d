package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tracewright/tracewright/internal/artifact"
	"github.com/tracewright/tracewright/internal/config"
	"github.com/tracewright/tracewright/internal/driver"
	"github.com/tracewright/tracewright/internal/engine"
	"github.com/tracewright/tracewright/internal/flow"
	"github.com/tracewright/tracewright/internal/history"
	"github.com/tracewright/tracewright/internal/logging"
	"github.com/tracewright/tracewright/internal/output"
)

var (
	flagRunWatch     bool
	flagRunHeadless  bool
	flagRunCapture   bool
	flagRunNoHistory bool
)

// errFlowsFailed marks a run where at least one flow failed. The
// failures themselves are already rendered; the CLI just needs the
// non-zero exit.
var errFlowsFailed = errors.New("one or more flows failed")

func init() {
	runCmd.Flags().BoolVar(&flagRunWatch, "watch", false, "re-run flows when their files change")
	runCmd.Flags().BoolVar(&flagRunHeadless, "headless", true, "run the browser headless")
	runCmd.Flags().BoolVar(&flagRunCapture, "capture", true, "capture diagnostics (screenshots, HTML, trace)")
	runCmd.Flags().BoolVar(&flagRunNoHistory, "no-history", false, "do not save reports to the history database")

	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run <flow.yaml> [flow.yaml...]",
	Short: "Run one or more test flows",
	Long: `Run the given flow files against a browser, instrumenting every
step. Each flow produces a report; failed flows exit non-zero.

With --watch the command keeps running and re-executes a flow whenever
its file changes.

Examples:
  tracewright run flows/booking.yaml
  tracewright run flows/*.yaml --json
  tracewright run flows/booking.yaml --watch --headless=false`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		overrides := make(map[string]any)
		if cmd.Flags().Changed("headless") {
			overrides["browser.headless"] = flagRunHeadless
		}
		if cmd.Flags().Changed("capture") {
			overrides["capture.enabled"] = flagRunCapture
		}
		cfg, err := loadConfig(overrides)
		if err != nil {
			return err
		}
		newLogger(cfg)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if flagRunWatch {
			return watchFlows(ctx, cfg, args)
		}
		return runFlows(ctx, cfg, args)
	},
}

// runFlows executes each flow file once. All flows run even when an
// earlier one fails; the first error is what the command returns.
func runFlows(ctx context.Context, cfg config.Config, paths []string) error {
	var db *history.DB
	if cfg.History.Enabled && !flagRunNoHistory {
		var err error
		db, err = history.Open(cfg.History.DatabasePath)
		if err != nil {
			return fmt.Errorf("opening history: %w", err)
		}
		defer db.Close()
		if n, err := db.Prune(cfg.History.RetentionDays); err != nil {
			logging.Warn("history prune failed", "err", err)
		} else if n > 0 {
			logging.Debug("pruned old reports", "count", n)
		}
	}

	failed := false
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		passed, err := runOneFlow(ctx, cfg, db, path)
		if err != nil {
			return err
		}
		if !passed {
			failed = true
		}
	}
	if failed {
		return errFlowsFailed
	}
	return nil
}

// runOneFlow loads and executes a single flow file with its own browser.
// The returned error covers setup problems; a failing flow returns
// (false, nil) after its report is rendered.
func runOneFlow(ctx context.Context, cfg config.Config, db *history.DB, path string) (bool, error) {
	f, err := flow.Load(path)
	if err != nil {
		return false, err
	}

	flowCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Browser.FlowTimeoutSecs)*time.Second)
	defer cancel()

	browser, err := driver.NewBrowser(flowCtx, driver.Options{
		Headless:          cfg.Browser.Headless,
		WindowWidth:       cfg.Browser.WindowWidth,
		WindowHeight:      cfg.Browser.WindowHeight,
		ConsoleBufferSize: cfg.Capture.ConsoleBuffer,
	})
	if err != nil {
		return false, fmt.Errorf("starting browser: %w", err)
	}
	defer browser.Close()

	// Each run gets a debug-level log file next to its artifacts, so a
	// failed run's full engine activity survives the process.
	runID := uuid.NewString()
	runLogger, err := logging.InitRunLogger(cfg.General.ArtifactDir, runID)
	if err != nil {
		logging.Warn("run log unavailable", "err", err)
		runLogger = logging.GetDefaultLogger()
	}
	logging.Debug("run started", "flow", path, "run_id", runID)

	eng := engine.New(
		artifact.NewWriter(cfg.General.ArtifactDir),
		engine.CaptureConfig{
			Enabled:             cfg.Capture.Enabled,
			ScreenshotOnSuccess: cfg.Capture.ScreenshotOnSuccess,
			Tracing:             cfg.Capture.Tracing,
		},
		runLogger,
	)
	runner := flow.NewRunner(eng, flow.Options{
		StepTimeout: time.Duration(cfg.Browser.StepTimeoutSecs) * time.Second,
		WaitTimeout: time.Duration(cfg.Browser.WaitTimeoutSecs) * time.Second,
	}, runLogger)

	res, err := runner.Run(flowCtx, f, browser)
	if err != nil {
		return false, fmt.Errorf("running flow %s: %w", path, err)
	}

	if db != nil {
		if id, err := db.SaveReport(res.Report); err != nil {
			logging.Warn("saving report failed", "flow", f.Name, "err", err)
		} else {
			logging.Debug("report saved", "flow", f.Name, "id", id)
		}
	}

	if err := output.RenderRunResult(res); err != nil {
		return false, err
	}
	return res.Passed, nil
}

// watchFlows re-runs a flow whenever its file changes, until the context
// is cancelled. Editors often replace files on save, so the watcher
// covers the parent directories and filters events by path.
func watchFlows(ctx context.Context, cfg config.Config, paths []string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	watched := make(map[string]string) // absolute path -> original argument
	dirs := make(map[string]bool)
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", path, err)
		}
		watched[abs] = path
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}

	// Initial run; in watch mode failures do not stop the loop.
	if err := runFlows(ctx, cfg, paths); err != nil && !errors.Is(err, errFlowsFailed) {
		return err
	}
	logging.Info("watching for changes", "flows", len(watched))

	const debounce = 300 * time.Millisecond
	lastRun := make(map[string]time.Time)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			path, ok := watched[abs]
			if !ok {
				continue
			}
			if time.Since(lastRun[abs]) < debounce {
				continue
			}
			lastRun[abs] = time.Now()

			logging.Info("flow changed, re-running", "flow", path)
			if err := runFlows(ctx, cfg, []string{path}); err != nil && !errors.Is(err, errFlowsFailed) {
				logging.Error("re-run failed", "flow", path, "err", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Warn("watch error", "err", err)
		}
	}
}

package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/tracewright/tracewright/internal/engine"
	"github.com/tracewright/tracewright/internal/flow"
	"github.com/tracewright/tracewright/internal/history"
	"github.com/tracewright/tracewright/internal/step"
)

func verdict(passed bool) string {
	if passed {
		return "PASS"
	}
	return "FAIL"
}

// RenderRunResult prints a finished flow run. Text mode goes to stderr,
// JSON mode emits the full result on stdout.
func RenderRunResult(res *flow.Result) error {
	if IsJSON() {
		return JSON(res)
	}
	renderReportText(os.Stderr, &res.Report)
	for _, hit := range res.KnownErrors {
		fmt.Fprintf(os.Stderr, "  known error at %s: matched %q\n", hit.Step, hit.Matched)
	}
	if res.Err != nil {
		fmt.Fprintf(os.Stderr, "  first failure (%s): %v\n", res.FirstFailure, res.Err)
	}
	return nil
}

// RenderReport prints one report.
func RenderReport(r *engine.Report) error {
	if IsJSON() {
		return JSON(r)
	}
	renderReportText(os.Stderr, r)
	return nil
}

// RenderStoredReport prints a report loaded from history.
func RenderStoredReport(r *history.StoredReport) error {
	if IsJSON() {
		return JSON(r)
	}
	fmt.Fprintf(os.Stderr, "report %s (saved %s)\n", r.ID, r.CreatedAt.Local().Format(time.RFC3339))
	renderReportText(os.Stderr, &r.Report)
	return nil
}

func renderReportText(out io.Writer, r *engine.Report) {
	fmt.Fprintf(out, "%s  %s  %d steps (%d failed)  %s\n",
		verdict(r.Passed), r.TestID, r.TotalSteps, r.FailedSteps,
		formatDuration(r.TotalDurationMs))

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "  #\tSTEP\tOUTCOME\tDURATION\tDETAIL")
	for _, s := range r.Steps {
		fmt.Fprintf(w, "  %d\t%s\t%s\t%s\t%s\n",
			s.Seq, s.Name, s.Outcome, formatDuration(s.DurationMs), stepDetail(&s))
	}
	_ = w.Flush()

	if r.TracePath != "" {
		fmt.Fprintf(out, "  trace: %s\n", r.TracePath)
	}
	if r.ManifestPath != "" {
		fmt.Fprintf(out, "  artifacts: %s\n", r.ManifestPath)
	}
}

func stepDetail(s *step.Step) string {
	if s.Error == nil {
		return ""
	}
	detail := s.Error.Message
	if s.Error.Location != "" {
		detail += " at " + s.Error.Location
	}
	return detail
}

// RenderReportList prints history rows, newest first.
func RenderReportList(rows []*history.StoredReport) error {
	if IsJSON() {
		return JSON(rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(os.Stderr, "no reports")
		return nil
	}
	w := tabwriter.NewWriter(os.Stderr, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTEST\tRESULT\tSTEPS\tDURATION\tWHEN")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			shortID(r.ID), r.TestID, verdict(r.Passed), r.TotalSteps,
			formatDuration(r.TotalDurationMs),
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

// Error prints err in the active mode.
func Error(err error, code int) {
	if IsJSON() {
		_ = JSONError(err, code)
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
}

func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

func formatDuration(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	if d < time.Second {
		return fmt.Sprintf("%dms", ms)
	}
	return d.Round(10 * time.Millisecond).String()
}

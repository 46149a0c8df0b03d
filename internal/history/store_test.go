package history

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tracewright/tracewright/internal/engine"
	"github.com/tracewright/tracewright/internal/step"
)

func sampleReport(testID string, passed bool) engine.Report {
	now := time.Now()
	return engine.Report{
		TestID:          testID,
		Passed:          passed,
		StartedAt:       now.Add(-2 * time.Second),
		FinishedAt:      now,
		TotalDurationMs: 2000,
		TotalSteps:      2,
		SucceededSteps:  1,
		FailedSteps:     1,
		Steps: []step.Step{
			{
				Seq:        1,
				Metadata:   step.Metadata{Name: "open", Action: "navigate /", ExpectedResult: "page loads"},
				Outcome:    step.OutcomeSuccess,
				DurationMs: 900,
			},
			{
				Seq:        2,
				Metadata:   step.Metadata{Name: "submit", Action: "click #go"},
				Outcome:    step.OutcomeFailure,
				DurationMs: 1100,
				Error:      &step.ErrorDetail{Message: "element #go not found"},
			},
		},
	}
}

func TestSaveAndGetReport(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) error = %v", err)
	}
	defer db.Close()

	id, err := db.SaveReport(sampleReport("booking-flow", false))
	if err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}
	if id == "" {
		t.Fatal("SaveReport() returned empty id")
	}

	got, err := db.GetReport(id)
	if err != nil {
		t.Fatalf("GetReport() error = %v", err)
	}
	if got.TestID != "booking-flow" {
		t.Fatalf("test_id = %q, want booking-flow", got.TestID)
	}
	if got.Passed {
		t.Fatal("passed should be false")
	}
	if len(got.Steps) != 2 {
		t.Fatalf("got %d steps, want 2", len(got.Steps))
	}
	if got.Steps[1].Error == nil || got.Steps[1].Error.Message != "element #go not found" {
		t.Fatalf("step 2 error = %+v, want message preserved", got.Steps[1].Error)
	}
	if got.Steps[0].Error != nil {
		t.Fatal("successful step should have no error detail")
	}
	if got.CreatedAt.IsZero() {
		t.Fatal("created_at not set")
	}
}

func TestGetReportNotFound(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) error = %v", err)
	}
	defer db.Close()

	_, err = db.GetReport("nope")
	if !errors.Is(err, ErrReportNotFound) {
		t.Fatalf("GetReport() error = %v, want ErrReportNotFound", err)
	}
}

func TestGetReportByPrefix(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) error = %v", err)
	}
	defer db.Close()

	id, err := db.SaveReport(sampleReport("booking-flow", true))
	if err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}

	// The first UUID segment is what listings display.
	got, err := db.GetReport(id[:8])
	if err != nil {
		t.Fatalf("GetReport(prefix) error = %v", err)
	}
	if got.ID != id {
		t.Fatalf("GetReport(prefix) resolved %q, want %q", got.ID, id)
	}
	if len(got.Steps) != 2 {
		t.Fatalf("got %d steps, want 2", len(got.Steps))
	}
}

func TestGetReportAmbiguousPrefix(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) error = %v", err)
	}
	defer db.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, id := range []string{"aaaa1111-x", "aaaa2222-y"} {
		_, err := db.Exec(`
			INSERT INTO reports (
				id, test_id, passed, started_at, finished_at, total_duration_ms,
				total_steps, succeeded_steps, failed_steps, created_at
			) VALUES (?, 'flow', 1, ?, ?, 0, 0, 0, 0, ?)
		`, id, now, now, now)
		if err != nil {
			t.Fatalf("inserting %s: %v", id, err)
		}
	}

	if _, err := db.GetReport("aaaa"); !errors.Is(err, ErrAmbiguousReport) {
		t.Fatalf("GetReport(ambiguous) error = %v, want ErrAmbiguousReport", err)
	}
	// A longer, unique prefix still resolves.
	got, err := db.GetReport("aaaa1111")
	if err != nil {
		t.Fatalf("GetReport(unique prefix) error = %v", err)
	}
	if got.ID != "aaaa1111-x" {
		t.Fatalf("resolved %q, want aaaa1111-x", got.ID)
	}
}

func TestListReportsNewestFirst(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) error = %v", err)
	}
	defer db.Close()

	for i := 0; i < 3; i++ {
		if _, err := db.SaveReport(sampleReport(fmt.Sprintf("flow-%d", i), true)); err != nil {
			t.Fatalf("SaveReport(%d) error = %v", i, err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	got, err := db.ListReports(2)
	if err != nil {
		t.Fatalf("ListReports() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListReports(2) returned %d, want 2", len(got))
	}
	if got[0].TestID != "flow-2" {
		t.Fatalf("first listed = %q, want newest flow-2", got[0].TestID)
	}
	// Listing omits step details.
	if len(got[0].Steps) != 0 {
		t.Fatalf("list rows should not carry steps, got %d", len(got[0].Steps))
	}
}

func TestPruneRemovesOldReports(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) error = %v", err)
	}
	defer db.Close()

	id, err := db.SaveReport(sampleReport("old-flow", true))
	if err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}

	// Age the row past the retention window.
	old := time.Now().UTC().AddDate(0, 0, -40).Format(time.RFC3339Nano)
	if _, err := db.Exec(`UPDATE reports SET created_at = ? WHERE id = ?`, old, id); err != nil {
		t.Fatalf("aging report: %v", err)
	}

	n, err := db.Prune(30)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("Prune() = %d, want 1", n)
	}

	if _, err := db.GetReport(id); !errors.Is(err, ErrReportNotFound) {
		t.Fatalf("GetReport() after prune error = %v, want ErrReportNotFound", err)
	}

	var stepCount int
	if err := db.QueryRow(`SELECT COUNT(*) FROM report_steps WHERE report_id = ?`, id).Scan(&stepCount); err != nil {
		t.Fatalf("counting steps: %v", err)
	}
	if stepCount != 0 {
		t.Fatalf("pruned report still has %d steps", stepCount)
	}
}

func TestPruneZeroRetentionIsNoop(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) error = %v", err)
	}
	defer db.Close()

	if _, err := db.SaveReport(sampleReport("keep", true)); err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}
	n, err := db.Prune(0)
	if err != nil {
		t.Fatalf("Prune(0) error = %v", err)
	}
	if n != 0 {
		t.Fatalf("Prune(0) = %d, want 0", n)
	}
}

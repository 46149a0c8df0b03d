// Package history persists finished session reports to SQLite so runs
// can be listed and inspected after the fact.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/tracewright/tracewright/internal/engine"
	"github.com/tracewright/tracewright/internal/step"
)

// Report lookup errors.
var (
	// ErrReportNotFound is returned when a report is not found.
	ErrReportNotFound = errors.New("report not found")
	// ErrAmbiguousReport is returned when an ID prefix matches more than
	// one report.
	ErrAmbiguousReport = errors.New("report id prefix is ambiguous")
)

// StoredReport is a report row plus its storage metadata.
type StoredReport struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	engine.Report
}

// DB wraps the history database connection.
type DB struct {
	*sql.DB
}

// Open opens (and migrates) the history database at path. Use ":memory:"
// for an ephemeral store.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}
	// modernc/sqlite serializes writers; a single connection avoids
	// SQLITE_BUSY under concurrent report saves.
	conn.SetMaxOpenConns(1)

	db := &DB{conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) migrate() error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS reports (
			id TEXT PRIMARY KEY,
			test_id TEXT NOT NULL,
			passed INTEGER NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			total_duration_ms INTEGER NOT NULL,
			total_steps INTEGER NOT NULL,
			succeeded_steps INTEGER NOT NULL,
			failed_steps INTEGER NOT NULL,
			trace_path TEXT NOT NULL DEFAULT '',
			manifest_path TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS report_steps (
			report_id TEXT NOT NULL REFERENCES reports(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			action TEXT NOT NULL DEFAULT '',
			expected_result TEXT NOT NULL DEFAULT '',
			outcome TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			error_message TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (report_id, seq)
		);
		CREATE INDEX IF NOT EXISTS idx_reports_test_id ON reports(test_id);
		CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at);
	`)
	if err != nil {
		return fmt.Errorf("migrating history db: %w", err)
	}
	return nil
}

// SaveReport persists a finished report and its steps. Returns the
// assigned report ID.
func (db *DB) SaveReport(r engine.Report) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC()

	tx, err := db.Begin()
	if err != nil {
		return "", fmt.Errorf("beginning save: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO reports (
			id, test_id, passed, started_at, finished_at, total_duration_ms,
			total_steps, succeeded_steps, failed_steps, trace_path, manifest_path, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id, r.TestID, boolToInt(r.Passed),
		r.StartedAt.UTC().Format(time.RFC3339Nano),
		r.FinishedAt.UTC().Format(time.RFC3339Nano),
		r.TotalDurationMs, r.TotalSteps, r.SucceededSteps, r.FailedSteps,
		r.TracePath, r.ManifestPath, now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("inserting report: %w", err)
	}

	for _, s := range r.Steps {
		errMsg := ""
		if s.Error != nil {
			errMsg = s.Error.Message
		}
		_, err = tx.Exec(`
			INSERT INTO report_steps (
				report_id, seq, name, description, action, expected_result,
				outcome, duration_ms, error_message
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, id, s.Seq, s.Name, s.Description, s.Action, s.ExpectedResult,
			string(s.Outcome), s.DurationMs, errMsg)
		if err != nil {
			return "", fmt.Errorf("inserting step %d: %w", s.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing save: %w", err)
	}
	return id, nil
}

// GetReport retrieves a stored report and its steps by ID. A unique ID
// prefix works too, so the short IDs shown by listings resolve.
func (db *DB) GetReport(id string) (*StoredReport, error) {
	id, err := db.resolveID(id)
	if err != nil {
		return nil, err
	}

	row := db.QueryRow(`
		SELECT id, test_id, passed, started_at, finished_at, total_duration_ms,
		       total_steps, succeeded_steps, failed_steps, trace_path, manifest_path, created_at
		FROM reports WHERE id = ?
	`, id)

	r, err := scanReport(row)
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(`
		SELECT seq, name, description, action, expected_result, outcome, duration_ms, error_message
		FROM report_steps WHERE report_id = ? ORDER BY seq
	`, id)
	if err != nil {
		return nil, fmt.Errorf("querying steps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s step.Step
		var outcome, errMsg string
		if err := rows.Scan(&s.Seq, &s.Name, &s.Description, &s.Action,
			&s.ExpectedResult, &outcome, &s.DurationMs, &errMsg); err != nil {
			return nil, fmt.Errorf("scanning step: %w", err)
		}
		s.Outcome = step.Outcome(outcome)
		if errMsg != "" {
			s.Error = &step.ErrorDetail{Message: errMsg}
		}
		r.Steps = append(r.Steps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating steps: %w", err)
	}
	return r, nil
}

// resolveID expands a report ID or unique ID prefix to the full ID.
func (db *DB) resolveID(id string) (string, error) {
	if id == "" {
		return "", ErrReportNotFound
	}

	var full string
	err := db.QueryRow(`SELECT id FROM reports WHERE id = ?`, id).Scan(&full)
	if err == nil {
		return full, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("resolving report id: %w", err)
	}

	rows, err := db.Query(`SELECT id FROM reports WHERE id LIKE ? || '%' LIMIT 2`, id)
	if err != nil {
		return "", fmt.Errorf("resolving report id: %w", err)
	}
	defer rows.Close()

	var matches []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return "", fmt.Errorf("resolving report id: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("resolving report id: %w", err)
	}

	switch len(matches) {
	case 0:
		return "", ErrReportNotFound
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w: %s", ErrAmbiguousReport, id)
	}
}

// ListReports returns the most recent reports, newest first, without
// their step details.
func (db *DB) ListReports(limit int) ([]*StoredReport, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`
		SELECT id, test_id, passed, started_at, finished_at, total_duration_ms,
		       total_steps, succeeded_steps, failed_steps, trace_path, manifest_path, created_at
		FROM reports ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying reports: %w", err)
	}
	defer rows.Close()

	var out []*StoredReport
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reports: %w", err)
	}
	return out, nil
}

// Prune deletes reports older than retentionDays. Returns the number of
// reports removed.
func (db *DB) Prune(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays).Format(time.RFC3339Nano)

	// CASCADE is not always enabled; delete steps explicitly first.
	_, err := db.Exec(`
		DELETE FROM report_steps WHERE report_id IN
			(SELECT id FROM reports WHERE created_at < ?)
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning steps: %w", err)
	}

	res, err := db.Exec(`DELETE FROM reports WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning reports: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned reports: %w", err)
	}
	return n, nil
}

// scanner abstracts sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanReport(row scanner) (*StoredReport, error) {
	var r StoredReport
	var passed int
	var startedAt, finishedAt, createdAt string

	err := row.Scan(&r.ID, &r.TestID, &passed, &startedAt, &finishedAt,
		&r.TotalDurationMs, &r.TotalSteps, &r.SucceededSteps, &r.FailedSteps,
		&r.TracePath, &r.ManifestPath, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("scanning report: %w", err)
	}

	r.Passed = passed != 0
	if r.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return nil, fmt.Errorf("parsing started_at: %w", err)
	}
	if r.FinishedAt, err = time.Parse(time.RFC3339Nano, finishedAt); err != nil {
		return nil, fmt.Errorf("parsing finished_at: %w", err)
	}
	if r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

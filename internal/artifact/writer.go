// Package artifact persists per-test diagnostic files (screenshots, HTML
// snapshots, trace archives) under a common root with deterministic names.
//
// Every artifact the engine produces goes through this package so there is
// exactly one creation path and one naming scheme.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
)

// Label identifies the role of a step-scoped artifact.
type Label string

// Step artifact labels.
const (
	LabelBefore Label = "before"
	LabelAfter  Label = "after"
	LabelError  Label = "error"
	LabelHTML   Label = "html"
)

// TraceFilename is the session-scoped trace archive name.
const TraceFilename = "trace.json"

// ext maps a label to its file extension.
func (l Label) ext() string {
	if l == LabelHTML {
		return "html"
	}
	return "png"
}

// Writer persists artifacts for test sessions. Paths are namespaced per
// test identifier, so concurrent sessions never collide.
type Writer struct {
	root string
}

// NewWriter returns a writer rooted at dir. The directory tree is created
// lazily on first write.
func NewWriter(dir string) *Writer {
	return &Writer{root: dir}
}

// Root returns the artifact root directory.
func (w *Writer) Root() string {
	return w.root
}

// SessionDir returns the directory holding all artifacts for a test.
func (w *Writer) SessionDir(testID string) string {
	return filepath.Join(w.root, sanitize(testID))
}

// StepPath returns the deterministic path for a step-scoped artifact.
// Artifacts for a given step are discoverable from its sequence number
// and label alone, without a separate index.
func (w *Writer) StepPath(testID string, seq int, label Label) string {
	name := fmt.Sprintf("step-%04d-%s.%s", seq, label, label.ext())
	return filepath.Join(w.SessionDir(testID), name)
}

// TracePath returns the destination for the session's trace archive.
func (w *Writer) TracePath(testID string) string {
	return filepath.Join(w.SessionDir(testID), TraceFilename)
}

// WriteStep persists a step-scoped artifact and returns its path.
// Directory creation is idempotent; writing the same step/label twice
// overwrites the earlier file.
func (w *Writer) WriteStep(testID string, seq int, label Label, data []byte) (string, error) {
	path := w.StepPath(testID, seq, label)
	if err := w.write(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// WriteSession persists a session-scoped artifact under the given name.
func (w *Writer) WriteSession(testID, name string, data []byte) (string, error) {
	path := filepath.Join(w.SessionDir(testID), filepath.Base(name))
	if err := w.write(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// EnsureSessionDir creates the session directory if it does not exist.
// Used before handing a destination path to the driver (e.g. tracing).
func (w *Writer) EnsureSessionDir(testID string) error {
	if err := os.MkdirAll(w.SessionDir(testID), 0o750); err != nil {
		return fmt.Errorf("creating artifact dir: %w", err)
	}
	return nil
}

func (w *Writer) write(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating artifact dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return fmt.Errorf("writing artifact: %w", err)
	}
	return nil
}

// sanitize makes a test identifier safe to use as a directory name.
func sanitize(testID string) string {
	out := make([]rune, 0, len(testID))
	for _, r := range testID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		case r == '-' || r == '_' || r == '.':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "_"
	}
	return string(out)
}

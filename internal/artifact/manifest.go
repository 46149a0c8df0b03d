package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const (
	// ManifestSchemaVersion is the manifest schema version.
	ManifestSchemaVersion = 1

	// ManifestFilename is the canonical manifest name at the root of a
	// session directory.
	ManifestFilename = "manifest.json"
)

// Manifest is a versioned, machine-readable index of a session
// directory's artifacts. File paths are relative to the session dir.
type Manifest struct {
	SchemaVersion int       `json:"schema_version"`
	TestID        string    `json:"test_id"`
	GeneratedAt   time.Time `json:"generated_at"`
	Files         []File    `json:"files"`
}

// File describes a single artifact in the manifest.
type File struct {
	Path      string `json:"path"`
	SHA256    string `json:"sha256"`
	SizeBytes int64  `json:"size_bytes"`
}

// SHA256Hex returns the hex-encoded SHA-256 of data.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// WriteManifest indexes the session directory's current contents and
// writes manifest.json into it. The manifest file itself is excluded
// from the index. Returns the manifest path.
func (w *Writer) WriteManifest(testID string) (string, error) {
	dir := w.SessionDir(testID)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("reading session dir: %w", err)
	}

	m := Manifest{
		SchemaVersion: ManifestSchemaVersion,
		TestID:        testID,
		GeneratedAt:   time.Now().UTC(),
		Files:         []File{},
	}
	for _, e := range entries {
		if e.IsDir() || e.Name() == ManifestFilename {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return "", fmt.Errorf("reading artifact %s: %w", e.Name(), err)
		}
		m.Files = append(m.Files, File{
			Path:      e.Name(),
			SHA256:    SHA256Hex(data),
			SizeBytes: int64(len(data)),
		})
	}
	sort.Slice(m.Files, func(i, j int) bool { return m.Files[i].Path < m.Files[j].Path })

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding manifest: %w", err)
	}

	path := filepath.Join(dir, ManifestFilename)
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return "", fmt.Errorf("writing manifest: %w", err)
	}
	return path, nil
}

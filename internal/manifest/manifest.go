package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileName is the manifest's location inside the output directory.
const FileName = ".pydocgen-manifest.json"

// ErrCorrupt indicates the persisted manifest could not be parsed. Callers
// recover by treating every source file as stale (full rebuild) instead of
// aborting.
var ErrCorrupt = errors.New("manifest corrupt")

// Entry records the last successful generation state for one source file.
type Entry struct {
	// Hash is the source content hash at the time of generation.
	Hash string `json:"hash"`
	// ModTime is the source modification time at the time of generation.
	ModTime time.Time `json:"mod_time"`
	// Artifacts lists output paths relative to the output directory,
	// markdown first, then any diagram.
	Artifacts []string `json:"artifacts"`
	// LastSuccess is when the artifacts were last generated successfully.
	LastSuccess time.Time `json:"last_success"`
}

// Manifest is the persisted record of the last successful build, keyed by
// source-relative path. It is loaded once at run start and rewritten
// atomically at the end of a successful run.
type Manifest struct {
	RunID        string           `json:"run_id,omitempty"`
	GeneratedAt  time.Time        `json:"generated_at,omitempty"`
	ToolVersion  string           `json:"tool_version,omitempty"`
	SourceCommit string           `json:"source_commit,omitempty"`
	Entries      map[string]Entry `json:"entries"`
}

// New returns an empty manifest.
func New() *Manifest {
	return &Manifest{Entries: make(map[string]Entry)}
}

// Load reads the manifest at path. A missing file yields an empty manifest
// and no error (first run or hand-deleted manifest). A malformed file yields
// an empty manifest and an error wrapping ErrCorrupt so the caller can log
// the recovery.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return New(), fmt.Errorf("%w: read %s: %v", ErrCorrupt, path, err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return New(), fmt.Errorf("%w: parse %s: %v", ErrCorrupt, path, err)
	}
	if m.Entries == nil {
		m.Entries = make(map[string]Entry)
	}
	return &m, nil
}

// Save writes the manifest atomically: marshal to a temp file in the target
// directory, then rename over the destination. A crash mid-write never leaves
// a truncated manifest behind.
func (m *Manifest) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create manifest directory: %w", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".pydocgen-manifest-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp manifest: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp manifest: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp manifest: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename manifest into place: %w", err)
	}
	return nil
}

// Record stores a successful generation for a source file.
func (m *Manifest) Record(relPath, hash string, modTime time.Time, artifacts []string) {
	m.Entries[relPath] = Entry{
		Hash:        hash,
		ModTime:     modTime,
		Artifacts:   artifacts,
		LastSuccess: time.Now(),
	}
}

// Prune removes entries whose source file no longer exists. keep holds the
// current set of source-relative paths. Removed entries are returned so the
// caller can report deleted-source cleanup.
func (m *Manifest) Prune(keep map[string]struct{}) []string {
	var removed []string
	for rel := range m.Entries {
		if _, ok := keep[rel]; !ok {
			delete(m.Entries, rel)
			removed = append(removed, rel)
		}
	}
	return removed
}

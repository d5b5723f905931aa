package detect

import (
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/pydocgen/internal/manifest"
	"git.home.luguber.info/inful/pydocgen/internal/scan"
)

// Reason explains why a file was classified as stale.
type Reason string

const (
	ReasonNew             Reason = "new"
	ReasonModified        Reason = "modified"
	ReasonMissingArtifact Reason = "missing-artifact"
)

// StaleFile pairs a source file with its staleness reason.
type StaleFile struct {
	File   scan.SourceFile
	Reason Reason
}

// Partition is the result of comparing the current source set against the
// prior manifest.
type Partition struct {
	Stale     []StaleFile
	Unchanged []scan.SourceFile
	// Deleted lists manifest entries whose source file no longer exists.
	Deleted []string
}

// Detector classifies source files as stale or unchanged.
type Detector struct {
	outputDir string
	logger    *slog.Logger
}

// NewDetector creates a detector. outputDir is needed to verify that recorded
// artifacts still exist on disk.
func NewDetector(outputDir string) *Detector {
	return &Detector{outputDir: outputDir, logger: slog.Default()}
}

// WithLogger sets a custom logger.
func (d *Detector) WithLogger(logger *slog.Logger) *Detector {
	d.logger = logger
	return d
}

// Partition compares files against the manifest. A file is stale when it has
// no manifest entry, its content hash changed, or one of its recorded
// artifacts is missing from disk. The artifact check makes the detector
// self-healing after partial failures or manual deletion of outputs.
func (d *Detector) Partition(files []scan.SourceFile, m *manifest.Manifest) Partition {
	var p Partition
	current := make(map[string]struct{}, len(files))

	for _, f := range files {
		current[f.RelPath] = struct{}{}

		entry, ok := m.Entries[f.RelPath]
		switch {
		case !ok:
			p.Stale = append(p.Stale, StaleFile{File: f, Reason: ReasonNew})
		case entry.Hash != f.Hash:
			p.Stale = append(p.Stale, StaleFile{File: f, Reason: ReasonModified})
		case d.missingArtifact(entry) != "":
			d.logger.Debug("Recorded artifact missing, regenerating",
				"source", f.RelPath,
				"artifact", d.missingArtifact(entry))
			p.Stale = append(p.Stale, StaleFile{File: f, Reason: ReasonMissingArtifact})
		default:
			p.Unchanged = append(p.Unchanged, f)
		}
	}

	for rel := range m.Entries {
		if _, ok := current[rel]; !ok {
			p.Deleted = append(p.Deleted, rel)
		}
	}

	return p
}

// missingArtifact returns the first recorded artifact path that no longer
// exists on disk, or "" when all are present.
func (d *Detector) missingArtifact(entry manifest.Entry) string {
	for _, rel := range entry.Artifacts {
		if _, err := os.Stat(filepath.Join(d.outputDir, filepath.FromSlash(rel))); err != nil {
			return rel
		}
	}
	return ""
}

package detect

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pydocgen/internal/manifest"
	"git.home.luguber.info/inful/pydocgen/internal/scan"
)

func source(rel, hash string) scan.SourceFile {
	return scan.SourceFile{
		RelPath: rel,
		Module:  scan.ModuleName(rel),
		Hash:    hash,
		ModTime: time.Now(),
	}
}

func writeArtifact(t *testing.T, outputDir, rel string) {
	t.Helper()
	path := filepath.Join(outputDir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("# doc\n"), 0o644))
}

func TestPartitionNewFileIsStale(t *testing.T) {
	d := NewDetector(t.TempDir())

	p := d.Partition([]scan.SourceFile{source("a.py", "h1")}, manifest.New())
	require.Len(t, p.Stale, 1)
	assert.Equal(t, ReasonNew, p.Stale[0].Reason)
	assert.Empty(t, p.Unchanged)
}

func TestPartitionModifiedFileIsStale(t *testing.T) {
	out := t.TempDir()
	writeArtifact(t, out, "a.md")

	m := manifest.New()
	m.Record("a.py", "old-hash", time.Now(), []string{"a.md"})

	p := NewDetector(out).Partition([]scan.SourceFile{source("a.py", "new-hash")}, m)
	require.Len(t, p.Stale, 1)
	assert.Equal(t, ReasonModified, p.Stale[0].Reason)
}

func TestPartitionMissingArtifactIsStale(t *testing.T) {
	out := t.TempDir()
	// a.md recorded but never written: simulates manual deletion.
	m := manifest.New()
	m.Record("a.py", "h1", time.Now(), []string{"a.md"})

	p := NewDetector(out).Partition([]scan.SourceFile{source("a.py", "h1")}, m)
	require.Len(t, p.Stale, 1)
	assert.Equal(t, ReasonMissingArtifact, p.Stale[0].Reason)
}

func TestPartitionUnchanged(t *testing.T) {
	out := t.TempDir()
	writeArtifact(t, out, "pkg/util.md")
	writeArtifact(t, out, "uml/classes_pkg_util.png")

	m := manifest.New()
	m.Record("pkg/util.py", "h1", time.Now(), []string{"pkg/util.md", "uml/classes_pkg_util.png"})

	p := NewDetector(out).Partition([]scan.SourceFile{source("pkg/util.py", "h1")}, m)
	assert.Empty(t, p.Stale)
	require.Len(t, p.Unchanged, 1)
	assert.Equal(t, "pkg/util.py", p.Unchanged[0].RelPath)
}

func TestPartitionDeletedSource(t *testing.T) {
	out := t.TempDir()
	writeArtifact(t, out, "a.md")

	m := manifest.New()
	m.Record("a.py", "h1", time.Now(), []string{"a.md"})
	m.Record("gone.py", "h2", time.Now(), []string{"gone.md"})

	p := NewDetector(out).Partition([]scan.SourceFile{source("a.py", "h1")}, m)
	assert.Equal(t, []string{"gone.py"}, p.Deleted)
	assert.Empty(t, p.Stale)
	assert.Len(t, p.Unchanged, 1)
}

func TestPartitionMixed(t *testing.T) {
	out := t.TempDir()
	writeArtifact(t, out, "stable.md")

	m := manifest.New()
	m.Record("stable.py", "same", time.Now(), []string{"stable.md"})
	m.Record("changed.py", "before", time.Now(), []string{"changed.md"})

	writeArtifact(t, out, "changed.md")

	files := []scan.SourceFile{
		source("stable.py", "same"),
		source("changed.py", "after"),
		source("brand_new.py", "h"),
	}

	p := NewDetector(out).Partition(files, m)
	assert.Len(t, p.Stale, 2)
	assert.Len(t, p.Unchanged, 1)
	assert.Empty(t, p.Deleted)
}

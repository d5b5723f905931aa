package manifest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsEmpty(t *testing.T) {
	m, err := Load(filepath.Join(t.TempDir(), FileName))
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Empty(t, m.Entries)
}

func TestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)

	m := New()
	m.RunID = "run-1"
	m.ToolVersion = "0.3.0"
	m.SourceCommit = "abc123"
	m.Record("pkg/util.py", "deadbeef", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		[]string{"pkg/util.md", "uml/classes_pkg_util.png"})
	require.NoError(t, m.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "run-1", loaded.RunID)
	assert.Equal(t, "abc123", loaded.SourceCommit)

	entry, ok := loaded.Entries["pkg/util.py"]
	require.True(t, ok)
	assert.Equal(t, "deadbeef", entry.Hash)
	assert.Equal(t, []string{"pkg/util.md", "uml/classes_pkg_util.png"}, entry.Artifacts)
	assert.False(t, entry.LastSuccess.IsZero())
}

func TestLoadCorruptReturnsEmptyAndError(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	m, err := Load(path)
	require.ErrorIs(t, err, ErrCorrupt)
	require.NotNil(t, m)
	assert.Empty(t, m.Entries)
}

func TestLoadTruncatedToZeroBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	m, err := Load(path)
	require.ErrorIs(t, err, ErrCorrupt)
	assert.Empty(t, m.Entries)
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)

	m := New()
	m.Record("a.py", "h1", time.Now(), []string{"a.md"})
	require.NoError(t, m.Save(path))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, FileName, entries[0].Name())
}

func TestSaveOverwritesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)

	first := New()
	first.Record("a.py", "h1", time.Now(), []string{"a.md"})
	require.NoError(t, first.Save(path))

	second := New()
	second.Record("b.py", "h2", time.Now(), []string{"b.md"})
	require.NoError(t, second.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	_, hasA := loaded.Entries["a.py"]
	_, hasB := loaded.Entries["b.py"]
	assert.False(t, hasA)
	assert.True(t, hasB)
}

func TestPruneRemovesDeletedSources(t *testing.T) {
	m := New()
	m.Record("a.py", "h1", time.Now(), []string{"a.md"})
	m.Record("b.py", "h2", time.Now(), []string{"b.md"})
	m.Record("gone.py", "h3", time.Now(), []string{"gone.md"})

	removed := m.Prune(map[string]struct{}{"a.py": {}, "b.py": {}})
	assert.Equal(t, []string{"gone.py"}, removed)
	assert.Len(t, m.Entries, 2)
}

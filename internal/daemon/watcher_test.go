package daemon

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelevantFiltersNonPython(t *testing.T) {
	assert.True(t, relevant(fsnotify.Event{Name: "pkg/util.py", Op: fsnotify.Write}))
	assert.True(t, relevant(fsnotify.Event{Name: "a.py", Op: fsnotify.Create}))
	assert.True(t, relevant(fsnotify.Event{Name: "a.py", Op: fsnotify.Remove}))
	assert.False(t, relevant(fsnotify.Event{Name: "notes.md", Op: fsnotify.Write}))
	assert.False(t, relevant(fsnotify.Event{Name: "a.py", Op: fsnotify.Chmod}))
	assert.False(t, relevant(fsnotify.Event{Name: "a.pyc", Op: fsnotify.Write}))
}

func TestSourceWatcherDetectsWrites(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "pkg"), 0o755))

	sw, err := NewSourceWatcher(root, slog.Default())
	require.NoError(t, err)
	defer sw.Close()

	changes := make(chan string, 16)
	go sw.Watch(func(path string) { changes <- path })

	require.NoError(t, os.WriteFile(filepath.Join(root, "pkg", "mod.py"), []byte("x = 1\n"), 0o644))

	select {
	case path := <-changes:
		assert.Equal(t, "mod.py", filepath.Base(path))
	case <-time.After(2 * time.Second):
		t.Fatal("expected a change notification")
	}
}

func TestSourceWatcherIgnoresOtherFiles(t *testing.T) {
	root := t.TempDir()

	sw, err := NewSourceWatcher(root, slog.Default())
	require.NoError(t, err)
	defer sw.Close()

	changes := make(chan string, 16)
	go sw.Watch(func(path string) { changes <- path })

	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("hi\n"), 0o644))

	select {
	case path := <-changes:
		t.Fatalf("unexpected notification for %s", path)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestSourceWatcherSkipsExcludedDirs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "__pycache__"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".venv", "lib"), 0o755))

	sw, err := NewSourceWatcher(root, slog.Default())
	require.NoError(t, err)
	defer sw.Close()

	changes := make(chan string, 16)
	go sw.Watch(func(path string) { changes <- path })

	require.NoError(t, os.WriteFile(filepath.Join(root, "__pycache__", "mod.py"), []byte("x\n"), 0o644))

	select {
	case path := <-changes:
		t.Fatalf("unexpected notification for %s", path)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestSourceWatcherMissingRoot(t *testing.T) {
	_, err := NewSourceWatcher(filepath.Join(t.TempDir(), "absent"), slog.Default())
	require.Error(t, err)
}

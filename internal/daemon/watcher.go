package daemon

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// skipDirs are directory names never watched. They mirror the scanner's
// default excludes plus VCS metadata.
var skipDirs = map[string]struct{}{
	"__pycache__":  {},
	".git":         {},
	".venv":        {},
	"venv":         {},
	"env":          {},
	"node_modules": {},
}

// SourceWatcher watches a source tree recursively for Python file changes.
// fsnotify watches are per directory, so new subdirectories are added as they
// appear.
type SourceWatcher struct {
	root    string
	watcher *fsnotify.Watcher
	logger  *slog.Logger
}

// NewSourceWatcher creates a watcher rooted at root and registers every
// existing subdirectory.
func NewSourceWatcher(root string, logger *slog.Logger) (*SourceWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		w.Close()
		return nil, fmt.Errorf("resolve watch root: %w", err)
	}

	sw := &SourceWatcher{root: absRoot, watcher: w, logger: logger}
	if err := sw.addTree(absRoot); err != nil {
		w.Close()
		return nil, err
	}
	return sw, nil
}

// Close releases the underlying watcher.
func (sw *SourceWatcher) Close() error { return sw.watcher.Close() }

// Errors exposes watcher errors for logging by the caller.
func (sw *SourceWatcher) Errors() <-chan error { return sw.watcher.Errors }

// Watch forwards relevant events to onChange until the events channel closes.
// Directory creation extends the watch set instead of notifying.
func (sw *SourceWatcher) Watch(onChange func(path string)) {
	for event := range sw.watcher.Events {
		if event.Op.Has(fsnotify.Create) {
			if sw.maybeAddDir(event.Name) {
				continue
			}
		}
		if !relevant(event) {
			continue
		}
		sw.logger.Debug("Source change detected", "path", event.Name, "op", event.Op.String())
		onChange(event.Name)
	}
}

// relevant reports whether an event concerns a Python source file.
func relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	return strings.HasSuffix(event.Name, ".py")
}

// maybeAddDir registers a newly created directory (and any children) and
// reports whether the path was a directory.
func (sw *SourceWatcher) maybeAddDir(path string) bool {
	if _, skip := skipDirs[filepath.Base(path)]; skip {
		return true
	}
	fi, err := os.Stat(path)
	if err != nil || !fi.IsDir() {
		return false
	}
	if err := sw.addTree(path); err != nil {
		sw.logger.Warn("Failed to watch new directory", "path", path, "error", err)
	}
	return true
}

func (sw *SourceWatcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if _, skip := skipDirs[d.Name()]; skip && path != root {
			return filepath.SkipDir
		}
		if err := sw.watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

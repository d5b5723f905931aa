package scan

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/zeebo/xxh3"
)

// ErrRootNotFound indicates the configured source root does not exist or is
// not a directory. Callers treat this as a configuration error (exit code 2).
var ErrRootNotFound = errors.New("source root not found")

// SourceFile represents one Python source file discovered under the root.
// Identity is the slash-normalized path relative to the root.
type SourceFile struct {
	// RelPath is the slash-separated path relative to the source root.
	RelPath string
	// AbsPath is the absolute filesystem path.
	AbsPath string
	// Module is the dotted importable module name derived from RelPath.
	Module string
	// Size is the file size in bytes.
	Size int64
	// ModTime is the file's last modification time.
	ModTime time.Time
	// Hash is the xxh3-128 hex digest of the file contents.
	Hash string
}

// DiagramBase returns the module name with dots replaced by underscores,
// matching the naming scheme pyreverse uses for its output files.
func (f SourceFile) DiagramBase() string {
	return strings.ReplaceAll(f.Module, ".", "_")
}

// Scanner walks a source tree applying include and exclude glob patterns.
type Scanner struct {
	root    string
	include []string
	exclude []string
	logger  *slog.Logger
}

// DefaultInclude is applied when no include patterns are configured.
var DefaultInclude = []string{"**/*.py"}

// DefaultExclude filters out tests, caches and virtualenvs.
var DefaultExclude = []string{
	"**/test_*.py",
	"**/*_test.py",
	"**/__pycache__/**",
	"**/tests/**",
	"**/venv/**",
	"**/env/**",
	"**/.venv/**",
}

// NewScanner creates a scanner for the given root. Empty pattern lists fall
// back to the defaults.
func NewScanner(root string, include, exclude []string) *Scanner {
	if len(include) == 0 {
		include = DefaultInclude
	}
	if len(exclude) == 0 {
		exclude = DefaultExclude
	}
	return &Scanner{
		root:    root,
		include: include,
		exclude: exclude,
		logger:  slog.Default(),
	}
}

// WithLogger sets a custom logger.
func (s *Scanner) WithLogger(logger *slog.Logger) *Scanner {
	s.logger = logger
	return s
}

// Scan walks the root and returns matching files sorted by relative path.
// Exclude patterns take precedence over include patterns.
func (s *Scanner) Scan() ([]SourceFile, error) {
	info, err := os.Stat(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRootNotFound, s.root)
		}
		return nil, fmt.Errorf("stat source root %s: %w", s.root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrRootNotFound, s.root)
	}

	absRoot, err := filepath.Abs(s.root)
	if err != nil {
		return nil, fmt.Errorf("resolve source root: %w", err)
	}

	var files []SourceFile
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walk %s: %w", path, err)
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return fmt.Errorf("relativize %s: %w", path, err)
		}
		rel = filepath.ToSlash(rel)

		if !s.matches(rel) {
			return nil
		}

		sf, err := s.describe(path, rel, d)
		if err != nil {
			return err
		}
		files = append(files, sf)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })

	s.logger.Debug("Source scan completed",
		"root", absRoot,
		"files", len(files),
		"include", s.include,
		"exclude", s.exclude)
	return files, nil
}

// matches reports whether the relative path matches an include pattern and no
// exclude pattern.
func (s *Scanner) matches(rel string) bool {
	for _, pattern := range s.exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return false
		}
	}
	for _, pattern := range s.include {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func (s *Scanner) describe(path, rel string, d fs.DirEntry) (SourceFile, error) {
	info, err := d.Info()
	if err != nil {
		return SourceFile{}, fmt.Errorf("stat %s: %w", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return SourceFile{}, fmt.Errorf("read %s: %w", path, err)
	}
	return SourceFile{
		RelPath: rel,
		AbsPath: path,
		Module:  ModuleName(rel),
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Hash:    HashBytes(data),
	}, nil
}

// ModuleName converts a relative source path into a dotted module name,
// e.g. "pkg/util.py" becomes "pkg.util".
func ModuleName(rel string) string {
	rel = strings.TrimSuffix(filepath.ToSlash(rel), ".py")
	return strings.ReplaceAll(rel, "/", ".")
}

// HashBytes returns the xxh3-128 hex digest of data.
func HashBytes(data []byte) string {
	h := xxh3.Hash128(data)
	return fmt.Sprintf("%016x%016x", h.Hi, h.Lo)
}

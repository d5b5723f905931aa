package render

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/pydocgen/internal/scan"
)

// DefaultTimeout bounds a single pyreverse invocation.
const DefaultTimeout = 60 * time.Second

// Pyreverse shells out to the pyreverse diagram generator. Output naming
// follows the tool's convention: classes_<project>.png in the target
// directory.
type Pyreverse struct {
	bin     string
	timeout time.Duration
	logger  *slog.Logger
}

// NewPyreverse creates the renderer. bin defaults to "pyreverse".
func NewPyreverse(bin string, timeout time.Duration) *Pyreverse {
	if bin == "" {
		bin = "pyreverse"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Pyreverse{bin: bin, timeout: timeout, logger: slog.Default()}
}

// WithLogger sets a custom logger.
func (r *Pyreverse) WithLogger(logger *slog.Logger) *Pyreverse {
	r.logger = logger
	return r
}

func (r *Pyreverse) Name() string { return "pyreverse" }

// Render invokes pyreverse for one module. Success requires both a zero exit
// status and the expected image on disk, since the tool exits zero for
// modules without classes while producing nothing.
func (r *Pyreverse) Render(ctx context.Context, file scan.SourceFile, outDir string) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create diagram directory: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	project := file.DiagramBase()
	cmd := exec.CommandContext(ctx, r.bin,
		"-o", "png",
		"-p", project,
		"-d", outDir,
		"--colorized",
		"--module-names", "y",
		file.AbsPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	r.logger.Debug("pyreverse finished",
		"module", file.Module,
		"duration", time.Since(start),
		"error", err)

	if ctx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("pyreverse timed out after %s for %s", r.timeout, file.Module)
	}
	if err != nil {
		return "", fmt.Errorf("pyreverse failed for %s: %w: %s", file.Module, err, firstLine(stderr.Bytes()))
	}

	name := fmt.Sprintf("classes_%s.png", project)
	if _, statErr := os.Stat(filepath.Join(outDir, name)); statErr != nil {
		return "", fmt.Errorf("pyreverse produced no diagram for %s", file.Module)
	}
	return name, nil
}

func firstLine(b []byte) string {
	b = bytes.TrimSpace(b)
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

var _ Renderer = (*Pyreverse)(nil)

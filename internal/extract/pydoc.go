package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/pydocgen/internal/scan"
)

// DefaultToolTimeout bounds a single external tool invocation.
const DefaultToolTimeout = 60 * time.Second

// PydocMarkdown shells out to the pydoc-markdown tool. For each module it
// emits a one-off YAML configuration naming the module and search path, runs
// the tool, and captures stdout as the markdown body.
type PydocMarkdown struct {
	bin        string
	searchPath string
	timeout    time.Duration
	logger     *slog.Logger
}

// NewPydocMarkdown creates the primary extractor. bin defaults to
// "pydoc-markdown"; searchPath is the source root handed to the tool's
// python loader.
func NewPydocMarkdown(bin, searchPath string, timeout time.Duration) *PydocMarkdown {
	if bin == "" {
		bin = "pydoc-markdown"
	}
	if timeout <= 0 {
		timeout = DefaultToolTimeout
	}
	return &PydocMarkdown{
		bin:        bin,
		searchPath: searchPath,
		timeout:    timeout,
		logger:     slog.Default(),
	}
}

// WithLogger sets a custom logger.
func (e *PydocMarkdown) WithLogger(logger *slog.Logger) *PydocMarkdown {
	e.logger = logger
	return e
}

func (e *PydocMarkdown) Name() string { return "pydoc-markdown" }

// Extract runs pydoc-markdown for one module. A nonzero exit, timeout, or
// empty stdout is an error; the caller falls back to the introspector.
func (e *PydocMarkdown) Extract(ctx context.Context, file scan.SourceFile) ([]byte, error) {
	cfgPath, err := e.writeToolConfig(file)
	if err != nil {
		return nil, err
	}
	defer os.Remove(cfgPath)

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.bin, "-c", cfgPath, "--quiet")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	e.logger.Debug("pydoc-markdown finished",
		"module", file.Module,
		"duration", time.Since(start),
		"error", err)

	if ctx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("pydoc-markdown timed out after %s for %s", e.timeout, file.Module)
	}
	if err != nil {
		return nil, fmt.Errorf("pydoc-markdown failed for %s: %w: %s", file.Module, err, firstLine(stderr.Bytes()))
	}
	if len(bytes.TrimSpace(stdout.Bytes())) == 0 {
		return nil, fmt.Errorf("%w: module %s", ErrEmptyOutput, file.Module)
	}
	return stdout.Bytes(), nil
}

// ToolConfig mirrors the pydoc-markdown YAML configuration surface this tool
// drives: a python loader scoped to one module, a processor chain, and a
// markdown renderer with fixed header levels.
type ToolConfig struct {
	Loaders    []map[string]any `yaml:"loaders"`
	Processors []map[string]any `yaml:"processors"`
	Renderer   map[string]any   `yaml:"renderer"`
}

// BuildToolConfig assembles the per-module tool configuration.
func BuildToolConfig(module, searchPath string) ToolConfig {
	return ToolConfig{
		Loaders: []map[string]any{{
			"type":        "python",
			"search_path": []string{searchPath},
			"modules":     []string{module},
		}},
		Processors: []map[string]any{
			{"type": "filter", "skip_empty_modules": true, "documented_only": false},
			{"type": "smart", "show_module_path": true},
			{"type": "crossref"},
		},
		Renderer: map[string]any{
			"type":                    "markdown",
			"render_module_header":    true,
			"render_toc":              true,
			"code_block_style":        "fenced",
			"use_fixed_header_levels": true,
			"header_level_by_type": map[string]int{
				"Module":   1,
				"Class":    2,
				"Method":   3,
				"Function": 3,
				"Data":     3,
			},
		},
	}
}

func (e *PydocMarkdown) writeToolConfig(file scan.SourceFile) (string, error) {
	data, err := yaml.Marshal(BuildToolConfig(file.Module, e.searchPath))
	if err != nil {
		return "", fmt.Errorf("marshal pydoc-markdown config: %w", err)
	}

	f, err := os.CreateTemp("", "pydoc-markdown-*.yml")
	if err != nil {
		return "", fmt.Errorf("create pydoc-markdown config: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write pydoc-markdown config: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("close pydoc-markdown config: %w", err)
	}
	return f.Name(), nil
}

func firstLine(b []byte) string {
	b = bytes.TrimSpace(b)
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

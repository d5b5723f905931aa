package generate

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/pydocgen/internal/extract"
	"git.home.luguber.info/inful/pydocgen/internal/render"
	"git.home.luguber.info/inful/pydocgen/internal/scan"
)

// Status is the generation outcome for one source file.
type Status string

const (
	StatusGenerated Status = "generated"
	StatusFailed    Status = "failed"
)

// Artifact is the result of generating documentation for one source file.
// Even failed artifacts carry a written markdown path: the fallback extractor
// guarantees a document per module.
type Artifact struct {
	Source scan.SourceFile
	// MarkdownPath is relative to the output directory, mirroring the
	// source hierarchy (pkg/util.py -> pkg/util.md).
	MarkdownPath string
	// DiagramPath is relative to the output directory; empty when no
	// diagram was produced.
	DiagramPath string
	Status      Status
	// Fallback is true when the introspecting extractor produced the body.
	Fallback bool
	// Warnings holds non-fatal problems (diagram failures).
	Warnings []string
	// Err is the primary extractor failure when Status is StatusFailed.
	Err error
}

// Paths returns the artifact paths for manifest recording, markdown first.
func (a Artifact) Paths() []string {
	paths := []string{a.MarkdownPath}
	if a.DiagramPath != "" {
		paths = append(paths, a.DiagramPath)
	}
	return paths
}

// Generator produces markdown and diagram artifacts for stale source files.
// Failure isolation is per file: one module's extractor or renderer failure
// never blocks generation of the others.
type Generator struct {
	primary    extract.Extractor
	fallback   extract.Extractor
	renderer   render.Renderer // nil when diagram generation is disabled
	outputDir  string
	diagramDir string // relative to outputDir
	logger     *slog.Logger
}

// NewGenerator wires the generator. renderer may be nil to disable diagrams;
// diagramDir defaults to "uml".
func NewGenerator(primary extract.Extractor, renderer render.Renderer, outputDir, diagramDir string) *Generator {
	if diagramDir == "" {
		diagramDir = "uml"
	}
	return &Generator{
		primary:    primary,
		fallback:   extract.NewIntrospector(),
		renderer:   renderer,
		outputDir:  outputDir,
		diagramDir: diagramDir,
		logger:     slog.Default(),
	}
}

// WithLogger sets a custom logger.
func (g *Generator) WithLogger(logger *slog.Logger) *Generator {
	g.logger = logger
	return g
}

// WithFallback overrides the fallback extractor (used in tests).
func (g *Generator) WithFallback(f extract.Extractor) *Generator {
	g.fallback = f
	return g
}

// Generate produces the artifacts for one source file. The returned Artifact
// always has a markdown file on disk unless even the fallback could not run
// (unreadable source), in which case MarkdownPath is empty and Status failed.
func (g *Generator) Generate(ctx context.Context, file scan.SourceFile) Artifact {
	art := Artifact{
		Source:       file,
		MarkdownPath: MarkdownRel(file.RelPath),
	}

	diagramRel := g.renderDiagram(ctx, file, &art)

	body, err := g.primary.Extract(ctx, file)
	if err != nil {
		g.logger.Warn("Primary extractor failed, falling back to introspection",
			"source", file.RelPath,
			"extractor", g.primary.Name(),
			"error", err)
		art.Err = err
		art.Status = StatusFailed
		art.Fallback = true

		body, err = g.fallback.Extract(ctx, file)
		if err != nil {
			art.Err = fmt.Errorf("fallback after %v: %w", art.Err, err)
			art.MarkdownPath = ""
			return art
		}
	} else {
		art.Status = StatusGenerated
	}

	doc := assemble(file, body, diagramRel)
	if err := g.writeMarkdown(art.MarkdownPath, doc); err != nil {
		art.Err = err
		art.Status = StatusFailed
		art.MarkdownPath = ""
		return art
	}
	return art
}

// renderDiagram attempts diagram generation when enabled and the module
// defines at least one class. Failures downgrade to warnings.
func (g *Generator) renderDiagram(ctx context.Context, file scan.SourceFile, art *Artifact) string {
	if g.renderer == nil {
		return ""
	}

	sum, err := extract.Introspect(file.AbsPath)
	if err != nil {
		art.Warnings = append(art.Warnings, fmt.Sprintf("diagram skipped: %v", err))
		return ""
	}
	if !sum.HasClasses() {
		return ""
	}

	name, err := g.renderer.Render(ctx, file, filepath.Join(g.outputDir, filepath.FromSlash(g.diagramDir)))
	if err != nil {
		g.logger.Warn("Diagram generation failed",
			"source", file.RelPath,
			"renderer", g.renderer.Name(),
			"error", err)
		art.Warnings = append(art.Warnings, fmt.Sprintf("diagram: %v", err))
		return ""
	}

	art.DiagramPath = path.Join(g.diagramDir, name)
	// Image reference inside the markdown is relative to the markdown
	// file's own directory.
	depth := strings.Count(MarkdownRel(file.RelPath), "/")
	return strings.Repeat("../", depth) + art.DiagramPath
}

func (g *Generator) writeMarkdown(rel string, doc []byte) error {
	dest := filepath.Join(g.outputDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create output directory for %s: %w", rel, err)
	}
	if err := os.WriteFile(dest, doc, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	return nil
}

// assemble prepends the generated-from header and embeds the diagram
// reference after the module heading when a diagram exists.
func assemble(file scan.SourceFile, body []byte, diagramRel string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "<!-- Generated from: %s -->\n\n", file.RelPath)

	if diagramRel == "" {
		buf.Write(body)
		return buf.Bytes()
	}

	embed := []byte(fmt.Sprintf("\n![UML Class Diagram](%s)\n", diagramRel))
	lines := bytes.Split(body, []byte("\n"))
	inserted := false
	for i, line := range lines {
		if bytes.HasPrefix(line, []byte("# ")) {
			rest := append([][]byte{line, embed}, lines[i+1:]...)
			lines = append(lines[:i:i], rest...)
			inserted = true
			break
		}
	}
	if !inserted {
		lines = append(lines, embed)
	}
	buf.Write(bytes.Join(lines, []byte("\n")))
	return buf.Bytes()
}

// MarkdownRel maps a source-relative path to its markdown output path,
// preserving directory structure so same-named modules in different packages
// never collide.
func MarkdownRel(sourceRel string) string {
	return strings.TrimSuffix(sourceRel, ".py") + ".md"
}

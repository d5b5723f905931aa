package index

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// FileName is the index document's name inside the output directory.
const FileName = "index.md"

// Doc is one markdown artifact to list in the index.
type Doc struct {
	// SourceRel is the source file path the document was generated from.
	SourceRel string
	// Path is the markdown path relative to the output directory.
	Path string
}

// Builder regenerates the index document from scratch every run. It is cheap
// relative to documentation generation and must reflect deletions, so it is
// never patched incrementally.
type Builder struct {
	outputDir string
	title     string
	logger    *slog.Logger
}

// NewBuilder creates an index builder writing into outputDir.
func NewBuilder(outputDir, title string) *Builder {
	if title == "" {
		title = "Documentation Index"
	}
	return &Builder{outputDir: outputDir, title: title, logger: slog.Default()}
}

// WithLogger sets a custom logger.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// Build writes index.md listing every markdown document (sorted by source
// path, grouped by package directory) and every diagram (sorted by filename),
// each exactly once.
func (b *Builder) Build(docs []Doc, diagrams []string) error {
	sort.Slice(docs, func(i, j int) bool { return docs[i].SourceRel < docs[j].SourceRel })
	diagrams = dedupeSorted(diagrams)

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n\n", b.title)
	fmt.Fprintf(&buf, "Generated documentation for %d modules.\n", len(docs))

	for _, group := range groupByPackage(docs) {
		if group.pkg == "." {
			buf.WriteString("\n## Root Modules\n\n")
		} else {
			fmt.Fprintf(&buf, "\n## %s\n\n", group.pkg)
		}
		for _, doc := range group.docs {
			fmt.Fprintf(&buf, "- [%s](%s)\n", b.docTitle(doc), doc.Path)
		}
	}

	if len(diagrams) > 0 {
		fmt.Fprintf(&buf, "\n## UML Diagrams\n\n")
		for _, rel := range diagrams {
			name := strings.TrimSuffix(path.Base(rel), path.Ext(rel))
			name = strings.TrimPrefix(name, "classes_")
			fmt.Fprintf(&buf, "- [%s](%s)\n", name, rel)
		}
	}

	dest := filepath.Join(b.outputDir, FileName)
	if err := os.MkdirAll(b.outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(dest, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}

	b.logger.Debug("Index written", "path", dest, "docs", len(docs), "diagrams", len(diagrams))
	return nil
}

type pkgGroup struct {
	pkg  string
	docs []Doc
}

// groupByPackage buckets docs by the directory of their source path, root
// modules first, then packages alphabetically. Input must already be sorted.
func groupByPackage(docs []Doc) []pkgGroup {
	byPkg := make(map[string][]Doc)
	for _, d := range docs {
		pkg := path.Dir(d.SourceRel)
		byPkg[pkg] = append(byPkg[pkg], d)
	}

	pkgs := make([]string, 0, len(byPkg))
	for pkg := range byPkg {
		pkgs = append(pkgs, pkg)
	}
	sort.Slice(pkgs, func(i, j int) bool {
		if (pkgs[i] == ".") != (pkgs[j] == ".") {
			return pkgs[i] == "."
		}
		return pkgs[i] < pkgs[j]
	})

	groups := make([]pkgGroup, 0, len(pkgs))
	for _, pkg := range pkgs {
		groups = append(groups, pkgGroup{pkg: pkg, docs: byPkg[pkg]})
	}
	return groups
}

// docTitle reads the document and extracts its first level-1 heading; the
// module name derived from the source path serves as fallback.
func (b *Builder) docTitle(doc Doc) string {
	fallback := strings.TrimSuffix(path.Base(doc.SourceRel), ".py")

	data, err := os.ReadFile(filepath.Join(b.outputDir, filepath.FromSlash(doc.Path)))
	if err != nil {
		return fallback
	}
	if title := FirstHeading(data); title != "" {
		return title
	}
	return fallback
}

// FirstHeading parses markdown and returns the text of the first level-1
// heading, or "".
func FirstHeading(body []byte) string {
	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader(body))

	var title string
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		if h, ok := n.(*gmast.Heading); ok && h.Level == 1 {
			var sb strings.Builder
			for c := h.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*gmast.Text); ok {
					sb.Write(t.Segment.Value(body))
				}
			}
			title = strings.TrimSpace(sb.String())
			return gmast.WalkStop, nil
		}
		return gmast.WalkContinue, nil
	})
	return title
}

func dedupeSorted(in []string) []string {
	sort.Strings(in)
	out := in[:0]
	var prev string
	for i, s := range in {
		if i == 0 || s != prev {
			out = append(out, s)
		}
		prev = s
	}
	return out
}

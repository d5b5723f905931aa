package extract

import (
	"context"
	"errors"

	"git.home.luguber.info/inful/pydocgen/internal/scan"
)

// ErrEmptyOutput indicates the extractor ran but produced no usable markdown.
var ErrEmptyOutput = errors.New("extractor produced empty output")

// Extractor converts one source module into a markdown document. The primary
// implementation shells out to pydoc-markdown; a lower-fidelity introspecting
// implementation serves as the fallback so the pipeline always emits a
// markdown file per source file.
type Extractor interface {
	// Name identifies the extractor in logs and status output.
	Name() string
	// Extract produces the markdown body for the given source file.
	Extract(ctx context.Context, file scan.SourceFile) ([]byte, error)
}

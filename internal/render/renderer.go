package render

import (
	"context"

	"git.home.luguber.info/inful/pydocgen/internal/scan"
)

// Renderer produces a class-relationship diagram for one source module.
// The single shipped implementation shells out to pyreverse; tests substitute
// a double that writes a canned image.
type Renderer interface {
	// Name identifies the renderer in logs.
	Name() string
	// Render writes a diagram into outDir and returns the generated file
	// name (not a full path).
	Render(ctx context.Context, file scan.SourceFile, outDir string) (string, error)
}

package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/pydocgen/internal/scan"
)

func writeStub(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stub")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func sourceFile(rel string) scan.SourceFile {
	return scan.SourceFile{
		RelPath: rel,
		AbsPath: "/src/" + rel,
		Module:  scan.ModuleName(rel),
	}
}

func TestBuildToolConfig(t *testing.T) {
	cfg := BuildToolConfig("pkg.util", "/data/src")

	require.Len(t, cfg.Loaders, 1)
	assert.Equal(t, "python", cfg.Loaders[0]["type"])
	assert.Equal(t, []string{"/data/src"}, cfg.Loaders[0]["search_path"])
	assert.Equal(t, []string{"pkg.util"}, cfg.Loaders[0]["modules"])

	require.Len(t, cfg.Processors, 3)
	assert.Equal(t, "filter", cfg.Processors[0]["type"])
	assert.Equal(t, "crossref", cfg.Processors[2]["type"])

	assert.Equal(t, "markdown", cfg.Renderer["type"])

	// The config must round-trip through YAML since that is what the tool
	// consumes.
	data, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(data), "pkg.util")
	assert.Contains(t, string(data), "search_path")
}

func TestPydocMarkdownDefaults(t *testing.T) {
	e := NewPydocMarkdown("", "/src", 0)
	assert.Equal(t, "pydoc-markdown", e.bin)
	assert.Equal(t, DefaultToolTimeout, e.timeout)
	assert.Equal(t, "pydoc-markdown", e.Name())
}

func TestPydocMarkdownExtractSuccess(t *testing.T) {
	bin := writeStub(t, `echo "# mymod"; echo; echo "Body."`)
	e := NewPydocMarkdown(bin, "/src", time.Minute)

	out, err := e.Extract(context.Background(), sourceFile("mymod.py"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "# mymod")
}

func TestPydocMarkdownExtractNonzeroExit(t *testing.T) {
	bin := writeStub(t, `echo "ModuleNotFoundError: boom" >&2; exit 1`)
	e := NewPydocMarkdown(bin, "/src", time.Minute)

	_, err := e.Extract(context.Background(), sourceFile("mymod.py"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ModuleNotFoundError")
}

func TestPydocMarkdownExtractEmptyOutput(t *testing.T) {
	bin := writeStub(t, `exit 0`)
	e := NewPydocMarkdown(bin, "/src", time.Minute)

	_, err := e.Extract(context.Background(), sourceFile("mymod.py"))
	require.ErrorIs(t, err, ErrEmptyOutput)
}

func TestPydocMarkdownExtractTimeout(t *testing.T) {
	bin := writeStub(t, `sleep 5`)
	e := NewPydocMarkdown(bin, "/src", 100*time.Millisecond)

	_, err := e.Extract(context.Background(), sourceFile("mymod.py"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "one", firstLine([]byte("one\ntwo\nthree")))
	assert.Equal(t, "only", firstLine([]byte("  only  \n")))
	assert.Equal(t, "", firstLine(nil))
}

package render

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pydocgen/internal/scan"
)

func writeStub(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stub")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

// stubArgs parses the -p and -d flags the way the real tool would.
const stubArgs = `
proj=""
dir=""
while [ $# -gt 0 ]; do
  case "$1" in
    -p) proj="$2"; shift 2;;
    -d) dir="$2"; shift 2;;
    *) shift;;
  esac
done
`

func TestPyreverseDefaults(t *testing.T) {
	r := NewPyreverse("", 0)
	assert.Equal(t, "pyreverse", r.bin)
	assert.Equal(t, DefaultTimeout, r.timeout)
	assert.Equal(t, "pyreverse", r.Name())
}

func TestPyreverseRenderSuccess(t *testing.T) {
	bin := writeStub(t, stubArgs+`touch "$dir/classes_$proj.png"`)
	r := NewPyreverse(bin, time.Minute)
	outDir := t.TempDir()

	file := scan.SourceFile{RelPath: "pkg/util.py", AbsPath: "/src/pkg/util.py", Module: "pkg.util"}
	name, err := r.Render(context.Background(), file, outDir)
	require.NoError(t, err)
	assert.Equal(t, "classes_pkg_util.png", name)
	assert.FileExists(t, filepath.Join(outDir, name))
}

func TestPyreverseRenderNoOutput(t *testing.T) {
	// Zero exit but no image written: pyreverse does this for modules
	// without classes.
	bin := writeStub(t, `exit 0`)
	r := NewPyreverse(bin, time.Minute)

	file := scan.SourceFile{RelPath: "a.py", AbsPath: "/src/a.py", Module: "a"}
	_, err := r.Render(context.Background(), file, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no diagram")
}

func TestPyreverseRenderFailure(t *testing.T) {
	bin := writeStub(t, `echo "parse error" >&2; exit 2`)
	r := NewPyreverse(bin, time.Minute)

	file := scan.SourceFile{RelPath: "a.py", AbsPath: "/src/a.py", Module: "a"}
	_, err := r.Render(context.Background(), file, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse error")
}

func TestPyreverseMissingBinary(t *testing.T) {
	r := NewPyreverse(filepath.Join(t.TempDir(), "absent"), time.Minute)

	file := scan.SourceFile{RelPath: "a.py", AbsPath: "/src/a.py", Module: "a"}
	_, err := r.Render(context.Background(), file, t.TempDir())
	require.Error(t, err)
}

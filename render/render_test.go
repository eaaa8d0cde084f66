package render

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/mathcheck/storage"
)

// writeStub creates an executable script standing in for an external tool.
func writeStub(t *testing.T, dir, name, script string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755))
	return path
}

func testConfig(t *testing.T) (Config, *storage.Local) {
	t.Helper()
	dir := t.TempDir()

	// pdflatex stub: last argument is the tex file; emit a pdf next to it.
	pdflatex := writeStub(t, dir, "pdflatex", `
for last; do :; done
out="${last%.tex}.pdf"
echo fake-pdf > "$out"
`)
	// pdftoppm stub: args end with <pdf> <imgbase>; emit <imgbase>.jpg.
	pdftoppm := writeStub(t, dir, "pdftoppm", `
for last; do :; done
echo fake-jpg > "$last.jpg"
`)

	store, err := storage.NewLocal(filepath.Join(dir, "data"))
	require.NoError(t, err)

	return Config{
		PDFLaTeX: pdflatex,
		PDFToPPM: pdftoppm,
		WorkDir:  dir,
		Timeout:  5 * time.Second,
	}, store
}

func TestRenderStoresImage(t *testing.T) {
	cfg, store := testConfig(t)
	r := New(cfg, store)

	key, err := r.Render(context.Background(), `\frac{1}{2}`)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "renders/"))
	assert.True(t, strings.HasSuffix(key, ".jpg"))

	data, err := store.Load(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "fake-jpg\n", string(data))
}

func TestRenderDistinctKeys(t *testing.T) {
	cfg, store := testConfig(t)
	r := New(cfg, store)

	k1, err := r.Render(context.Background(), "x")
	require.NoError(t, err)
	k2, err := r.Render(context.Background(), "x")
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)
}

func TestRenderFailures(t *testing.T) {
	cfg, store := testConfig(t)
	r := New(cfg, store)

	_, err := r.Render(context.Background(), "")
	assert.Error(t, err)

	// A failing pdflatex surfaces its output.
	cfg.PDFLaTeX = writeStub(t, t.TempDir(), "pdflatex", `
echo "! Undefined control sequence."
exit 1
`)
	r = New(cfg, store)
	_, err = r.Render(context.Background(), `\nosuchmacro`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pdflatex")
	assert.Contains(t, err.Error(), "Undefined control sequence")
}

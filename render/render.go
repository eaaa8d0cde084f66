// Package render turns answer markup into PNG images for visual inspection,
// using pdflatex and pdftoppm as subprocesses. Rendered images are persisted
// through a storage backend under uuid-derived keys.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/c360studio/mathcheck/storage"
)

// Config holds the external tool configuration.
type Config struct {
	// PDFLaTeX is the pdflatex binary.
	PDFLaTeX string
	// PDFToPPM is the pdftoppm binary.
	PDFToPPM string
	// WorkDir holds per-render scratch directories.
	WorkDir string
	// Timeout bounds each subprocess invocation.
	Timeout time.Duration
}

// DefaultConfig returns tool defaults resolved from PATH.
func DefaultConfig() Config {
	return Config{
		PDFLaTeX: "pdflatex",
		PDFToPPM: "pdftoppm",
		WorkDir:  os.TempDir(),
		Timeout:  30 * time.Second,
	}
}

// Renderer renders markup to stored PNG images.
type Renderer struct {
	cfg    Config
	store  storage.Backend
	logger *slog.Logger
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) { r.logger = l }
}

// New creates a Renderer persisting into store.
func New(cfg Config, store storage.Backend, opts ...Option) *Renderer {
	r := &Renderer{cfg: cfg, store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// documentTemplate wraps answer markup in a minimal standalone document.
const documentTemplate = `\documentclass[preview,border=8pt]{standalone}
\usepackage{amsmath}
\usepackage{amssymb}
\usepackage{physics}
\begin{document}
$\displaystyle %s$
\end{document}
`

// Render compiles markup to a JPEG and stores it. It returns the storage key
// of the image.
func (r *Renderer) Render(ctx context.Context, markup string) (string, error) {
	if markup == "" {
		return "", fmt.Errorf("empty markup")
	}

	id := uuid.New().String()
	dir := filepath.Join(r.cfg.WorkDir, "mathcheck-render-"+id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	texPath := filepath.Join(dir, id+".tex")
	doc := fmt.Sprintf(documentTemplate, markup)
	if err := os.WriteFile(texPath, []byte(doc), 0644); err != nil {
		return "", fmt.Errorf("write tex file: %w", err)
	}

	if out, err := r.run(ctx, r.cfg.PDFLaTeX,
		"-interaction=nonstopmode", "-halt-on-error",
		"-output-directory", dir, texPath); err != nil {
		return "", fmt.Errorf("pdflatex: %w: %s", err, tail(out, 512))
	}

	pdfPath := filepath.Join(dir, id+".pdf")
	imgBase := filepath.Join(dir, id)
	if out, err := r.run(ctx, r.cfg.PDFToPPM,
		"-jpeg", "-r", "150", "-singlefile", pdfPath, imgBase); err != nil {
		return "", fmt.Errorf("pdftoppm: %w: %s", err, tail(out, 512))
	}

	img, err := os.ReadFile(imgBase + ".jpg")
	if err != nil {
		return "", fmt.Errorf("read rendered image: %w", err)
	}

	key := "renders/" + id + ".jpg"
	if err := r.store.Save(ctx, key, img); err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}

	r.logger.Info("rendered markup", "key", key, "bytes", len(img))
	return key, nil
}

func (r *Renderer) run(ctx context.Context, bin string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, bin, args...)
	return cmd.CombinedOutput()
}

func tail(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return "..." + string(b[len(b)-n:])
}

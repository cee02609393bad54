package pdf

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/jonathan/esg-extractor/internal/types"
)

// Content MIME types
const (
	MIMEText = "text/plain"
	MIMEPNG  = "image/png"
)

// DefaultDPI is the rasterization resolution for vision-mode extraction.
const DefaultDPI = 150

// TextProvider materializes pages as their extracted text.
type TextProvider struct {
	doc *Document
}

// NewTextProvider creates a text provider over doc.
func NewTextProvider(doc *Document) *TextProvider {
	return &TextProvider{doc: doc}
}

// Materialize returns one text item per in-range index, in request order.
func (p *TextProvider) Materialize(ctx context.Context, pages []int) ([]types.Content, error) {
	count := p.doc.PageCount()
	out := make([]types.Content, 0, len(pages))
	for _, idx := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if idx < 0 || idx >= count {
			continue
		}
		out = append(out, types.Content{PageIndex: idx, MIMEType: MIMEText, Text: p.doc.PageText(idx)})
	}
	return out, nil
}

// Rasterizer renders one zero-based page of a PDF file to PNG bytes.
type Rasterizer interface {
	Render(ctx context.Context, path string, page, dpi int) ([]byte, error)
}

// Pdftoppm renders pages with Poppler's pdftoppm binary.
type Pdftoppm struct {
	Binary string
}

// NewPdftoppm locates pdftoppm on PATH.
func NewPdftoppm() (*Pdftoppm, error) {
	bin, err := exec.LookPath("pdftoppm")
	if err != nil {
		return nil, fmt.Errorf("pdftoppm not found (install poppler-utils): %w", err)
	}
	return &Pdftoppm{Binary: bin}, nil
}

// Render runs pdftoppm for a single page into a temporary directory.
func (r *Pdftoppm) Render(ctx context.Context, path string, page, dpi int) ([]byte, error) {
	tmpDir, err := os.MkdirTemp("", "esg-page-*")
	if err != nil {
		return nil, &RenderError{Page: page, Message: "failed to create temp dir", Cause: err}
	}
	defer os.RemoveAll(tmpDir)

	n := strconv.Itoa(page + 1)
	prefix := filepath.Join(tmpDir, "page")
	cmd := exec.CommandContext(ctx, r.Binary,
		"-png", "-r", strconv.Itoa(dpi),
		"-f", n, "-l", n,
		"-singlefile",
		path, prefix,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, &RenderError{Page: page, Message: stderr.String(), Cause: err}
	}

	data, err := os.ReadFile(prefix + ".png")
	if err != nil {
		return nil, &RenderError{Page: page, Message: "no image produced", Cause: err}
	}
	return data, nil
}

// ImageOptions configures an ImageProvider.
type ImageOptions struct {
	DPI int
	// FallbackText sends a page's extracted text when it cannot be rendered.
	FallbackText bool
	Logger       *slog.Logger
}

// ImageProvider materializes pages as PNG images.
type ImageProvider struct {
	doc    *Document
	raster Rasterizer
	opts   ImageOptions
}

// NewImageProvider creates an image provider over doc.
func NewImageProvider(doc *Document, raster Rasterizer, opts ImageOptions) *ImageProvider {
	if opts.DPI <= 0 {
		opts.DPI = DefaultDPI
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &ImageProvider{doc: doc, raster: raster, opts: opts}
}

// Materialize renders each in-range page. A page that fails to render yields empty
// content (or its text, with FallbackText); only cancellation is an error.
func (p *ImageProvider) Materialize(ctx context.Context, pages []int) ([]types.Content, error) {
	count := p.doc.PageCount()
	out := make([]types.Content, 0, len(pages))
	for _, idx := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if idx < 0 || idx >= count {
			continue
		}

		data, err := p.raster.Render(ctx, p.doc.Path(), idx, p.opts.DPI)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.opts.Logger.Warn("pdf.render.failed", "doc", p.doc.Name(), "page", idx, "err", err)
			c := types.Content{PageIndex: idx, MIMEType: MIMEPNG}
			if p.opts.FallbackText {
				c = types.Content{PageIndex: idx, MIMEType: MIMEText, Text: p.doc.PageText(idx)}
			}
			out = append(out, c)
			continue
		}
		out = append(out, types.Content{PageIndex: idx, MIMEType: MIMEPNG, Data: data})
	}
	return out, nil
}

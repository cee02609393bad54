// Package pdf reads report PDFs: page text for ranking and text-mode extraction, and
// page images for vision-mode extraction.
package pdf

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"

	"github.com/jonathan/esg-extractor/internal/types"
)

// Document is an opened PDF. Page text is extracted once and cached.
type Document struct {
	path   string
	reader *pdf.Reader

	once  sync.Once
	pages []types.Page
}

// Open reads and parses the PDF at path.
func Open(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &DocumentError{Path: path, Message: "failed to read file", Cause: err}
	}
	return OpenBytes(path, data)
}

// OpenBytes parses PDF bytes; path is kept for rendering and error messages.
func OpenBytes(path string, data []byte) (doc *Document, err error) {
	if len(data) == 0 {
		return nil, &DocumentError{Path: path, Message: "empty file"}
	}

	// The reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = &DocumentError{Path: path, Message: "malformed PDF", Cause: fmt.Errorf("%v", r)}
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &DocumentError{Path: path, Message: "failed to parse PDF", Cause: err}
	}
	return &Document{path: path, reader: r}, nil
}

// Path returns the file the document was opened from.
func (d *Document) Path() string {
	return d.path
}

// Name returns the base file name.
func (d *Document) Name() string {
	return filepath.Base(d.path)
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int {
	return d.reader.NumPage()
}

// Pages returns every page with its extracted text, zero-based. Pages whose text
// cannot be extracted have empty text.
func (d *Document) Pages() []types.Page {
	d.once.Do(func() {
		n := d.PageCount()
		d.pages = make([]types.Page, 0, n)
		for i := 0; i < n; i++ {
			d.pages = append(d.pages, types.Page{Index: i, Text: d.extractText(i)})
		}
	})
	out := make([]types.Page, len(d.pages))
	copy(out, d.pages)
	return out
}

// PageText returns the text of the zero-based page idx, or "" if out of range.
func (d *Document) PageText(idx int) string {
	pages := d.Pages()
	if idx < 0 || idx >= len(pages) {
		return ""
	}
	return pages[idx].Text
}

func (d *Document) extractText(idx int) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()

	page := d.reader.Page(idx + 1)
	if page.V.IsNull() {
		return ""
	}
	t, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(t)
}

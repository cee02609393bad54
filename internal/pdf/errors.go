package pdf

import "fmt"

// DocumentError reports a PDF that could not be opened or read.
type DocumentError struct {
	Path    string
	Message string
	Cause   error
}

func (e *DocumentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("pdf %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("pdf %s: %s", e.Path, e.Message)
}

func (e *DocumentError) Unwrap() error {
	return e.Cause
}

// RenderError reports a page that could not be rasterized.
type RenderError struct {
	Page    int
	Message string
	Cause   error
}

func (e *RenderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("render page %d: %s: %v", e.Page, e.Message, e.Cause)
	}
	return fmt.Sprintf("render page %d: %s", e.Page, e.Message)
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

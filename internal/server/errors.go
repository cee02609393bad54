package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/esg-extractor/internal/pipeline"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrNotFound indicates a missing company or file.
type ErrNotFound struct {
	Kind string
	Name string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Name)
}

// ErrNotConfigured indicates processing was requested without a model API key.
type ErrNotConfigured struct{}

func (e *ErrNotConfigured) Error() string {
	return "model API key not configured; set OPENAI_API_KEY or GEMINI_API_KEY"
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		validation *ErrValidation
		notFound   *ErrNotFound
		docErr     *pipeline.DocumentError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrNoRecords):
		return http.StatusUnprocessableEntity
	case errors.As(err, &docErr) && docErr.Stage == pipeline.StageOpen:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

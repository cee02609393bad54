package pipeline

import "fmt"

// Stage names where a document can fail.
const (
	StageOpen     = "open"
	StageExtract  = "extract"
	StageValidate = "validate"
	StageSave     = "save"
)

// DocumentError is returned when a single report cannot be processed.
type DocumentError struct {
	Path    string
	Stage   string
	Message string
	Cause   error
}

func (e *DocumentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s failed: %s: %v", e.Path, e.Stage, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s failed: %s", e.Path, e.Stage, e.Message)
}

func (e *DocumentError) Unwrap() error {
	return e.Cause
}

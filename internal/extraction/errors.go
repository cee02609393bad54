package extraction

import "fmt"

// OptionsError reports controller options that cannot drive a run.
type OptionsError struct {
	Message string
	Field   string
}

func (e *OptionsError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid extraction options: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid extraction options: %s", e.Message)
}

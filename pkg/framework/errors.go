package framework

import "strings"

// AggregatedError collects errors from Runnables stopping together.
type AggregatedError struct {
	Errors []error
}

// Add appends non-nil errs.
func (e *AggregatedError) Add(errs ...error) *AggregatedError {
	for _, err := range errs {
		if err == nil {
			continue
		}
		e.Errors = append(e.Errors, err)
	}
	return e
}

// Aggregate returns e if anything was added, or nil.
func (e *AggregatedError) Aggregate() error {
	if len(e.Errors) > 0 {
		return e
	}
	return nil
}

func (e *AggregatedError) Error() string {
	var sb strings.Builder
	sb.WriteString("Multiple errors:")
	for _, err := range e.Errors {
		sb.WriteByte('\n')
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Unwrap supports errors.Is and errors.As.
func (e *AggregatedError) Unwrap() []error {
	return e.Errors
}

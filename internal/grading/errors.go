package grading

import (
	"fmt"

	"registrar/internal/failures"
)

// UnknownGradeError reports a grade symbol (or mark) absent from the table.
type UnknownGradeError struct {
	Symbol string
}

func (e *UnknownGradeError) Error() string {
	return fmt.Sprintf("unknown grade %q", e.Symbol)
}

// ErrorKind implements failures.Classifier.
func (e *UnknownGradeError) ErrorKind() string { return failures.KindGrading }

// ConfigurationError reports an unusable grade table.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "grade table: " + e.Reason
}

// ErrorKind implements failures.Classifier.
func (e *ConfigurationError) ErrorKind() string { return failures.KindConfiguration }

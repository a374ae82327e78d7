package records

import (
	"context"
	"errors"
	"fmt"

	"registrar/internal/failures"
)

// ErrNotFound indicates the registration number has no student row.
var ErrNotFound = errors.New("student not found")

// FetchError wraps failures of the record source.
type FetchError struct {
	RegNo string
	Op    string
	Kind  string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %s: %v", e.RegNo, e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ErrorKind implements failures.Classifier.
func (e *FetchError) ErrorKind() string {
	if e.Kind != "" {
		return e.Kind
	}
	if errors.Is(e.Err, context.Canceled) {
		return failures.KindCancelled
	}
	if errors.Is(e.Err, ErrNotFound) {
		return failures.KindNotFound
	}
	return failures.KindConnectivity
}

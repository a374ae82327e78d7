package failures

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Cause categories surfaced in batch and sync reports.
const (
	KindGrading       = "grading"
	KindConnectivity  = "connectivity"
	KindRendering     = "rendering"
	KindStore         = "store"
	KindConfiguration = "configuration"
	KindNotFound      = "not_found"
	KindCancelled     = "cancelled"
	KindInternal      = "internal"
)

// Classifier allows errors to declare their cause category.
type Classifier interface {
	// ErrorKind returns one of the Kind constants.
	ErrorKind() string
}

// KindOf returns the cause category of err. Deadline expiry counts as a
// connectivity failure since it is only ever produced by bounded external calls.
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	var classifier Classifier
	if errors.As(err, &classifier) {
		if kind := strings.TrimSpace(classifier.ErrorKind()); kind != "" {
			return kind
		}
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindConnectivity
	case errors.Is(err, context.Canceled):
		return KindCancelled
	}
	return KindInternal
}

// Reason renders err as "<kind>: <message>" for report tables.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", KindOf(err), err.Error())
}

// Error tags an arbitrary error with a cause category and operation context.
type Error struct {
	Kind string
	Op   string
	Err  error
}

// Wrap builds an Error. A nil err yields nil.
func Wrap(kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorKind implements Classifier.
func (e *Error) ErrorKind() string { return e.Kind }

package nocodb

import (
	"errors"
	"fmt"
	"time"

	"registrar/internal/failures"
)

// ErrConcurrentModification reports a row changed by another writer between
// read and update.
var ErrConcurrentModification = errors.New("record modified concurrently")

// StoreError wraps a failed store call. Transient errors are worth retrying;
// everything else fails the record at once.
type StoreError struct {
	Op         string
	Table      string
	Status     int
	Transient  bool
	RetryAfter time.Duration
	Err        error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("nocodb %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// ErrorKind implements failures.Classifier.
func (e *StoreError) ErrorKind() string {
	if e.Status == 0 && e.Transient {
		return failures.KindConnectivity
	}
	return failures.KindStore
}

// IsTransient reports whether err is a retryable store error.
func IsTransient(err error) bool {
	var storeErr *StoreError
	return errors.As(err, &storeErr) && storeErr.Transient
}

// RetryAfterHint returns the server's requested delay, if any.
func RetryAfterHint(err error) time.Duration {
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr.RetryAfter
	}
	return 0
}

func permanent(op, table string, err error) error {
	return &StoreError{Op: op, Table: table, Err: err}
}

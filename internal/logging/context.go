package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID identifies one batch or sync invocation.
	FieldRunID = "run_id"
	// FieldRegNo is the student registration number being processed.
	FieldRegNo = "regn_no"
	// FieldYearFlag is the enrollment-year marker of the record being processed.
	FieldYearFlag = "year_flag"
	// FieldKind is the document kind or sync mode of the current operation.
	FieldKind = "kind"
	// FieldEventType classifies a warning or error for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step to an operator.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldErrorKind is the cause category of a failure.
	FieldErrorKind = "error_kind"
)

type runIDKey struct{}

// WithRunID stores a run identifier on the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext extracts a run identifier stored by WithRunID.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	value, ok := ctx.Value(runIDKey{}).(string)
	return value, ok && value != ""
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if runID, ok := RunIDFromContext(ctx); ok {
		return logger.With(slog.String(FieldRunID, runID))
	}
	return logger
}

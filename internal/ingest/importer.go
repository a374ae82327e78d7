package ingest

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"registrar/internal/config"
	"registrar/internal/failures"
	"registrar/internal/logging"
	"registrar/internal/nocodb"
	"registrar/internal/reconcile"
)

// RowResult is the upload outcome of one row.
type RowResult struct {
	Line     int
	Key      string
	Outcome  reconcile.Outcome
	Attempts int
	Kind     string
	Reason   string
}

// Report summarises an import.
type Report struct {
	RunID      string
	Table      string
	Total      int
	Created    int
	Updated    int
	Conflicted int
	Failed     int
	Rejected   int
	Rows       []RowResult
	Cancelled  bool
}

// ProgressFunc observes each uploaded row.
type ProgressFunc func(done, total int)

// Importer uploads parsed sheets with the reconciler's upsert and retry policy.
type Importer struct {
	store    reconcile.Store
	retry    reconcile.Retry
	progress ProgressFunc
	logger   *slog.Logger
}

// Option customises an Importer.
type Option func(*Importer)

// WithRetry overrides the retry policy.
func WithRetry(retry reconcile.Retry) Option {
	return func(i *Importer) { i.retry = retry }
}

// WithProgress registers a progress observer.
func WithProgress(fn ProgressFunc) Option {
	return func(i *Importer) { i.progress = fn }
}

// New constructs an Importer.
func New(store reconcile.Store, logger *slog.Logger, opts ...Option) *Importer {
	i := &Importer{
		store:  store,
		retry:  reconcile.Retry{Attempts: 1},
		logger: logging.NewComponentLogger(logger, "ingest"),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// NewFromConfig uses the [sync] retry policy.
func NewFromConfig(cfg *config.Config, store reconcile.Store, logger *slog.Logger, opts ...Option) *Importer {
	return New(store, logger, append([]Option{WithRetry(reconcile.RetryFromConfig(cfg))}, opts...)...)
}

// Import upserts every row of sheet into table. Rejected lines are counted
// but never sent. A failing row does not stop the rest; cancellation does.
func (i *Importer) Import(ctx context.Context, table string, sheet Sheet) Report {
	report := Report{
		RunID:    uuid.NewString(),
		Table:    table,
		Total:    len(sheet.Rows) + len(sheet.Rejected),
		Rejected: len(sheet.Rejected),
	}
	logger := i.logger.With(logging.String(logging.FieldRunID, report.RunID), logging.String("table", table))
	logger.Info("import started", logging.Int("rows", len(sheet.Rows)), logging.Int("rejected", len(sheet.Rejected)))

	for _, rej := range sheet.Rejected {
		logging.WarnWithContext(logger, "row rejected", "ingest_rejected",
			logging.Int("line", rej.Line),
			logging.String(logging.FieldRegNo, rej.RegNo),
			logging.Error(rej.Err),
			logging.String(logging.FieldImpact, "row not imported"),
			logging.String(logging.FieldErrorHint, "fix the row in the sheet and import again"),
		)
	}
	if len(sheet.Ignored) > 0 {
		logger.Info("columns ignored", logging.Any("columns", sheet.Ignored))
	}

	for n, row := range sheet.Rows {
		if ctx.Err() != nil {
			report.Cancelled = true
			break
		}
		res := i.upload(ctx, logger, table, row)
		report.Rows = append(report.Rows, res)
		switch res.Outcome {
		case reconcile.OutcomeCreated:
			report.Created++
		case reconcile.OutcomeUpdated:
			report.Updated++
		case reconcile.OutcomeConflicted:
			report.Conflicted++
		default:
			report.Failed++
		}
		if i.progress != nil {
			i.progress(n+1, len(sheet.Rows))
		}
	}
	logger.Info("import finished",
		logging.Int("created", report.Created),
		logging.Int("updated", report.Updated),
		logging.Int("conflicted", report.Conflicted),
		logging.Int("failed", report.Failed),
		logging.Int("rejected", report.Rejected),
	)
	return report
}

func (i *Importer) upload(ctx context.Context, logger *slog.Logger, table string, row Row) RowResult {
	res := RowResult{Line: row.Line, Key: row.Key.String()}
	outcome, attempts, err := reconcile.Upsert(ctx, i.store, i.retry, table, row.Key, row.Fields)
	res.Attempts = attempts
	if err == nil {
		res.Outcome = outcome
		return res
	}
	res.Outcome = reconcile.OutcomeFailed
	if errors.Is(err, nocodb.ErrConcurrentModification) {
		res.Outcome = reconcile.OutcomeConflicted
	}
	res.Kind = failures.KindOf(err)
	res.Reason = err.Error()
	logging.WarnWithContext(logger, "row upload failed", "ingest_failed",
		logging.Int("line", row.Line),
		logging.String("key", res.Key),
		logging.String(logging.FieldErrorKind, res.Kind),
		logging.Int("attempts", attempts),
		logging.Error(err),
		logging.String(logging.FieldImpact, "row not imported"),
	)
	return res
}

package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"registrar/internal/assets"
	"registrar/internal/failures"
	"registrar/internal/logging"
	"registrar/internal/metrics"
	"registrar/internal/records"
	"registrar/internal/render"
)

// Status is the outcome of one identifier.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// ReasonNoRecords marks a known student whose fetch returned no course rows.
const ReasonNoRecords = "no records"

// Result is the per-identifier outcome.
type Result struct {
	ID       records.Request
	Status   Status
	Artifact *render.Artifact
	Kind     string
	Reason   string
}

// Report aggregates a batch. Results follow submission order.
type Report struct {
	RunID     string
	Kind      render.Kind
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	Cancelled bool
	Results   []Result
}

// Artifacts returns the produced documents in submission order.
func (r Report) Artifacts() []render.Artifact {
	var out []render.Artifact
	for _, res := range r.Results {
		if res.Artifact != nil {
			out = append(out, *res.Artifact)
		}
	}
	return out
}

// Progress is reported after every finished unit.
type Progress struct {
	RunID     string
	Completed int
	Total     int
	ID        records.Request
	Status    Status
}

// ProgressFunc observes a running batch. Calls are serialised.
type ProgressFunc func(Progress)

// Orchestrator drives fetch, compute and render over a list of identifiers.
type Orchestrator struct {
	calc        *metrics.Calculator
	renderer    *render.Renderer
	concurrency int
	unitTimeout time.Duration
	progress    ProgressFunc
	logger      *slog.Logger
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithConcurrency sets the number of identifiers processed at once.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithUnitTimeout bounds each identifier's fetch, compute and render.
func WithUnitTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.unitTimeout = d }
}

// WithProgress installs a progress observer.
func WithProgress(fn ProgressFunc) Option {
	return func(o *Orchestrator) { o.progress = fn }
}

// New constructs an Orchestrator.
func New(calc *metrics.Calculator, renderer *render.Renderer, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		calc:        calc,
		renderer:    renderer,
		concurrency: 1,
		logger:      logging.NewComponentLogger(logger, "batch"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type slot struct {
	result Result
	done   bool
}

// Run processes ids and never returns an error: every failure is recorded in
// its own Result. When ctx is cancelled no further units start, and units
// that had not finished are left out of the report.
func (o *Orchestrator) Run(ctx context.Context, ids []records.Request, kind render.Kind, fetch records.Fetcher, photos assets.Lookup) Report {
	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	logger := o.logger.With(
		logging.String(logging.FieldRunID, runID),
		logging.String(logging.FieldKind, string(kind)),
	)
	logger.Info("batch started", logging.Int("total", len(ids)), logging.Int("concurrency", o.concurrency))

	slots := make([]slot, len(ids))
	var (
		mu        sync.Mutex
		completed int
	)
	finish := func(i int, res Result) {
		mu.Lock()
		defer mu.Unlock()
		slots[i] = slot{result: res, done: true}
		completed++
		if o.progress != nil {
			o.progress(Progress{RunID: runID, Completed: completed, Total: len(ids), ID: res.ID, Status: res.Status})
		}
	}

	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i, id := range ids {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			res := o.unit(ctx, logger, id, kind, fetch, photos)
			if abandoned(ctx, res) {
				return nil
			}
			finish(i, res)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{RunID: runID, Kind: kind, Total: len(ids), Cancelled: ctx.Err() != nil}
	for _, s := range slots {
		if !s.done {
			continue
		}
		report.Results = append(report.Results, s.result)
		switch s.result.Status {
		case StatusSucceeded:
			report.Succeeded++
		case StatusFailed:
			report.Failed++
		case StatusSkipped:
			report.Skipped++
		}
	}
	logger.Info("batch finished",
		logging.Int("succeeded", report.Succeeded),
		logging.Int("failed", report.Failed),
		logging.Int("skipped", report.Skipped),
		logging.Bool("cancelled", report.Cancelled),
	)
	return report
}

// abandoned reports whether res records nothing but the batch being
// cancelled. Units that failed for their own reason stay in the report.
func abandoned(ctx context.Context, res Result) bool {
	return ctx.Err() != nil && res.Status == StatusFailed && res.Kind == failures.KindCancelled
}

type unitOutcome struct {
	artifact render.Artifact
	skipped  bool
	err      error
}

func (o *Orchestrator) unit(ctx context.Context, logger *slog.Logger, id records.Request, kind render.Kind, fetch records.Fetcher, photos assets.Lookup) Result {
	logger = logger.With(logging.String(logging.FieldRegNo, id.RegNo), logging.Int(logging.FieldYearFlag, id.YearFlag))
	unitCtx := ctx
	if o.unitTimeout > 0 {
		var cancel context.CancelFunc
		unitCtx, cancel = context.WithTimeout(ctx, o.unitTimeout)
		defer cancel()
	}

	done := make(chan unitOutcome, 1)
	go func() {
		done <- o.process(unitCtx, id, kind, fetch, photos)
	}()

	var out unitOutcome
	select {
	case out = <-done:
	case <-unitCtx.Done():
		out = unitOutcome{err: failures.Wrap(failures.KindConnectivity, "process "+id.RegNo, fmt.Errorf("unit did not finish: %w", unitCtx.Err()))}
		if errors.Is(unitCtx.Err(), context.Canceled) {
			out.err = failures.Wrap(failures.KindCancelled, "process "+id.RegNo, unitCtx.Err())
		}
	}

	switch {
	case out.err != nil:
		errKind := failures.KindOf(out.err)
		if ctx.Err() != nil && errors.Is(out.err, context.Canceled) {
			errKind = failures.KindCancelled
		}
		logging.WarnWithContext(logger, "identifier failed", "unit_failed",
			logging.String(logging.FieldErrorKind, errKind),
			logging.Error(out.err),
			logging.String(logging.FieldImpact, "document not produced"),
		)
		return Result{ID: id, Status: StatusFailed, Kind: errKind, Reason: out.err.Error()}
	case out.skipped:
		logger.Info("identifier skipped", logging.String("reason", ReasonNoRecords))
		return Result{ID: id, Status: StatusSkipped, Reason: ReasonNoRecords}
	}
	logger.Debug("identifier rendered", logging.String("file", out.artifact.Filename))
	artifact := out.artifact
	return Result{ID: id, Status: StatusSucceeded, Artifact: &artifact}
}

func (o *Orchestrator) process(ctx context.Context, id records.Request, kind render.Kind, fetch records.Fetcher, photos assets.Lookup) unitOutcome {
	identity, rows, err := fetch.Fetch(ctx, id)
	if err != nil {
		return unitOutcome{err: err}
	}
	if len(rows) == 0 {
		return unitOutcome{skipped: true}
	}
	if kind == render.KindGradeCard && id.YearFlag > 0 {
		identity.YearFlag = id.YearFlag
	}

	summary, err := o.calc.ComputeTranscript(rows)
	if err != nil {
		return unitOutcome{err: err}
	}

	var photo []byte
	if photos != nil {
		photo, _ = photos.Photo(ctx, identity)
	}
	if err := ctx.Err(); err != nil {
		return unitOutcome{err: err}
	}

	artifact, err := o.renderer.Render(kind, identity, summary, photo)
	if err != nil {
		return unitOutcome{err: err}
	}
	return unitOutcome{artifact: artifact}
}

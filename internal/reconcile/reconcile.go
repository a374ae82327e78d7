package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"registrar/internal/config"
	"registrar/internal/failures"
	"registrar/internal/logging"
	"registrar/internal/metrics"
	"registrar/internal/nocodb"
	"registrar/internal/records"
)

// Mode selects how summaries map to external records.
type Mode string

const (
	ModePerYear      Mode = "per-year"
	ModeConsolidated Mode = "consolidated"
)

// ParseMode maps CLI spellings to a Mode.
func ParseMode(value string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "per-year", "peryear", "year":
		return ModePerYear, nil
	case "consolidated":
		return ModeConsolidated, nil
	}
	return "", fmt.Errorf("unknown sync mode %q", value)
}

// Summary pairs a student identity with its computed transcript.
type Summary struct {
	Identity   records.StudentIdentity
	Transcript metrics.TranscriptSummary
}

// Outcome is the result of reconciling one external record.
type Outcome string

const (
	OutcomeCreated    Outcome = "created"
	OutcomeUpdated    Outcome = "updated"
	OutcomeConflicted Outcome = "conflicted"
	OutcomeFailed     Outcome = "failed"
)

// RecordResult is the per-record detail of a Report.
type RecordResult struct {
	Key      records.Key
	Outcome  Outcome
	Attempts int
	Kind     string
	Reason   string
}

// Report summarises one reconciliation.
type Report struct {
	RunID      string
	Mode       Mode
	Created    int
	Updated    int
	Conflicted int
	Failed     int
	Records    []RecordResult
	Warnings   []ConflictWarning
	// Cancelled is set when ctx ended the run early. Summaries not yet
	// reached have no entry in Records.
	Cancelled bool
}

func (r *Report) add(res RecordResult) {
	r.Records = append(r.Records, res)
	switch res.Outcome {
	case OutcomeCreated:
		r.Created++
	case OutcomeUpdated:
		r.Updated++
	case OutcomeConflicted:
		r.Conflicted++
	case OutcomeFailed:
		r.Failed++
	}
}

// Store is the external record store.
type Store interface {
	Lookup(ctx context.Context, table string, key nocodb.Key) (nocodb.Record, bool, error)
	Create(ctx context.Context, table string, fields nocodb.Fields) (nocodb.Record, error)
	Update(ctx context.Context, table string, current nocodb.Record, fields nocodb.Fields) (nocodb.Record, error)
}

// Reconciler upserts computed summaries into the external store.
type Reconciler struct {
	store       Store
	table       string
	retry       Retry
	lockPath    string
	lockTimeout time.Duration
	logger      *slog.Logger
}

// Option customises a Reconciler.
type Option func(*Reconciler)

// WithRetry overrides the retry policy.
func WithRetry(retry Retry) Option {
	return func(r *Reconciler) { r.retry = retry }
}

// WithLock serialises reconciliations across processes through a lock file.
func WithLock(path string, timeout time.Duration) Option {
	return func(r *Reconciler) {
		r.lockPath = path
		r.lockTimeout = timeout
	}
}

// New constructs a Reconciler writing student rows to table.
func New(store Store, table string, logger *slog.Logger, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:  store,
		table:  table,
		retry:  Retry{Attempts: 1},
		logger: logging.NewComponentLogger(logger, "reconcile"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewFromConfig wires a Reconciler with the configured table, retry policy
// and lock file.
func NewFromConfig(cfg *config.Config, store Store, logger *slog.Logger, opts ...Option) *Reconciler {
	base := []Option{
		WithRetry(RetryFromConfig(cfg)),
		WithLock(cfg.SyncLockPath(), cfg.LockTimeout()),
	}
	return New(store, cfg.NocoDB.StudentTable, logger, append(base, opts...)...)
}

// Reconcile writes summaries in the given mode. Per-record failures land in
// the Report; the error is reserved for problems that stop the whole run,
// such as an unknown mode or a lock held by another process.
func (r *Reconciler) Reconcile(ctx context.Context, summaries []Summary, mode Mode) (Report, error) {
	runID := uuid.NewString()
	report := Report{RunID: runID, Mode: mode}
	if mode != ModePerYear && mode != ModeConsolidated {
		return report, fmt.Errorf("unknown sync mode %q", mode)
	}
	logger := r.logger.With(logging.String(logging.FieldRunID, runID), logging.String("mode", string(mode)))

	unlock, err := r.acquire(ctx)
	if err != nil {
		return report, err
	}
	defer unlock()

	logger.Info("reconcile started", logging.Int("summaries", len(summaries)))
	switch mode {
	case ModePerYear:
		for _, s := range summaries {
			if ctx.Err() != nil {
				break
			}
			report.add(r.upsert(ctx, logger, s))
		}
	case ModeConsolidated:
		for _, members := range group(summaries) {
			if ctx.Err() != nil {
				break
			}
			merged, warnings := merge(members)
			for _, w := range warnings {
				logging.WarnWithContext(logger, "identity fields disagree across years", "identity_conflict",
					logging.String(logging.FieldRegNo, w.RegNo),
					logging.String("field", w.Field),
					logging.String("kept", w.Kept),
					logging.String("discarded", w.Discarded),
					logging.String(logging.FieldImpact, "most recent value written"),
					logging.String(logging.FieldErrorHint, "correct the source rows for the older year"),
				)
			}
			report.Warnings = append(report.Warnings, warnings...)
			report.add(r.upsert(ctx, logger, merged))
		}
	}
	report.Cancelled = ctx.Err() != nil
	logger.Info("reconcile finished",
		logging.Int("created", report.Created),
		logging.Int("updated", report.Updated),
		logging.Int("conflicted", report.Conflicted),
		logging.Int("failed", report.Failed),
		logging.Int("warnings", len(report.Warnings)),
		logging.Bool("cancelled", report.Cancelled),
	)
	return report, nil
}

func (r *Reconciler) acquire(ctx context.Context) (func(), error) {
	if r.lockPath == "" {
		return func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(r.lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	lock := flock.New(r.lockPath)
	lockCtx := ctx
	if r.lockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, r.lockTimeout)
		defer cancel()
	}
	ok, err := lock.TryLockContext(lockCtx, 100*time.Millisecond)
	if err != nil || !ok {
		if err == nil {
			err = errors.New("lock held by another process")
		}
		return nil, fmt.Errorf("acquire sync lock %s: %w", r.lockPath, err)
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			r.logger.Warn("failed to release sync lock", logging.Error(err))
		}
	}, nil
}

func (r *Reconciler) upsert(ctx context.Context, logger *slog.Logger, s Summary) RecordResult {
	key := s.Identity.Key()
	res := RecordResult{Key: key}
	logger = logger.With(logging.String(logging.FieldRegNo, key.RegNo), logging.Int(logging.FieldYearFlag, key.YearFlag))

	if !key.Valid() {
		err := failures.Wrap(failures.KindStore, "upsert", fmt.Errorf("malformed composite key %q", key.String()))
		return r.failed(logger, res, err)
	}
	fields := StudentFields(s)
	storeKey := StudentKey(key)

	outcome, attempts, err := Upsert(ctx, r.store, r.retry, r.table, storeKey, fields)
	res.Attempts = attempts
	switch {
	case errors.Is(err, nocodb.ErrConcurrentModification):
		res.Outcome = OutcomeConflicted
		res.Kind = failures.KindOf(err)
		res.Reason = err.Error()
		logging.WarnWithContext(logger, "record changed by another writer; not overwritten", "sync_conflict",
			logging.Error(err),
			logging.String(logging.FieldImpact, "external record left as the other writer stored it"),
			logging.String(logging.FieldErrorHint, "re-run sync after the other writer finishes"),
		)
		return res
	case err != nil:
		return r.failed(logger, res, err)
	}
	res.Outcome = outcome
	logger.Debug("record reconciled", logging.String("outcome", string(outcome)), logging.Int("attempts", attempts))
	return res
}

func (r *Reconciler) failed(logger *slog.Logger, res RecordResult, err error) RecordResult {
	res.Outcome = OutcomeFailed
	res.Kind = failures.KindOf(err)
	res.Reason = err.Error()
	logging.WarnWithContext(logger, "record sync failed", "sync_failed",
		logging.String(logging.FieldErrorKind, res.Kind),
		logging.Int("attempts", res.Attempts),
		logging.Error(err),
		logging.String(logging.FieldImpact, "external record not updated"),
	)
	return res
}

// Upsert updates the row matching key or creates it, retrying transient
// failures under retry. The whole lookup-then-write sequence is repeated on
// each attempt so a create that landed before a dropped response becomes an
// update.
func Upsert(ctx context.Context, store Store, retry Retry, table string, key nocodb.Key, fields nocodb.Fields) (Outcome, int, error) {
	var outcome Outcome
	attempts, err := retry.Do(ctx, func(ctx context.Context) error {
		current, found, err := store.Lookup(ctx, table, key)
		if err != nil {
			return err
		}
		if found {
			outcome = OutcomeUpdated
			_, err = store.Update(ctx, table, current, fields)
			return err
		}
		outcome = OutcomeCreated
		_, err = store.Create(ctx, table, fields)
		return err
	})
	return outcome, attempts, err
}

// StudentKey renders a composite key for the student table.
func StudentKey(key records.Key) nocodb.Key {
	return nocodb.Key{
		{Column: "REGN_NO", Value: key.RegNo},
		{Column: "YEAR_FLAG", Value: strconv.Itoa(key.YearFlag)},
	}
}

// StudentFields is the row written for a summary.
func StudentFields(s Summary) nocodb.Fields {
	id := s.Identity
	flag := 0
	if id.Consolidated {
		flag = 1
	}
	fields := nocodb.Fields{
		"REGN_NO":                      id.RegNo,
		"CNAME":                        id.Name,
		"ACADEMIC_COURSE_ID":           id.Program,
		"YEAR_FLAG":                    id.YearFlag,
		"consolidated_grade_card_flag": flag,
		"TOT_CREDIT":                   metrics.Credits(s.Transcript.CreditsAttempted),
		"CUMULATIVE_CREDITS":           metrics.Credits(s.Transcript.CreditsEarned),
		"CGPA":                         s.Transcript.CGPAString(),
	}
	if id.AdmissionYear > 0 {
		fields["ADMISSION_YEAR"] = id.AdmissionYear
	}
	if id.YearOfCompletion != "" {
		fields["YEAR_OF_COMPLETION"] = id.YearOfCompletion
	}
	if id.PhotoRef != "" {
		fields["PHOTO_URL"] = id.PhotoRef
	}
	return fields
}

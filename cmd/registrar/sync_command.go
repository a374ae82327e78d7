package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"registrar/internal/config"
	"registrar/internal/failures"
	"registrar/internal/grading"
	"registrar/internal/logging"
	"registrar/internal/metrics"
	"registrar/internal/reconcile"
	"registrar/internal/records"
)

type syncOptions struct {
	mode          string
	regNos        []string
	yearFlag      int
	admissionYear int
	program       string
	jsonOutput    bool
}

// computeFailure is a student whose summary could not be computed.
type computeFailure struct {
	Key    records.Key
	Kind   string
	Reason string
}

type syncRecordJSON struct {
	RegNo    string `json:"regn_no"`
	YearFlag int    `json:"year_flag"`
	Outcome  string `json:"outcome"`
	Attempts int    `json:"attempts,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

type syncWarningJSON struct {
	RegNo     string `json:"regn_no"`
	Field     string `json:"field"`
	Kept      string `json:"kept"`
	Discarded string `json:"discarded"`
}

type syncReportJSON struct {
	RunID      string            `json:"run_id"`
	Mode       string            `json:"mode"`
	Created    int               `json:"created"`
	Updated    int               `json:"updated"`
	Conflicted int               `json:"conflicted"`
	Failed     int               `json:"failed"`
	Cancelled  bool              `json:"cancelled"`
	Records    []syncRecordJSON  `json:"records"`
	Warnings   []syncWarningJSON `json:"warnings"`
}

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var opts syncOptions

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Write computed credits and CGPA to the NocoDB student table",
		Long: `Compute each student's summary from the database and upsert it into NocoDB.

per-year      one row per (REGN_NO, YEAR_FLAG) for --year-flag
consolidated  one row per student (YEAR_FLAG 0) merged across all years`,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := reconcile.ParseMode(opts.mode)
			if err != nil {
				return err
			}
			if mode == reconcile.ModePerYear && opts.yearFlag < 1 {
				return errors.New("--year-flag is required for per-year sync")
			}
			return runSync(cmd, ctx, mode, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.mode, "mode", "m", string(reconcile.ModePerYear), "Sync mode: per-year or consolidated")
	cmd.Flags().StringSliceVar(&opts.regNos, "regn", nil, "Registration numbers; defaults to every matching student")
	cmd.Flags().IntVarP(&opts.yearFlag, "year-flag", "y", 0, "Year flag to sync (per-year) or filter by (consolidated)")
	cmd.Flags().IntVar(&opts.admissionYear, "admission-year", 0, "Only students admitted in this year")
	cmd.Flags().StringVar(&opts.program, "program", "", "Only students of this program code")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func runSync(cmd *cobra.Command, cmdCtx *commandContext, mode reconcile.Mode, opts syncOptions) error {
	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := cmdCtx.ensureLogger()
	if err != nil {
		return err
	}
	client, err := cmdCtx.nocodbClient()
	if err != nil {
		return err
	}
	table, err := grading.NewFromConfig(cfg.Grading)
	if err != nil {
		return err
	}
	calc := metrics.New(table, cfg.Grading.Precision)
	runCtx := cmd.Context()

	return cmdCtx.withStore(runCtx, func(store *records.Store) error {
		regNos := cleanList(opts.regNos)
		if len(regNos) == 0 {
			regNos, err = store.List(runCtx, records.Filter{YearFlag: opts.yearFlag, AdmissionYear: opts.admissionYear, Program: opts.program})
			if err != nil {
				return err
			}
		}
		if len(regNos) == 0 {
			return errors.New("no students match the selection")
		}

		summaries, skipped := collectSummaries(runCtx, cfg, store, calc, logger, mode, regNos, opts.yearFlag)
		reconciler := reconcile.NewFromConfig(cfg, client, logger)
		report, err := reconciler.Reconcile(runCtx, summaries, mode)
		if err != nil {
			return err
		}

		if opts.jsonOutput {
			if err := writeJSON(cmd, syncReportToJSON(report, skipped)); err != nil {
				return err
			}
		} else {
			printSyncReport(cmd, report, skipped)
		}
		if failed := report.Failed + len(skipped); failed > 0 {
			return fmt.Errorf("%d students not synced", failed)
		}
		if runCtx.Err() != nil {
			return runCtx.Err()
		}
		return nil
	})
}

// collectSummaries fetches and computes the summaries to reconcile. Per-year
// mode computes one summary per student for yearFlag; consolidated mode
// computes one per student year so the reconciler can merge them. Every
// student in regNos ends up as a summary or a failure.
func collectSummaries(ctx context.Context, cfg *config.Config, store *records.Store, calc *metrics.Calculator, logger *slog.Logger, mode reconcile.Mode, regNos []string, yearFlag int) ([]reconcile.Summary, []computeFailure) {
	var (
		summaries []reconcile.Summary
		failed    []computeFailure
	)
	fail := func(key records.Key, err error) {
		kind := failures.KindOf(err)
		logging.WarnWithContext(logger, "student summary not computed", "sync_compute_failed",
			logging.String(logging.FieldRegNo, key.RegNo),
			logging.Int(logging.FieldYearFlag, key.YearFlag),
			logging.String(logging.FieldErrorKind, kind),
			logging.Error(err),
			logging.String(logging.FieldImpact, "student skipped in this sync"),
		)
		failed = append(failed, computeFailure{Key: key, Kind: kind, Reason: err.Error()})
	}
	timeout := cfg.UnitTimeout()

	for _, regNo := range regNos {
		if ctx.Err() != nil {
			break
		}
		flags := []int{yearFlag}
		if mode == reconcile.ModeConsolidated {
			all, err := store.YearFlags(ctx, regNo)
			if err != nil {
				fail(records.Key{RegNo: regNo}, err)
				continue
			}
			flags = all
			if len(flags) == 0 {
				// Only a consolidated row exists; fetch the whole history.
				flags = []int{0}
			}
		}
		for _, flag := range flags {
			key := records.Key{RegNo: regNo, YearFlag: flag}
			fetchCtx, cancel := ctx, context.CancelFunc(func() {})
			if timeout > 0 {
				fetchCtx, cancel = context.WithTimeout(ctx, timeout)
			}
			identity, courses, err := store.Fetch(fetchCtx, records.Request{RegNo: regNo, YearFlag: flag})
			cancel()
			if err != nil {
				fail(key, err)
				continue
			}
			summary, err := calc.ComputeTranscript(courses)
			if err != nil {
				fail(key, err)
				continue
			}
			summaries = append(summaries, reconcile.Summary{Identity: identity, Transcript: summary})
		}
	}
	return summaries, failed
}

func syncReportToJSON(report reconcile.Report, skipped []computeFailure) syncReportJSON {
	out := syncReportJSON{
		RunID:      report.RunID,
		Mode:       string(report.Mode),
		Created:    report.Created,
		Updated:    report.Updated,
		Conflicted: report.Conflicted,
		Failed:     report.Failed + len(skipped),
		Cancelled:  report.Cancelled,
		Records:    make([]syncRecordJSON, 0, len(report.Records)+len(skipped)),
		Warnings:   make([]syncWarningJSON, 0, len(report.Warnings)),
	}
	for _, rec := range report.Records {
		out.Records = append(out.Records, syncRecordJSON{
			RegNo:    rec.Key.RegNo,
			YearFlag: rec.Key.YearFlag,
			Outcome:  string(rec.Outcome),
			Attempts: rec.Attempts,
			Kind:     rec.Kind,
			Reason:   rec.Reason,
		})
	}
	for _, s := range skipped {
		out.Records = append(out.Records, syncRecordJSON{
			RegNo:    s.Key.RegNo,
			YearFlag: s.Key.YearFlag,
			Outcome:  string(reconcile.OutcomeFailed),
			Kind:     s.Kind,
			Reason:   s.Reason,
		})
	}
	for _, w := range report.Warnings {
		out.Warnings = append(out.Warnings, syncWarningJSON{RegNo: w.RegNo, Field: w.Field, Kept: w.Kept, Discarded: w.Discarded})
	}
	return out
}

func printSyncReport(cmd *cobra.Command, report reconcile.Report, skipped []computeFailure) {
	out := cmd.OutOrStdout()
	rows := make([][]string, 0, len(report.Records)+len(skipped))
	for _, rec := range report.Records {
		detail := ""
		if rec.Reason != "" {
			detail = rec.Kind + ": " + rec.Reason
		}
		rows = append(rows, []string{rec.Key.RegNo, strconv.Itoa(rec.Key.YearFlag), string(rec.Outcome), strconv.Itoa(rec.Attempts), detail})
	}
	for _, s := range skipped {
		rows = append(rows, []string{s.Key.RegNo, strconv.Itoa(s.Key.YearFlag), string(reconcile.OutcomeFailed), "0", s.Kind + ": " + s.Reason})
	}
	if len(rows) > 0 {
		fmt.Fprintln(out, renderTable([]string{"REGN_NO", "Year", "Outcome", "Attempts", "Detail"}, rows,
			[]columnAlignment{alignLeft, alignRight, alignLeft, alignRight}))
	}
	if len(report.Warnings) > 0 {
		warnRows := make([][]string, 0, len(report.Warnings))
		for _, w := range report.Warnings {
			warnRows = append(warnRows, []string{w.RegNo, w.Field, w.Kept, w.Discarded})
		}
		fmt.Fprintln(out, "Identity conflicts (most recent value kept):")
		fmt.Fprintln(out, renderTable([]string{"REGN_NO", "Field", "Kept", "Discarded"}, warnRows, nil))
	}
	fmt.Fprintf(out, "%d created, %d updated, %d conflicted, %d failed\n",
		report.Created, report.Updated, report.Conflicted, report.Failed+len(skipped))
	if report.Cancelled {
		fmt.Fprintln(out, "Sync cancelled; remaining students were not written")
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"registrar/internal/assets"
	"registrar/internal/batch"
	"registrar/internal/config"
	"registrar/internal/grading"
	"registrar/internal/metrics"
	"registrar/internal/records"
	"registrar/internal/render"
)

type documentMode struct {
	kind  render.Kind
	use   string
	short string
}

var (
	documentGradeCards  = documentMode{kind: render.KindGradeCard, use: "gradecards", short: "Generate grade cards for one year"}
	documentTranscripts = documentMode{kind: render.KindTranscript, use: "transcripts", short: "Generate consolidated transcripts"}
)

type documentOptions struct {
	regNos        []string
	yearFlag      int
	admissionYear int
	program       string
	consolidated  bool
	outputDir     string
	zipPath       string
	jsonOutput    bool
}

type documentResultJSON struct {
	RegNo    string `json:"regn_no"`
	YearFlag int    `json:"year_flag"`
	Status   string `json:"status"`
	Kind     string `json:"kind,omitempty"`
	Reason   string `json:"reason,omitempty"`
	File     string `json:"file,omitempty"`
}

type documentReportJSON struct {
	RunID     string               `json:"run_id"`
	Kind      string               `json:"kind"`
	Total     int                  `json:"total"`
	Succeeded int                  `json:"succeeded"`
	Failed    int                  `json:"failed"`
	Skipped   int                  `json:"skipped"`
	Cancelled bool                 `json:"cancelled"`
	Zip       string               `json:"zip,omitempty"`
	Results   []documentResultJSON `json:"results"`
}

func newDocumentsCommand(ctx *commandContext, mode documentMode) *cobra.Command {
	var opts documentOptions

	cmd := &cobra.Command{
		Use:   mode.use,
		Short: mode.short,
		Long: `Fetch student records, compute SGPA/CGPA and write one PDF per student.
Students come from --regn, or from the database filtered by the other flags.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if mode.kind == render.KindGradeCard && opts.yearFlag < 1 {
				return errors.New("--year-flag is required for grade cards")
			}
			return runDocuments(cmd, ctx, mode.kind, opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.regNos, "regn", nil, "Registration numbers (repeat or comma-separate); defaults to every matching student")
	cmd.Flags().IntVarP(&opts.yearFlag, "year-flag", "y", 0, "Year flag to generate (grade cards) or filter by (transcripts)")
	cmd.Flags().IntVar(&opts.admissionYear, "admission-year", 0, "Only students admitted in this year")
	cmd.Flags().StringVar(&opts.program, "program", "", "Only students of this program code")
	if mode.kind == render.KindTranscript {
		cmd.Flags().BoolVar(&opts.consolidated, "consolidated", false, "Only students with a consolidated record")
	}
	cmd.Flags().StringVarP(&opts.outputDir, "output", "o", "", "Output directory (defaults to paths.output_dir)")
	cmd.Flags().StringVar(&opts.zipPath, "zip", "", "Also bundle the documents into this zip file")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func runDocuments(cmd *cobra.Command, cmdCtx *commandContext, kind render.Kind, opts documentOptions) error {
	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := cmdCtx.ensureLogger()
	if err != nil {
		return err
	}
	table, err := grading.NewFromConfig(cfg.Grading)
	if err != nil {
		return err
	}
	issued := cfg.IssueTime(time.Now())
	calc := metrics.New(table, cfg.Grading.Precision)
	renderer := render.New(render.OptionsFromConfig(cfg, issued), table, logger)
	photos := assets.NewStore(cfg, logger)

	outputDir := cfg.Paths.OutputDir
	if strings.TrimSpace(opts.outputDir) != "" {
		if outputDir, err = config.ExpandPath(opts.outputDir); err != nil {
			return err
		}
	}

	runCtx := cmd.Context()
	if runCtx == nil {
		runCtx = context.Background()
	}

	return cmdCtx.withStore(runCtx, func(store *records.Store) error {
		requests, err := documentRequests(runCtx, store, kind, opts)
		if err != nil {
			return err
		}
		if len(requests) == 0 {
			return errors.New("no students match the selection")
		}

		tracker := newProgressTracker(cmd.ErrOrStderr(), len(requests), string(kind)+"s")
		orch := batch.New(calc, renderer, logger,
			batch.WithConcurrency(cfg.Batch.Concurrency),
			batch.WithUnitTimeout(cfg.UnitTimeout()),
			batch.WithProgress(func(p batch.Progress) { tracker.set(p.Completed) }),
		)
		report := orch.Run(runCtx, requests, kind, store, photos)
		tracker.finish()

		artifacts := report.Artifacts()
		written, err := batch.WriteFiles(outputDir, artifacts)
		if err != nil {
			return err
		}
		files := make(map[string]string, len(written))
		for i, path := range written {
			files[artifacts[i].Filename] = path
		}

		zipPath := ""
		if strings.TrimSpace(opts.zipPath) != "" && len(artifacts) > 0 {
			if zipPath, err = writeBundle(opts.zipPath, artifacts, issued); err != nil {
				return err
			}
		}

		if opts.jsonOutput {
			if err := writeJSON(cmd, documentReportToJSON(report, files, zipPath)); err != nil {
				return err
			}
		} else {
			printDocumentReport(cmd, report, files, zipPath)
		}

		switch {
		case report.Cancelled:
			return context.Canceled
		case report.Failed > 0:
			return fmt.Errorf("%d of %d documents failed", report.Failed, report.Total)
		}
		return nil
	})
}

func documentRequests(ctx context.Context, store *records.Store, kind render.Kind, opts documentOptions) ([]records.Request, error) {
	yearFlag := 0
	if kind == render.KindGradeCard {
		yearFlag = opts.yearFlag
	}
	regNos := cleanList(opts.regNos)
	if len(regNos) == 0 {
		listed, err := store.List(ctx, records.Filter{
			YearFlag:      opts.yearFlag,
			AdmissionYear: opts.admissionYear,
			Program:       opts.program,
			Consolidated:  opts.consolidated,
		})
		if err != nil {
			return nil, err
		}
		regNos = listed
	}
	requests := make([]records.Request, 0, len(regNos))
	for _, regNo := range regNos {
		requests = append(requests, records.Request{RegNo: regNo, YearFlag: yearFlag})
	}
	return requests, nil
}

func writeBundle(path string, artifacts []render.Artifact, modTime time.Time) (string, error) {
	target, err := config.ExpandPath(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create zip directory: %w", err)
	}
	f, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create zip: %w", err)
	}
	if err := batch.Bundle(f, artifacts, modTime); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close zip: %w", err)
	}
	return target, nil
}

func documentReportToJSON(report batch.Report, files map[string]string, zipPath string) documentReportJSON {
	out := documentReportJSON{
		RunID:     report.RunID,
		Kind:      string(report.Kind),
		Total:     report.Total,
		Succeeded: report.Succeeded,
		Failed:    report.Failed,
		Skipped:   report.Skipped,
		Cancelled: report.Cancelled,
		Zip:       zipPath,
		Results:   make([]documentResultJSON, 0, len(report.Results)),
	}
	for _, res := range report.Results {
		item := documentResultJSON{
			RegNo:    res.ID.RegNo,
			YearFlag: res.ID.YearFlag,
			Status:   string(res.Status),
			Kind:     res.Kind,
			Reason:   res.Reason,
		}
		if res.Artifact != nil {
			item.File = files[res.Artifact.Filename]
		}
		out.Results = append(out.Results, item)
	}
	return out
}

func printDocumentReport(cmd *cobra.Command, report batch.Report, files map[string]string, zipPath string) {
	out := cmd.OutOrStdout()
	rows := make([][]string, 0, len(report.Results))
	for _, res := range report.Results {
		detail := res.Reason
		if res.Artifact != nil {
			detail = filepath.Base(files[res.Artifact.Filename])
		} else if res.Kind != "" {
			detail = res.Kind + ": " + res.Reason
		}
		rows = append(rows, []string{res.ID.RegNo, strconv.Itoa(res.ID.YearFlag), string(res.Status), detail})
	}
	if len(rows) > 0 {
		fmt.Fprintln(out, renderTable([]string{"REGN_NO", "Year", "Status", "Detail"}, rows, []columnAlignment{alignLeft, alignRight}))
	}
	fmt.Fprintf(out, "%d succeeded, %d failed, %d skipped of %d\n", report.Succeeded, report.Failed, report.Skipped, report.Total)
	if report.Cancelled {
		fmt.Fprintln(out, "Run cancelled; unfinished students were not processed")
	}
	if zipPath != "" {
		fmt.Fprintf(out, "Bundle: %s\n", zipPath)
	}
}

func cleanList(values []string) []string {
	var out []string
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

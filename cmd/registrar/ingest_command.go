package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"registrar/internal/config"
	"registrar/internal/ingest"
)

type ingestReportJSON struct {
	RunID      string `json:"run_id"`
	Table      string `json:"table"`
	Total      int    `json:"total"`
	Created    int    `json:"created"`
	Updated    int    `json:"updated"`
	Conflicted int    `json:"conflicted"`
	Failed     int    `json:"failed"`
	Rejected   int    `json:"rejected"`
	Cancelled  bool   `json:"cancelled"`
	Problems   []ingestProblemJSON `json:"problems"`
}

type ingestProblemJSON struct {
	Line   int    `json:"line"`
	Key    string `json:"key,omitempty"`
	Reason string `json:"reason"`
}

func newIngestCommand(ctx *commandContext) *cobra.Command {
	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Import CSV exports into NocoDB",
	}
	ingestCmd.AddCommand(newIngestStudentsCommand(ctx))
	ingestCmd.AddCommand(newIngestCoursesCommand(ctx))
	return ingestCmd
}

func newIngestStudentsCommand(ctx *commandContext) *cobra.Command {
	var yearFlag int
	var consolidated bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "students <file.csv>",
		Short: "Upsert student details keyed by (REGN_NO, YEAR_FLAG)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("year-flag") && !consolidated {
				return errors.New("--year-flag is required")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			sheet, err := readSheet(args[0], func(f *os.File) (ingest.Sheet, error) {
				return ingest.ReadStudents(f, yearFlag, consolidated)
			})
			if err != nil {
				return err
			}
			return runIngest(cmd, ctx, cfg.NocoDB.StudentTable, sheet, jsonOutput)
		},
	}
	cmd.Flags().IntVarP(&yearFlag, "year-flag", "y", 0, "YEAR_FLAG assigned to every row (0 allowed with --consolidated)")
	cmd.Flags().BoolVar(&consolidated, "consolidated", false, "Rows are consolidated records; every row must have consolidated_grade_card_flag = 1")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newIngestCoursesCommand(ctx *commandContext) *cobra.Command {
	var yearFlag int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "courses <file.csv>",
		Short: "Reshape a wide course sheet and upsert one row per subject",
		Long: `Reshape a wide course sheet into one row per student subject.

Subject columns are numbered groups: SUB<n> is the subject code, SUB<n>NM its
name and SUB<n>_<METRIC> the values (GRADE, CREDIT, TOT, MONTH_YEAR_COMPLETION,
YEAR_COMPLETION, MONTH_COMPLETION_IN_NUMBER, ...). Rows are keyed by
(REGN_NO, YEAR_FLAG, SUBJECT_CODE).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			sheet, err := readSheet(args[0], func(f *os.File) (ingest.Sheet, error) {
				return ingest.ReadCourses(f, yearFlag)
			})
			if err != nil {
				return err
			}
			return runIngest(cmd, ctx, cfg.NocoDB.CourseTable, sheet, jsonOutput)
		},
	}
	cmd.Flags().IntVarP(&yearFlag, "year-flag", "y", 1, "YEAR_FLAG assigned to every row")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func readSheet(path string, parse func(*os.File) (ingest.Sheet, error)) (ingest.Sheet, error) {
	resolved, err := config.ExpandPath(path)
	if err != nil {
		return ingest.Sheet{}, err
	}
	f, err := os.Open(resolved)
	if err != nil {
		return ingest.Sheet{}, fmt.Errorf("open sheet: %w", err)
	}
	defer f.Close()
	return parse(f)
}

func runIngest(cmd *cobra.Command, cmdCtx *commandContext, table string, sheet ingest.Sheet, jsonOutput bool) error {
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

	tracker := newProgressTracker(cmd.ErrOrStderr(), len(sheet.Rows), "rows")
	importer := ingest.NewFromConfig(cfg, client, logger, ingest.WithProgress(func(done, _ int) { tracker.set(done) }))
	report := importer.Import(cmd.Context(), table, sheet)
	tracker.finish()

	if jsonOutput {
		if err := writeJSON(cmd, ingestReportToJSON(report, sheet)); err != nil {
			return err
		}
	} else {
		printIngestReport(cmd, report, sheet)
	}
	if report.Cancelled {
		return cmd.Context().Err()
	}
	if bad := report.Failed + report.Rejected; bad > 0 {
		return fmt.Errorf("%d of %d rows not imported", bad, report.Total)
	}
	return nil
}

func ingestReportToJSON(report ingest.Report, sheet ingest.Sheet) ingestReportJSON {
	out := ingestReportJSON{
		RunID:      report.RunID,
		Table:      report.Table,
		Total:      report.Total,
		Created:    report.Created,
		Updated:    report.Updated,
		Conflicted: report.Conflicted,
		Failed:     report.Failed,
		Rejected:   report.Rejected,
		Cancelled:  report.Cancelled,
	}
	out.Problems = []ingestProblemJSON{}
	for _, rej := range sheet.Rejected {
		out.Problems = append(out.Problems, ingestProblemJSON{Line: rej.Line, Reason: rej.Err.Error()})
	}
	for _, row := range report.Rows {
		if row.Reason == "" {
			continue
		}
		out.Problems = append(out.Problems, ingestProblemJSON{Line: row.Line, Key: row.Key, Reason: row.Kind + ": " + row.Reason})
	}
	return out
}

func printIngestReport(cmd *cobra.Command, report ingest.Report, sheet ingest.Sheet) {
	out := cmd.OutOrStdout()
	var rows [][]string
	for _, rej := range sheet.Rejected {
		rows = append(rows, []string{strconv.Itoa(rej.Line), rej.RegNo, "rejected", rej.Err.Error()})
	}
	for _, row := range report.Rows {
		if row.Reason == "" {
			continue
		}
		rows = append(rows, []string{strconv.Itoa(row.Line), row.Key, string(row.Outcome), row.Kind + ": " + row.Reason})
	}
	if len(rows) > 0 {
		fmt.Fprintln(out, renderTable([]string{"Line", "Key", "Outcome", "Detail"}, rows, []columnAlignment{alignRight}))
	}
	if len(sheet.Ignored) > 0 {
		fmt.Fprintf(out, "Ignored columns: %v\n", sheet.Ignored)
	}
	fmt.Fprintf(out, "%s: %d created, %d updated, %d conflicted, %d failed, %d rejected\n",
		report.Table, report.Created, report.Updated, report.Conflicted, report.Failed, report.Rejected)
}

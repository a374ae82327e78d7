package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"registrar/internal/preflight"
	"registrar/internal/records"
)

type statusCheckJSON struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check directories, database and NocoDB connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			runCtx := cmd.Context()

			var targets preflight.Targets
			store, err := records.Open(runCtx, cfg.Database, logger)
			if err != nil {
				targets.DatabaseErr = err
			} else {
				defer store.Close()
				targets.Database = store
			}
			if cfg.RequireNocoDB() == nil {
				if client, err := ctx.nocodbClient(); err == nil {
					targets.Store = client
				}
			}

			results := preflight.RunAll(runCtx, cfg, targets)
			if jsonOutput {
				out := make([]statusCheckJSON, 0, len(results))
				for _, r := range results {
					out = append(out, statusCheckJSON(r))
				}
				return writeJSON(cmd, out)
			}

			rows := make([][]string, 0, len(results))
			for _, r := range results {
				rows = append(rows, []string{r.Name, passLabel(r.Passed), r.Detail})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Check", "Status", "Detail"}, rows, nil))
			if failed := preflight.Failed(results); len(failed) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%d of %d checks failed\n", len(failed), len(results))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func passLabel(passed bool) string {
	if passed {
		return "OK"
	}
	return "FAIL"
}

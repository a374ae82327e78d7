package preflight

import (
	"context"

	"registrar/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Pinger is satisfied by the record source.
type Pinger interface {
	Ping(ctx context.Context) error
}

// TablePinger is satisfied by the external record store.
type TablePinger interface {
	Ping(ctx context.Context, table string) error
}

// Targets carries the live connections to check. Nil members are reported as
// unavailable rather than skipped.
type Targets struct {
	Database Pinger
	// DatabaseErr is the error from opening the database, if that failed.
	DatabaseErr error
	Store       TablePinger
}

// MinFreeBytes is the free space required in the output directory.
const MinFreeBytes = 64 << 20

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config, targets Targets) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	}
	if cfg.Paths.PhotoDir != "" {
		results = append(results, CheckReadableDirectory("Photo directory", cfg.Paths.PhotoDir))
	}
	results = append(results, CheckFreeSpace("Output free space", cfg.Paths.OutputDir, MinFreeBytes))

	switch {
	case targets.DatabaseErr != nil:
		results = append(results, Result{Name: "Database", Detail: summarizeError(targets.DatabaseErr)})
	default:
		results = append(results, CheckDatabase(ctx, targets.Database))
	}

	if cfg.RequireNocoDB() != nil {
		results = append(results, Result{Name: "NocoDB", Passed: true, Detail: "Not configured"})
	} else {
		results = append(results, CheckNocoDB(ctx, targets.Store, cfg.NocoDB.StudentTable))
	}
	return results
}

// Failed returns the checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

// Package logging assembles structured slog loggers and formatting helpers used
// across registrar commands.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes helpers so batch and sync code can tag log lines with
// run identifiers and registration numbers. The package also provides a no-op
// logger for tests and wiring code that cannot fail.
package logging

// Package preflight provides readiness checks for the directories, database
// and external record store that registrar depends on.
//
// The CLI "registrar status" command prints RunAll as a table. Document and
// sync commands run the subset they need before starting a batch so a
// misconfigured environment fails once, up front, rather than per student.
//
// Checks for optional integrations are skipped (and reported as passing)
// when the integration is not configured.
package preflight

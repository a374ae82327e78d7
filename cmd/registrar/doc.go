// Package main hosts the registrar CLI entrypoint and command graph.
//
// The Cobra-based command tree generates grade cards and transcripts from the
// student database, keeps the NocoDB student table in sync with computed
// results, imports spreadsheets, and reports environment health. It
// centralizes configuration resolution and logging setup so subcommands can
// focus on user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main

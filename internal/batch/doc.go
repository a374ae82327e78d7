// Package batch runs document generation over a list of students.
//
// The Orchestrator fetches each student's rows, computes metrics and renders
// one document per identifier on a bounded errgroup. A failing identifier is
// recorded in the Report and never stops the rest of the batch. WriteFiles and
// Bundle hand the finished artifacts to disk or to a zip archive.
package batch

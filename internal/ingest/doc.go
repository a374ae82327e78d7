// Package ingest loads student and course spreadsheets exported as CSV into
// the external record store.
//
// Student sheets carry one row per student and year. Course sheets are wide:
// each subject occupies a numbered group of columns (SUB1, SUB1NM,
// SUB1_GRADE, SUB1_CREDIT, ...) that is reshaped into one row per subject
// before upload. Rows are validated with the same rules the record fetcher
// applies, so anything imported can later be graded.
package ingest

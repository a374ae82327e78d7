// Package reconcile pushes computed student summaries into the external
// record store.
//
// Per-year mode upserts one row per (REGN_NO, YEAR_FLAG). Consolidated mode
// merges every year of a student into a single row keyed by year flag 0 with
// consolidated_grade_card_flag set; identity fields that disagree across
// years are resolved in favour of the most recent record and reported as
// ConflictWarnings. Transient store errors are retried with capped
// exponential backoff; a row changed by another writer is reported as a
// conflict and left alone.
package reconcile

// Package records defines the student and course data model and the record
// fetcher that reads it from the relational source.
//
// Rows arrive loosely typed (numeric columns stored as text, nullable flags)
// and are validated with go-playground/validator before they are converted
// into StudentIdentity and CourseRecord values. Nothing past this package
// handles untyped rows.
//
// Store speaks to PostgreSQL through lib/pq or to a local SQLite snapshot
// through modernc.org/sqlite, both via sqlx.
package records

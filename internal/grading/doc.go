// Package grading holds the grade point table: an immutable mapping from grade
// symbols (and optional numeric mark bands) to grade points and pass/fail
// status. Build it once at startup and inject it into the metrics calculator.
package grading

// Package failures classifies errors into the cause categories reported to
// operators: grading data, connectivity, rendering, store access and
// configuration.
//
// Typed errors elsewhere implement Classifier directly; Wrap covers plain
// errors that need a category attached at a package boundary.
package failures

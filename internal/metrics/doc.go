// Package metrics computes SGPA and CGPA from course rows.
//
// All arithmetic is exact (math/big.Rat); rounding to the configured precision
// happens only when a value is formatted, so recomputing a summary over the
// same rows always yields the same figures.
package metrics

// Package render lays out grade cards and transcripts as PDF documents with
// go-pdf/fpdf.
//
// Rendering is a pure function of the student identity, the computed
// summary, the photo bytes and the renderer options. Document dates come from
// the configured issue date rather than the clock, so the same inputs always
// produce the same bytes.
package render

package render_test

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"registrar/internal/assets"
	"registrar/internal/config"
	"registrar/internal/failures"
	"registrar/internal/grading"
	"registrar/internal/logging"
	"registrar/internal/metrics"
	"registrar/internal/records"
	"registrar/internal/render"
)

var issued = time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)

func newRenderer(t *testing.T, compress bool) *render.Renderer {
	t.Helper()
	cfg := config.Default()
	opts := render.OptionsFromConfig(&cfg, issued)
	opts.Compress = compress
	return render.New(opts, grading.Default(), logging.NewNop())
}

func identity() records.StudentIdentity {
	return records.StudentIdentity{
		RegNo:            "AU21UG-006",
		Name:             "Asha Rao",
		Program:          "LS",
		AdmissionYear:    2021,
		YearOfCompletion: "2022",
		YearFlag:         1,
	}
}

func summary(t *testing.T, n int) metrics.TranscriptSummary {
	t.Helper()
	grades := []string{"O", "A+", "A", "B+", "F"}
	var rows []records.CourseRecord
	for i := 0; i < n; i++ {
		rows = append(rows, records.CourseRecord{
			RegNo:      "AU21UG-006",
			YearFlag:   1,
			Code:       fmt.Sprintf("LS%03d", i+1),
			Title:      fmt.Sprintf("Course number %d with a fairly long descriptive title", i+1),
			Credits:    big.NewRat(int64(1+i%4), 1),
			Grade:      grades[i%len(grades)],
			SemesterID: []string{"Dec 2021", "May 2022"}[i%2],
		})
	}
	sum, err := metrics.New(grading.Default(), 2).ComputeTranscript(rows)
	if err != nil {
		t.Fatalf("ComputeTranscript: %v", err)
	}
	return sum
}

func TestRenderIsDeterministic(t *testing.T) {
	r := newRenderer(t, true)
	sum := summary(t, 8)
	photo := assets.Placeholder(68, 85)

	for _, kind := range []render.Kind{render.KindGradeCard, render.KindTranscript} {
		a, err := r.Render(kind, identity(), sum, photo)
		if err != nil {
			t.Fatalf("Render %s: %v", kind, err)
		}
		b, err := r.Render(kind, identity(), sum, photo)
		if err != nil {
			t.Fatalf("Render %s: %v", kind, err)
		}
		if !bytes.HasPrefix(a.Data, []byte("%PDF-")) {
			t.Fatalf("%s output is not a pdf", kind)
		}
		if !bytes.Equal(a.Data, b.Data) {
			t.Fatalf("%s output differs between identical renders", kind)
		}
	}
}

func TestRenderPrintsIdentityAndMetrics(t *testing.T) {
	r := newRenderer(t, false)
	sum := summary(t, 4)

	art, err := r.Render(render.KindGradeCard, identity(), sum, nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	for _, want := range []string{"(ASHA RAO)", "(AU21UG-006)", "(Life Sciences)", "(AU/21/UG/006)", "(" + sum.CGPAString() + ")", "(30 Jun 2024)"} {
		if !bytes.Contains(art.Data, []byte(want)) {
			t.Fatalf("grade card missing %s", want)
		}
	}
	if art.Filename != "AU21UG-006_Asha_Rao_GradeCard.pdf" {
		t.Fatalf("unexpected filename %q", art.Filename)
	}
}

func TestRenderUnknownProgramShowsCode(t *testing.T) {
	id := identity()
	id.Program = "XYZ"
	art, err := newRenderer(t, false).Render(render.KindTranscript, id, summary(t, 2), nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.Contains(art.Data, []byte("(XYZ)")) {
		t.Fatal("transcript should fall back to the program code")
	}
}

func TestRenderTranscriptManyCourses(t *testing.T) {
	r := newRenderer(t, false)
	sum := summary(t, 61)

	art, err := r.Render(render.KindTranscript, identity(), sum, []byte("not an image"))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	for _, want := range []string{"(61)", "(LS061)", "(VERIFIED BY)", "(REGISTRAR)"} {
		if !bytes.Contains(art.Data, []byte(want)) {
			t.Fatalf("transcript missing %s", want)
		}
	}
	if art.Kind != render.KindTranscript || art.Filename != "AU21UG-006_Asha_Rao_Transcript.pdf" {
		t.Fatalf("unexpected artifact: %s %s", art.Kind, art.Filename)
	}
}

func TestRenderRejectsMissingFields(t *testing.T) {
	r := newRenderer(t, true)
	sum := summary(t, 2)

	id := identity()
	id.Name = "  "
	_, err := r.Render(render.KindGradeCard, id, sum, nil)
	var renderErr *render.RenderError
	if !errors.As(err, &renderErr) {
		t.Fatalf("expected RenderError, got %v", err)
	}
	if failures.KindOf(err) != failures.KindRendering {
		t.Fatalf("unexpected kind %q", failures.KindOf(err))
	}

	if _, err := r.Render(render.KindTranscript, identity(), metrics.TranscriptSummary{}, nil); !errors.As(err, &renderErr) {
		t.Fatalf("expected RenderError for empty summary, got %v", err)
	}

	id = identity()
	id.YearFlag = 3
	if _, err := r.Render(render.KindGradeCard, id, sum, nil); !errors.As(err, &renderErr) {
		t.Fatalf("expected RenderError for year without rows, got %v", err)
	}
}

func TestDocumentNumber(t *testing.T) {
	tests := []struct {
		prefix, level, regNo, want string
	}{
		{"AU", "UG", "AU21UG-006", "AU/21/UG/006"},
		{"", "PG", "AU22PG-114", "22/PG/114"},
		{"AU", "UG", "X1", "X1"},
	}
	for _, tt := range tests {
		if got := render.DocumentNumber(tt.prefix, tt.level, tt.regNo); got != tt.want {
			t.Fatalf("DocumentNumber(%q) = %q, want %q", tt.regNo, got, tt.want)
		}
	}
}

func TestFilenameSanitizesName(t *testing.T) {
	got := render.Filename(render.KindGradeCard, records.StudentIdentity{RegNo: "R/1", Name: "Dr. A. B  Kumar"})
	if got != "R-1_Dr_A_B_Kumar_GradeCard.pdf" {
		t.Fatalf("unexpected filename %q", got)
	}
}

func TestParseKind(t *testing.T) {
	if k, err := render.ParseKind("Transcripts"); err != nil || k != render.KindTranscript {
		t.Fatalf("ParseKind: %v %v", k, err)
	}
	if _, err := render.ParseKind("diploma"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

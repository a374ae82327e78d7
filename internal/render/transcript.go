package render

import (
	"fmt"
	"strconv"
	"strings"

	"registrar/internal/metrics"
	"registrar/internal/records"
)

const (
	transcriptMargin    = 30.0
	transcriptGutter    = 10.0
	transcriptInfoTop   = 128.0
	transcriptInfoRow   = 14.0
	transcriptTableTop  = 250.0
	transcriptTableEnd  = 660.0
	transcriptMaxRowH   = 13.0
	transcriptPhotoX    = pageWidth - transcriptMargin - 63.0
	transcriptPhotoY    = 128.0
	transcriptSignature = 805.0
)

// Column widths inside one half of the course table: serial, code, title, credits, grade.
var transcriptColumns = [5]float64{18, 52, 142, 26, 24}

func (r *Renderer) transcript(d *document, identity records.StudentIdentity, summary metrics.TranscriptSummary, photo []byte) error {
	pdf := d.pdf
	pdf.AddPage()

	r.letterhead(d, "TRANSCRIPT")
	r.photo(d, photo, transcriptPhotoX, transcriptPhotoY, 63, 78)

	info := [][2]string{
		{"Transcript No", DocumentNumber(r.opts.NumberPrefix, r.opts.Level, identity.RegNo)},
		{"Name of the Student", r.upper.String(identity.Name)},
		{"Registration Number", identity.RegNo},
		{"Programme of Study", r.programName(identity.Program)},
		{"Year of Admission", yearOrDash(identity.AdmissionYear)},
		{"Year of Completion", dashIfEmpty(identity.YearOfCompletion)},
		{"Duration of Programme", durationLabel(r.opts.ProgramDuration)},
		{"Medium of Instruction", dashIfEmpty(r.opts.Medium)},
	}
	pdf.SetTextColor(0, 0, 0)
	for i, row := range info {
		y := transcriptInfoTop + transcriptInfoRow*float64(i+1)
		pdf.SetFont("Helvetica", "B", 9)
		d.text(transcriptMargin+10, y, row[0])
		d.text(transcriptMargin+130, y, ":")
		pdf.SetFont("Helvetica", "", 9)
		d.text(transcriptMargin+140, y, d.fit(row[1], transcriptPhotoX-transcriptMargin-150))
	}

	courses := summary.Courses()
	half := (len(courses) + 1) / 2
	rowH := transcriptMaxRowH
	if half > 0 {
		if fit := (transcriptTableEnd - transcriptTableTop) / float64(half+1); fit < rowH {
			rowH = fit
		}
	}
	colWidth := (pageWidth - 2*transcriptMargin - transcriptGutter) / 2
	left := courses[:half]
	right := courses[half:]
	r.courseColumn(d, transcriptMargin, rowH, colWidth, left, 1)
	if len(right) > 0 {
		r.courseColumn(d, transcriptMargin+colWidth+transcriptGutter, rowH, colWidth, right, half+1)
	}

	y := transcriptTableTop + rowH*float64(half+1) + 22
	pdf.SetFont("Helvetica", "B", 10)
	d.text(transcriptMargin+10, y, "Total Credits Earned: "+metrics.Credits(summary.CreditsEarned))
	d.text(pageWidth/2+10, y, "CGPA: "+summary.CGPAString())

	pdf.SetFont("Helvetica", "", 7.5)
	y += 14
	pdf.SetXY(transcriptMargin+10, y)
	pdf.MultiCell(pageWidth-2*transcriptMargin-20, 10, d.tr(semesterLine(summary)), "", "L", false)

	pdf.SetFont("Helvetica", "", 7.5)
	pdf.SetXY(transcriptMargin+10, pdf.GetY()+4)
	pdf.MultiCell(pageWidth-2*transcriptMargin-20, 10, d.tr(r.legend()), "", "L", false)

	pdf.SetFont("Helvetica", "", 9)
	d.text(transcriptMargin+10, transcriptSignature-30, "Date of Issue: "+r.opts.IssueDate.Format("02 Jan 2006"))
	pdf.SetFont("Helvetica", "B", 9)
	d.text(transcriptMargin+10, transcriptSignature, "VERIFIED BY")
	d.text(pageWidth-transcriptMargin-80, transcriptSignature, "REGISTRAR")
	return errOf(d)
}

func (r *Renderer) courseColumn(d *document, x, rowH, width float64, courses []metrics.GradedCourse, first int) {
	pdf := d.pdf
	scale := width / sum(transcriptColumns[:])
	widths := make([]float64, len(transcriptColumns))
	for i, w := range transcriptColumns {
		widths[i] = w * scale
	}

	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(0.4)
	pdf.SetFillColor(230, 230, 230)
	pdf.SetFont("Helvetica", "B", 7)
	pdf.SetXY(x, transcriptTableTop)
	for i, h := range []string{"Sl.", "Code", "Course Title", "Cr.", "Gr."} {
		pdf.CellFormat(widths[i], rowH, h, "1", 0, "C", true, 0, "")
	}

	fontSize := 7.0
	if rowH < 9 {
		fontSize = rowH * 0.75
	}
	pdf.SetFont("Helvetica", "", fontSize)
	for i, course := range courses {
		pdf.SetXY(x, transcriptTableTop+rowH*float64(i+1))
		pdf.CellFormat(widths[0], rowH, strconv.Itoa(first+i), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[1], rowH, d.tr(course.Code), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], rowH, d.tr(d.fit(course.Title, widths[2]-4)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[3], rowH, metrics.Credits(course.Credits), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[4], rowH, d.tr(course.Entry.Symbol), "1", 0, "C", false, 0, "")
	}
}

func (r *Renderer) legend() string {
	entries := r.table.Entries()
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, fmt.Sprintf("%s = %s", e.Symbol, e.PointsString()))
	}
	return "Grade points: " + strings.Join(parts, ", ")
}

func semesterLine(summary metrics.TranscriptSummary) string {
	parts := make([]string, 0, len(summary.Semesters))
	for _, sem := range summary.Semesters {
		parts = append(parts, fmt.Sprintf("%s: %s", sem.SemesterID, sem.SGPAString()))
	}
	return "SGPA by term: " + strings.Join(parts, "; ")
}

func durationLabel(years int) string {
	switch {
	case years <= 0:
		return "-"
	case years == 1:
		return "1 Year"
	}
	return fmt.Sprintf("%d Years", years)
}

func yearOrDash(year int) string {
	if year <= 0 {
		return "-"
	}
	return strconv.Itoa(year)
}

func dashIfEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

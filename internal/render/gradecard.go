package render

import (
	"fmt"
	"strconv"

	"registrar/internal/grading"
	"registrar/internal/metrics"
	"registrar/internal/records"
)

const (
	pageWidth  = 595.28
	pageHeight = 841.89
)

// Grade card coordinates, in points from the top-left corner. Baselines for
// text, top edges for boxes.
const (
	cardLabelLeft   = 40.0
	cardLabelRight  = 380.0
	cardValueRight  = 460.0
	cardNameX       = 167.5
	cardRegNoX      = 96.0
	cardProgramX    = 152.0
	cardNameY       = pageHeight - 702.5
	cardRegNoY      = pageHeight - 683.5
	cardProgramY    = pageHeight - 665.0
	cardPhotoX      = 485.0
	cardPhotoY      = pageHeight - 732.0 - cardPhotoH
	cardPhotoW      = 63.0
	cardPhotoH      = 78.0
	cardTableX      = 80.0
	cardTableTop    = pageHeight - 590.0
	cardRowStep     = 16.5
	cardTotalsLabel = 330.0
	cardTotalsValue = 475.0
	cardYearCredits = pageHeight - 246.0
	cardYearGPA     = pageHeight - 229.0
	cardTotalCredit = pageHeight - 212.0
	cardCGPA        = pageHeight - 178.0
	cardSignatureY  = 790.0
)

// Course table columns relative to cardTableX: serial, code, title, credits, grade.
var cardColumns = [5]float64{-18, 25, 90, 385, 440}

func (r *Renderer) gradeCard(d *document, identity records.StudentIdentity, cumulative, year metrics.TranscriptSummary, photo []byte) error {
	pdf := d.pdf
	pdf.AddPage()

	r.letterhead(d, "GRADE CARD")
	r.photo(d, photo, cardPhotoX, cardPhotoY, cardPhotoW, cardPhotoH)

	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "B", 9)
	d.text(cardLabelLeft, cardNameY, "Name of the Student:")
	d.text(cardLabelLeft, cardRegNoY, "Reg. No:")
	d.text(cardLabelLeft, cardProgramY, "Programme:")
	d.text(cardLabelRight, cardNameY, "Grade Card No:")
	d.text(cardLabelRight, cardRegNoY, "Year:")
	d.text(cardLabelRight, cardProgramY, "Date of Issue:")

	pdf.SetFont("Helvetica", "", 10)
	d.text(cardNameX, cardNameY, d.fit(r.upper.String(identity.Name), cardLabelRight-cardNameX-8))
	d.text(cardRegNoX, cardRegNoY, identity.RegNo)
	d.text(cardProgramX, cardProgramY, d.fit(r.programName(identity.Program), cardLabelRight-cardProgramX-8))
	d.text(cardValueRight, cardNameY, DocumentNumber(r.opts.NumberPrefix, r.opts.Level, identity.RegNo))
	d.text(cardValueRight, cardRegNoY, yearLabel(identity))
	d.text(cardValueRight, cardProgramY, r.opts.IssueDate.Format("02 Jan 2006"))

	courses := year.Courses()
	step := cardRowStep
	available := cardYearCredits - 30 - (cardTableTop + 20)
	if rows := float64(len(courses)); rows*step > available {
		step = available / rows
	}

	pdf.SetFont("Helvetica", "B", 9)
	headers := [5]string{"Sl.", "Course Code", "Course Title", "Credits", "Grade"}
	for i, h := range headers {
		d.text(cardTableX+cardColumns[i], cardTableTop, h)
	}
	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(0.6)
	pdf.Line(cardTableX-24, cardTableTop+5, pageWidth-40, cardTableTop+5)

	pdf.SetFont("Helvetica", "", 8.6)
	titleWidth := cardColumns[3] - cardColumns[2] - 8
	y := cardTableTop + 20
	for i, course := range courses {
		d.text(cardTableX+cardColumns[0], y, strconv.Itoa(i+1))
		d.text(cardTableX+cardColumns[1], y, course.Code)
		d.text(cardTableX+cardColumns[2], y, d.fit(course.Title, titleWidth))
		d.text(cardTableX+cardColumns[3], y, metrics.Credits(course.Credits))
		d.text(cardTableX+cardColumns[4], y, course.Entry.Symbol)
		y += step
	}
	pdf.Line(cardTableX-24, y-step+6, pageWidth-40, y-step+6)

	pdf.SetFont("Helvetica", "B", 9)
	d.text(cardTotalsLabel, cardYearCredits, "Credits Registered (this year):")
	d.text(cardTotalsLabel, cardYearGPA, "Grade Point Average (this year):")
	d.text(cardTotalsLabel, cardTotalCredit, "Total Credits Earned:")
	d.text(cardTotalsLabel, cardCGPA, "CGPA:")
	pdf.SetFont("Helvetica", "", 10)
	d.text(cardTotalsValue, cardYearCredits, metrics.Credits(year.CreditsAttempted))
	d.text(cardTotalsValue, cardYearGPA, year.CGPAString())
	d.text(cardTotalsValue, cardTotalCredit, metrics.Credits(cumulative.CreditsEarned))
	d.text(cardTotalsValue, cardCGPA, cumulative.CGPAString())

	pdf.SetFont("Helvetica", "B", 9)
	d.text(pageWidth-190, cardSignatureY, "Controller of Examinations")

	r.gradeTablePage(d)
	return errOf(d)
}

// letterhead draws the institution block and the document title.
func (r *Renderer) letterhead(d *document, title string) {
	pdf := d.pdf
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "B", 16)
	d.centered(52, r.opts.Institution)
	pdf.SetFont("Helvetica", "", 9)
	if r.opts.Address != "" {
		d.centered(68, r.opts.Address)
	}
	if r.opts.Established != "" {
		pdf.SetFont("Helvetica", "I", 8)
		d.centered(80, r.opts.Established)
	}
	pdf.SetFont("Helvetica", "B", 13)
	d.centered(110, title)
	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(1)
	pdf.Line(40, 118, pageWidth-40, 118)
}

// gradeTablePage appends the grade point legend as its own page.
func (r *Renderer) gradeTablePage(d *document) {
	pdf := d.pdf
	pdf.AddPage()
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "B", 13)
	d.centered(80, "GRADE POINT TABLE")

	const (
		left   = 160.0
		rowH   = 20.0
		colW   = 92.0
		header = 110.0
	)
	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(0.5)
	pdf.SetFillColor(230, 230, 230)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetXY(left, header)
	for _, h := range []string{"Grade", "Grade Point", "Result"} {
		pdf.CellFormat(colW, rowH, h, "1", 0, "C", true, 0, "")
	}
	pdf.SetFont("Helvetica", "", 10)
	for i, entry := range r.table.Entries() {
		pdf.SetXY(left, header+rowH*float64(i+1))
		pdf.CellFormat(colW, rowH, d.tr(entry.Symbol), "1", 0, "C", false, 0, "")
		pdf.CellFormat(colW, rowH, entry.PointsString(), "1", 0, "C", false, 0, "")
		pdf.CellFormat(colW, rowH, resultLabel(entry), "1", 0, "C", false, 0, "")
	}
}

func resultLabel(entry grading.Entry) string {
	if entry.Passing() {
		return "Pass"
	}
	return "Fail"
}

func yearLabel(identity records.StudentIdentity) string {
	if identity.YearOfCompletion != "" {
		return identity.YearOfCompletion
	}
	return fmt.Sprintf("Year %d", identity.YearFlag)
}

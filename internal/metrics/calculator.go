package metrics

import (
	"fmt"

	"registrar/internal/failures"
	"registrar/internal/grading"
	"registrar/internal/records"
)

// EmptyRecordSetError reports a semester with no course rows.
type EmptyRecordSetError struct {
	SemesterID string
}

func (e *EmptyRecordSetError) Error() string {
	if e.SemesterID == "" {
		return "no course records supplied"
	}
	return fmt.Sprintf("no course records for semester %q", e.SemesterID)
}

// ErrorKind implements failures.Classifier.
func (e *EmptyRecordSetError) ErrorKind() string { return failures.KindGrading }

// Calculator turns course rows into semester and cumulative metrics. It sums
// exactly the rows it is given; repeated course attempts are not deduplicated.
type Calculator struct {
	table     *grading.Table
	precision int
}

// New returns a calculator bound to table. Precision is the number of decimal
// places used when formatting SGPA and CGPA.
func New(table *grading.Table, precision int) *Calculator {
	if table == nil {
		table = grading.Default()
	}
	if precision < 0 {
		precision = 0
	}
	return &Calculator{table: table, precision: precision}
}

// Table returns the grade point table the calculator uses.
func (c *Calculator) Table() *grading.Table { return c.table }

// ComputeSemester summarises the rows belonging to semesterID. Credit-zero
// courses count toward neither total. Failing grades count toward attempted
// credits and the weighted sum but not earned credits.
func (c *Calculator) ComputeSemester(rows []records.CourseRecord, semesterID string) (SemesterSummary, error) {
	var graded []GradedCourse
	for _, row := range rows {
		if row.SemesterID != semesterID {
			continue
		}
		entry, err := c.table.Resolve(row.Grade, row.Marks)
		if err != nil {
			return SemesterSummary{}, fmt.Errorf("course %s in %s: %w", row.Code, semesterID, err)
		}
		graded = append(graded, GradedCourse{CourseRecord: row, Entry: entry})
	}
	if len(graded) == 0 {
		return SemesterSummary{}, &EmptyRecordSetError{SemesterID: semesterID}
	}
	return summarize(semesterID, graded, c.precision), nil
}

// ComputeTranscript groups rows by semester in first-seen order and folds the
// semesters into a CGPA.
func (c *Calculator) ComputeTranscript(rows []records.CourseRecord) (TranscriptSummary, error) {
	if len(rows) == 0 {
		return TranscriptSummary{}, &EmptyRecordSetError{}
	}
	var order []string
	seen := make(map[string]struct{})
	for _, row := range rows {
		if _, ok := seen[row.SemesterID]; ok {
			continue
		}
		seen[row.SemesterID] = struct{}{}
		order = append(order, row.SemesterID)
	}

	semesters := make([]SemesterSummary, 0, len(order))
	for _, id := range order {
		sem, err := c.ComputeSemester(rows, id)
		if err != nil {
			return TranscriptSummary{}, err
		}
		semesters = append(semesters, sem)
	}
	return Aggregate(semesters, c.precision), nil
}

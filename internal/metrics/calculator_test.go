package metrics_test

import (
	"errors"
	"math/big"
	"math/rand/v2"
	"testing"

	"registrar/internal/grading"
	"registrar/internal/metrics"
	"registrar/internal/records"
)

func fixtureTable(t *testing.T) *grading.Table {
	t.Helper()
	table, err := grading.New([]grading.Entry{
		{Symbol: "A", Points: big.NewRat(9, 1)},
		{Symbol: "B", Points: big.NewRat(8, 1)},
		{Symbol: "C", Points: big.NewRat(5, 1)},
		{Symbol: "F", Points: big.NewRat(0, 1), Failing: true},
	}, nil)
	if err != nil {
		t.Fatalf("fixture table: %v", err)
	}
	return table
}

func course(code, sem, grade string, credits int64) records.CourseRecord {
	return records.CourseRecord{RegNo: "R1", YearFlag: 1, Code: code, SemesterID: sem, Grade: grade, Credits: big.NewRat(credits, 1)}
}

func TestComputeSemesterWeightedMean(t *testing.T) {
	calc := metrics.New(fixtureTable(t), 2)
	rows := []records.CourseRecord{
		course("C1", "S1", "A", 4),
		course("C2", "S1", "B", 3),
	}

	sum, err := calc.ComputeSemester(rows, "S1")
	if err != nil {
		t.Fatalf("ComputeSemester: %v", err)
	}
	if sum.SGPA.Cmp(big.NewRat(60, 7)) != 0 {
		t.Fatalf("expected exact 60/7, got %s", sum.SGPA.RatString())
	}
	if sum.SGPAString() != "8.57" {
		t.Fatalf("expected 8.57, got %s", sum.SGPAString())
	}
	if metrics.Credits(sum.CreditsAttempted) != "7" || metrics.Credits(sum.CreditsEarned) != "7" {
		t.Fatalf("unexpected credits: %s / %s", sum.CreditsAttempted.RatString(), sum.CreditsEarned.RatString())
	}
}

func TestComputeSemesterFailingGrade(t *testing.T) {
	calc := metrics.New(fixtureTable(t), 2)
	rows := []records.CourseRecord{
		course("C1", "S1", "A", 4),
		course("C2", "S1", "F", 2),
	}
	sum, err := calc.ComputeSemester(rows, "S1")
	if err != nil {
		t.Fatalf("ComputeSemester: %v", err)
	}
	if metrics.Credits(sum.CreditsAttempted) != "6" {
		t.Fatalf("failing credits must count as attempted, got %s", sum.CreditsAttempted.RatString())
	}
	if metrics.Credits(sum.CreditsEarned) != "4" {
		t.Fatalf("failing credits must not count as earned, got %s", sum.CreditsEarned.RatString())
	}
	if sum.SGPAString() != "6.00" {
		t.Fatalf("expected 36/6 = 6.00, got %s", sum.SGPAString())
	}
}

func TestComputeSemesterZeroCreditCourseIsIgnored(t *testing.T) {
	calc := metrics.New(fixtureTable(t), 2)
	base := []records.CourseRecord{course("C1", "S1", "B", 3)}
	withAudit := append([]records.CourseRecord{course("AUD", "S1", "F", 0)}, base...)

	a, err := calc.ComputeSemester(base, "S1")
	if err != nil {
		t.Fatalf("ComputeSemester: %v", err)
	}
	b, err := calc.ComputeSemester(withAudit, "S1")
	if err != nil {
		t.Fatalf("ComputeSemester: %v", err)
	}
	if a.CreditsAttempted.Cmp(b.CreditsAttempted) != 0 || a.CreditsEarned.Cmp(b.CreditsEarned) != 0 || a.SGPA.Cmp(b.SGPA) != 0 {
		t.Fatalf("zero-credit course changed totals: %+v vs %+v", a, b)
	}
	if len(b.Courses) != 2 {
		t.Fatalf("zero-credit course should still be listed, got %d courses", len(b.Courses))
	}
}

func TestComputeSemesterAllZeroCreditsYieldsZero(t *testing.T) {
	calc := metrics.New(fixtureTable(t), 2)
	sum, err := calc.ComputeSemester([]records.CourseRecord{course("AUD", "S1", "A", 0)}, "S1")
	if err != nil {
		t.Fatalf("ComputeSemester: %v", err)
	}
	if sum.SGPA.Sign() != 0 || sum.SGPAString() != "0.00" {
		t.Fatalf("expected zero SGPA, got %s", sum.SGPAString())
	}
}

func TestComputeSemesterEmpty(t *testing.T) {
	calc := metrics.New(fixtureTable(t), 2)
	_, err := calc.ComputeSemester([]records.CourseRecord{course("C1", "S1", "A", 3)}, "S2")
	var empty *metrics.EmptyRecordSetError
	if !errors.As(err, &empty) {
		t.Fatalf("expected EmptyRecordSetError, got %v", err)
	}
	if empty.SemesterID != "S2" {
		t.Fatalf("unexpected semester: %q", empty.SemesterID)
	}
	if _, err := calc.ComputeTranscript(nil); !errors.As(err, &empty) {
		t.Fatalf("expected EmptyRecordSetError for empty transcript, got %v", err)
	}
}

func TestComputeSemesterUnknownGradePropagates(t *testing.T) {
	calc := metrics.New(fixtureTable(t), 2)
	_, err := calc.ComputeSemester([]records.CourseRecord{course("C1", "S1", "Z", 3)}, "S1")
	var unknown *grading.UnknownGradeError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownGradeError, got %v", err)
	}
}

func TestComputeTranscriptOrderAndCGPA(t *testing.T) {
	calc := metrics.New(fixtureTable(t), 2)
	rows := []records.CourseRecord{
		course("C3", "Dec 2022", "C", 3),
		course("C1", "May 2022", "A", 4),
		course("C4", "Dec 2022", "A", 2),
		course("C2", "May 2022", "B", 3),
		course("C1", "Dec 2022", "B", 4),
	}

	tr, err := calc.ComputeTranscript(rows)
	if err != nil {
		t.Fatalf("ComputeTranscript: %v", err)
	}
	if len(tr.Semesters) != 2 || tr.Semesters[0].SemesterID != "Dec 2022" || tr.Semesters[1].SemesterID != "May 2022" {
		t.Fatalf("expected first-seen semester order, got %+v", tr.Semesters)
	}
	// Dec: 3*5 + 2*9 + 4*8 = 65 over 9; May: 60 over 7. Repeat of C1 is counted.
	if tr.CGPA.Cmp(big.NewRat(125, 16)) != 0 {
		t.Fatalf("expected 125/16, got %s", tr.CGPA.RatString())
	}
	if tr.CGPAString() != "7.81" {
		t.Fatalf("expected 7.81, got %s", tr.CGPAString())
	}
	if len(tr.Courses()) != 5 {
		t.Fatalf("expected all rows counted, got %d", len(tr.Courses()))
	}
}

func TestComputeTranscriptIsOrderIndependentWithinSemester(t *testing.T) {
	calc := metrics.New(fixtureTable(t), 2)
	rows := []records.CourseRecord{
		course("C1", "S1", "A", 4),
		course("C2", "S1", "B", 3),
		course("C3", "S1", "C", 1),
		course("C4", "S1", "F", 2),
		course("C5", "S2", "A", 3),
	}
	first, err := calc.ComputeTranscript(rows)
	if err != nil {
		t.Fatalf("ComputeTranscript: %v", err)
	}

	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 20; i++ {
		shuffled := append([]records.CourseRecord(nil), rows[:4]...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		shuffled = append(shuffled, rows[4])
		again, err := calc.ComputeTranscript(shuffled)
		if err != nil {
			t.Fatalf("ComputeTranscript: %v", err)
		}
		if again.CGPA.Cmp(first.CGPA) != 0 || again.CGPAString() != first.CGPAString() {
			t.Fatalf("CGPA changed with row order: %s vs %s", again.CGPA.RatString(), first.CGPA.RatString())
		}
	}
}

func TestSGPAWithinBounds(t *testing.T) {
	table := fixtureTable(t)
	calc := metrics.New(table, 2)
	rng := rand.New(rand.NewPCG(7, 11))
	symbols := []string{"A", "B", "C", "F"}
	for i := 0; i < 50; i++ {
		var rows []records.CourseRecord
		for j := 0; j < 1+rng.IntN(8); j++ {
			rows = append(rows, course("C", "S", symbols[rng.IntN(len(symbols))], int64(1+rng.IntN(5))))
		}
		sum, err := calc.ComputeSemester(rows, "S")
		if err != nil {
			t.Fatalf("ComputeSemester: %v", err)
		}
		if sum.SGPA.Sign() < 0 || sum.SGPA.Cmp(table.Max()) > 0 {
			t.Fatalf("SGPA %s out of bounds", sum.SGPA.RatString())
		}
		if sum.CreditsEarned.Cmp(sum.CreditsAttempted) > 0 {
			t.Fatalf("earned %s exceeds attempted %s", sum.CreditsEarned.RatString(), sum.CreditsAttempted.RatString())
		}
	}
}

func TestForYear(t *testing.T) {
	calc := metrics.New(fixtureTable(t), 2)
	y1 := course("C1", "S1", "A", 4)
	y2 := course("C2", "S2", "B", 4)
	y2.YearFlag = 2
	tr, err := calc.ComputeTranscript([]records.CourseRecord{y1, y2})
	if err != nil {
		t.Fatalf("ComputeTranscript: %v", err)
	}
	year := tr.ForYear(2)
	if len(year.Semesters) != 1 || year.Semesters[0].SemesterID != "S2" {
		t.Fatalf("unexpected year semesters: %+v", year.Semesters)
	}
	if year.CGPAString() != "8.00" || tr.CGPAString() != "8.50" {
		t.Fatalf("unexpected gpas: year %s cumulative %s", year.CGPAString(), tr.CGPAString())
	}
}

func TestRoundHalfUp(t *testing.T) {
	tests := []struct {
		in   *big.Rat
		prec int
		want string
	}{
		{big.NewRat(8565, 1000), 2, "8.57"},
		{big.NewRat(8564, 1000), 2, "8.56"},
		{big.NewRat(1, 8), 2, "0.13"},
		{big.NewRat(17, 2), 0, "9"},
		{nil, 2, "0.00"},
	}
	for _, tt := range tests {
		if got := metrics.Round(tt.in, tt.prec); got != tt.want {
			t.Fatalf("Round(%v, %d) = %s, want %s", tt.in, tt.prec, got, tt.want)
		}
	}
	if metrics.Credits(big.NewRat(3, 2)) != "1.5" {
		t.Fatalf("unexpected credits format: %s", metrics.Credits(big.NewRat(3, 2)))
	}
}

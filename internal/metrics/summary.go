package metrics

import (
	"math/big"

	"registrar/internal/grading"
	"registrar/internal/records"
)

// GradedCourse is a course row paired with its resolved grade entry.
type GradedCourse struct {
	records.CourseRecord
	Entry grading.Entry
}

// SemesterSummary holds the exact per-semester totals. SGPA is exact; use
// the formatting helpers for display values.
type SemesterSummary struct {
	SemesterID       string
	Courses          []GradedCourse
	CreditsAttempted *big.Rat
	CreditsEarned    *big.Rat
	WeightedSum      *big.Rat
	SGPA             *big.Rat
	Precision        int
}

// SGPAString returns the SGPA rounded half-up to the calculator precision.
func (s SemesterSummary) SGPAString() string {
	return Round(s.SGPA, s.Precision)
}

// TranscriptSummary folds semesters, in first-seen order, into cumulative totals.
type TranscriptSummary struct {
	Semesters        []SemesterSummary
	CreditsAttempted *big.Rat
	CreditsEarned    *big.Rat
	WeightedSum      *big.Rat
	CGPA             *big.Rat
	Precision        int
}

// CGPAString returns the CGPA rounded half-up to the calculator precision.
func (t TranscriptSummary) CGPAString() string {
	return Round(t.CGPA, t.Precision)
}

// Courses returns every graded course across semesters, in semester order.
func (t TranscriptSummary) Courses() []GradedCourse {
	var out []GradedCourse
	for _, sem := range t.Semesters {
		out = append(out, sem.Courses...)
	}
	return out
}

// ForYear restricts the summary to course rows of one year flag, recomputing
// every total from the already graded rows. Semesters left empty are dropped.
func (t TranscriptSummary) ForYear(yearFlag int) TranscriptSummary {
	semesters := make([]SemesterSummary, 0, len(t.Semesters))
	for _, sem := range t.Semesters {
		var kept []GradedCourse
		for _, course := range sem.Courses {
			if course.YearFlag == yearFlag {
				kept = append(kept, course)
			}
		}
		if len(kept) == 0 {
			continue
		}
		semesters = append(semesters, summarize(sem.SemesterID, kept, t.Precision))
	}
	return Aggregate(semesters, t.Precision)
}

// Aggregate folds semesters into a transcript using the credit-weighted rule
// over the union of their credits.
func Aggregate(semesters []SemesterSummary, precision int) TranscriptSummary {
	out := TranscriptSummary{
		Semesters:        semesters,
		CreditsAttempted: new(big.Rat),
		CreditsEarned:    new(big.Rat),
		WeightedSum:      new(big.Rat),
		Precision:        precision,
	}
	for _, sem := range semesters {
		if sem.CreditsAttempted.Sign() == 0 {
			continue
		}
		out.CreditsAttempted.Add(out.CreditsAttempted, sem.CreditsAttempted)
		out.CreditsEarned.Add(out.CreditsEarned, sem.CreditsEarned)
		out.WeightedSum.Add(out.WeightedSum, sem.WeightedSum)
	}
	out.CGPA = ratio(out.WeightedSum, out.CreditsAttempted)
	return out
}

func summarize(semesterID string, courses []GradedCourse, precision int) SemesterSummary {
	sum := SemesterSummary{
		SemesterID:       semesterID,
		Courses:          courses,
		CreditsAttempted: new(big.Rat),
		CreditsEarned:    new(big.Rat),
		WeightedSum:      new(big.Rat),
		Precision:        precision,
	}
	for _, course := range courses {
		credits := course.Credits
		if credits == nil || credits.Sign() == 0 {
			continue
		}
		sum.CreditsAttempted.Add(sum.CreditsAttempted, credits)
		if course.Entry.Passing() {
			sum.CreditsEarned.Add(sum.CreditsEarned, credits)
		}
		sum.WeightedSum.Add(sum.WeightedSum, new(big.Rat).Mul(credits, course.Entry.Points))
	}
	sum.SGPA = ratio(sum.WeightedSum, sum.CreditsAttempted)
	return sum
}

func ratio(num, den *big.Rat) *big.Rat {
	if den.Sign() == 0 {
		return new(big.Rat)
	}
	return new(big.Rat).Quo(num, den)
}

// Round formats r with precision decimal places, rounding halves up.
func Round(r *big.Rat, precision int) string {
	if r == nil {
		r = new(big.Rat)
	}
	if precision < 0 {
		precision = 0
	}
	// FloatString rounds halves away from zero, which is half-up for the
	// non-negative values produced here.
	return r.FloatString(precision)
}

// Credits formats a credit total without trailing zeros.
func Credits(r *big.Rat) string {
	if r == nil {
		return "0"
	}
	if r.IsInt() {
		return r.Num().String()
	}
	return trimZeros(r.FloatString(2))
}

func trimZeros(s string) string {
	for len(s) > 0 && s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if len(s) > 0 && s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	return s
}

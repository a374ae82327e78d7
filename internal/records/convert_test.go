package records_test

import (
	"strings"
	"testing"

	"registrar/internal/records"
)

func TestParseStudent(t *testing.T) {
	identity, err := records.ParseStudent(records.StudentFields{
		RegNo:         "AU21UG-006",
		Name:          "Asha Rao",
		AdmissionYear: "2021.0",
		YearFlag:      "2",
		Consolidated:  "true",
	})
	if err != nil {
		t.Fatalf("ParseStudent: %v", err)
	}
	if identity.AdmissionYear != 2021 || identity.YearFlag != 2 || !identity.Consolidated {
		t.Fatalf("unexpected identity: %+v", identity)
	}
	if identity.Key().String() != "AU21UG-006/2" {
		t.Fatalf("unexpected key: %s", identity.Key())
	}

	if _, err := records.ParseStudent(records.StudentFields{Name: "missing regn"}); err == nil {
		t.Fatal("expected error for missing registration number")
	}
	_, err = records.ParseStudent(records.StudentFields{RegNo: "X", YearFlag: "second"})
	if err == nil || !strings.Contains(err.Error(), "YearFlag") {
		t.Fatalf("expected YearFlag validation error, got %v", err)
	}
}

func TestParseCourse(t *testing.T) {
	course, err := records.ParseCourse(records.CourseFields{RegNo: "R1", Code: "C1", Credit: "1.5", Grade: "A"})
	if err != nil {
		t.Fatalf("ParseCourse: %v", err)
	}
	if course.Credits.RatString() != "3/2" {
		t.Fatalf("unexpected credits: %s", course.Credits.RatString())
	}

	blank, err := records.ParseCourse(records.CourseFields{RegNo: "R1", Code: "AUDIT"})
	if err != nil {
		t.Fatalf("ParseCourse: %v", err)
	}
	if blank.Credits.Sign() != 0 {
		t.Fatalf("expected zero credits, got %s", blank.Credits.RatString())
	}

	if _, err := records.ParseCourse(records.CourseFields{RegNo: "R1", Code: "C1", Credit: "-2"}); err == nil {
		t.Fatal("expected error for negative credit")
	}
	if _, err := records.ParseCourse(records.CourseFields{RegNo: "R1"}); err == nil {
		t.Fatal("expected error for missing course code")
	}
}

func TestKeyValid(t *testing.T) {
	if (records.Key{RegNo: " ", YearFlag: 1}).Valid() {
		t.Fatal("blank registration number should be invalid")
	}
	if (records.Key{RegNo: "R1", YearFlag: -1}).Valid() {
		t.Fatal("negative year flag should be invalid")
	}
	if !(records.Key{RegNo: "R1", YearFlag: 0}).Valid() {
		t.Fatal("consolidated key should be valid")
	}
}

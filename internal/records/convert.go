package records

import (
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// studentRow mirrors the loosely typed student_details table.
type studentRow struct {
	RegNo            sql.NullString `db:"REGN_NO"`
	Name             sql.NullString `db:"CNAME"`
	Program          sql.NullString `db:"ACADEMIC_COURSE_ID"`
	AdmissionYear    sql.NullString `db:"ADMISSION_YEAR"`
	YearOfCompletion sql.NullString `db:"YEAR_OF_COMPLETION"`
	YearFlag         sql.NullString `db:"YEAR_FLAG"`
	Consolidated     sql.NullString `db:"consolidated_grade_card_flag"`
	PhotoRef         sql.NullString `db:"PHOTO_URL"`
}

// courseRow mirrors the loosely typed student_courses_details table.
type courseRow struct {
	RegNo        sql.NullString `db:"REGN_NO"`
	YearFlag     sql.NullString `db:"YEAR_FLAG"`
	Code         sql.NullString `db:"SUBJECT_CODE"`
	Title        sql.NullString `db:"SUBJECT_NAME"`
	Credit       sql.NullString `db:"CREDIT"`
	Grade        sql.NullString `db:"Grade"`
	Marks        sql.NullString `db:"Marks"`
	SemesterID   sql.NullString `db:"Month_Year_Completion"`
	AcademicYear sql.NullString `db:"Academic_Year"`
	Month        sql.NullString `db:"Academic_Month"`
}

// StudentFields is the string form of a student row, validated before conversion.
type StudentFields struct {
	RegNo            string `validate:"required,max=32"`
	Name             string `validate:"max=200"`
	Program          string `validate:"max=64"`
	AdmissionYear    string `validate:"omitempty,numeric"`
	YearOfCompletion string
	YearFlag         string `validate:"omitempty,numeric"`
	Consolidated     string `validate:"omitempty,oneof=0 1 true false"`
	PhotoRef         string `validate:"omitempty,max=2048"`
}

// CourseFields is the string form of a course row, validated before conversion.
type CourseFields struct {
	RegNo        string `validate:"required,max=32"`
	YearFlag     string `validate:"omitempty,numeric"`
	Code         string `validate:"required,max=64"`
	Title        string `validate:"max=300"`
	Credit       string `validate:"omitempty,numeric"`
	Grade        string `validate:"max=8"`
	Marks        string `validate:"max=16"`
	SemesterID   string `validate:"max=64"`
	AcademicYear string `validate:"max=32"`
	Month        string `validate:"omitempty,numeric"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (r studentRow) fields() StudentFields {
	return StudentFields{
		RegNo:            text(r.RegNo),
		Name:             text(r.Name),
		Program:          text(r.Program),
		AdmissionYear:    text(r.AdmissionYear),
		YearOfCompletion: text(r.YearOfCompletion),
		YearFlag:         text(r.YearFlag),
		Consolidated:     text(r.Consolidated),
		PhotoRef:         text(r.PhotoRef),
	}
}

func (r courseRow) fields() CourseFields {
	return CourseFields{
		RegNo:        text(r.RegNo),
		YearFlag:     text(r.YearFlag),
		Code:         text(r.Code),
		Title:        text(r.Title),
		Credit:       text(r.Credit),
		Grade:        text(r.Grade),
		Marks:        text(r.Marks),
		SemesterID:   text(r.SemesterID),
		AcademicYear: text(r.AcademicYear),
		Month:        text(r.Month),
	}
}

// ParseStudent validates and converts a student row into a StudentIdentity.
func ParseStudent(f StudentFields) (StudentIdentity, error) {
	if err := validate.Struct(f); err != nil {
		return StudentIdentity{}, describeValidation("student", f.RegNo, err)
	}
	identity := StudentIdentity{
		RegNo:            f.RegNo,
		Name:             f.Name,
		Program:          f.Program,
		YearOfCompletion: f.YearOfCompletion,
		PhotoRef:         f.PhotoRef,
		AdmissionYear:    atoi(f.AdmissionYear),
		YearFlag:         atoi(f.YearFlag),
	}
	switch strings.ToLower(f.Consolidated) {
	case "1", "true":
		identity.Consolidated = true
	}
	return identity, nil
}

// ParseCourse validates and converts a course row into a CourseRecord. Credits
// default to zero when blank.
func ParseCourse(f CourseFields) (CourseRecord, error) {
	if err := validate.Struct(f); err != nil {
		return CourseRecord{}, describeValidation("course", f.RegNo, err)
	}
	credits := new(big.Rat)
	if f.Credit != "" {
		if _, ok := credits.SetString(f.Credit); !ok {
			return CourseRecord{}, fmt.Errorf("course %s/%s: invalid credit %q", f.RegNo, f.Code, f.Credit)
		}
	}
	if credits.Sign() < 0 {
		return CourseRecord{}, fmt.Errorf("course %s/%s: negative credit %q", f.RegNo, f.Code, f.Credit)
	}
	return CourseRecord{
		RegNo:        f.RegNo,
		YearFlag:     atoi(f.YearFlag),
		Code:         f.Code,
		Title:        f.Title,
		Credits:      credits,
		Grade:        f.Grade,
		Marks:        f.Marks,
		SemesterID:   f.SemesterID,
		AcademicYear: f.AcademicYear,
		Month:        atoi(f.Month),
	}, nil
}

func describeValidation(what, regNo string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%s %s: %w", what, regNo, err)
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%s %s: invalid row: %s", what, regNo, strings.Join(parts, ", "))
}

func text(v sql.NullString) string {
	if !v.Valid {
		return ""
	}
	return strings.TrimSpace(v.String)
}

// atoi parses validated integers, tolerating a trailing ".0" from numeric columns.
func atoi(value string) int {
	if value == "" {
		return 0
	}
	if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return int(f)
	}
	return 0
}

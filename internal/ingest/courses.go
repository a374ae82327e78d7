package ingest

import (
	"io"
	"slices"
	"sort"
	"strconv"
	"strings"

	"registrar/internal/nocodb"
	"registrar/internal/records"
)

// subjectMetrics are the per-subject column groups of a wide course sheet,
// mapped to the store column each becomes.
var subjectMetrics = map[string]string{
	"SUBJECT_NAME":               "SUBJECT_NAME",
	"TH_MRKS":                    "TH_MRKS",
	"CE_MRKS":                    "CE_MRKS",
	"TOT":                        "Marks",
	"GRADE":                      "Grade",
	"GRADE_POINTS":               "GRADE_POINTS",
	"CREDIT":                     "CREDIT",
	"CREDIT_POINTS":              "CREDIT_POINTS",
	"TYPE":                       "TYPE",
	"RESULT":                     "RESULT",
	"SUBJECT_ACTUAL_CODE":        "SUBJECT_CODE",
	"MONTH_YEAR_COMPLETION":      "Month_Year_Completion",
	"YEAR_COMPLETION":            "Academic_Year",
	"MONTH_COMPLETION_IN_NUMBER": "Academic_Month",
}

// subjectColumn is one wide column resolved to a subject slot and store column.
type subjectColumn struct {
	header string
	slot   int
	column string
}

// classify resolves a header to a subject column. SUB<n> holds the subject
// code, SUB<n>NM its name and SUB<n>_<METRIC> the other values. ok is false
// for student-level columns; known is false for subject columns whose metric
// is not recognised.
func classify(header string) (col subjectColumn, ok, known bool) {
	rest, found := strings.CutPrefix(header, "SUB")
	if !found || rest == "" {
		return subjectColumn{}, false, false
	}
	if num, metric, cut := strings.Cut(rest, "_"); cut {
		slot, err := strconv.Atoi(num)
		if err != nil || slot < 0 {
			return subjectColumn{}, false, false
		}
		column, recognised := subjectMetrics[metric]
		return subjectColumn{header: header, slot: slot, column: column}, true, recognised
	}
	if num, cut := strings.CutSuffix(rest, "NM"); cut {
		if slot, err := strconv.Atoi(num); err == nil && slot >= 0 {
			return subjectColumn{header: header, slot: slot, column: "SUBJECT_NAME"}, true, true
		}
		return subjectColumn{}, false, false
	}
	if slot, err := strconv.Atoi(rest); err == nil && slot >= 0 {
		return subjectColumn{header: header, slot: slot, column: "SUBJECT_CODE"}, true, true
	}
	return subjectColumn{}, false, false
}

// ReadCourses reshapes a wide course sheet into one row per student subject,
// keyed by (REGN_NO, YEAR_FLAG, SUBJECT_CODE). Student-level columns are
// copied onto every subject row; subject values win a name clash. Subjects
// with neither a code nor a name are dropped.
func ReadCourses(r io.Reader, yearFlag int) (Sheet, error) {
	if yearFlag < 1 {
		return Sheet{}, sheetError("year flag must be at least 1, got %d", yearFlag)
	}
	header, recs, err := readRecords(r)
	if err != nil {
		return Sheet{}, err
	}
	if !slices.Contains(header, "REGN_NO") {
		return Sheet{}, sheetError("missing REGN_NO column")
	}

	var sheet Sheet
	var shared []string
	slots := map[int][]subjectColumn{}
	for _, name := range header {
		if name == "" {
			continue
		}
		col, ok, known := classify(name)
		switch {
		case !ok:
			shared = append(shared, name)
		case !known:
			sheet.Ignored = append(sheet.Ignored, name)
		default:
			slots[col.slot] = append(slots[col.slot], col)
		}
	}
	order := make([]int, 0, len(slots))
	for slot := range slots {
		order = append(order, slot)
	}
	sort.Ints(order)
	if len(order) == 0 {
		return Sheet{}, sheetError("no subject columns (SUB<n>, SUB<n>NM, SUB<n>_<METRIC>)")
	}

	flag := strconv.Itoa(yearFlag)
	for _, rec := range recs {
		regNo := cleanRegNo(rec.get("REGN_NO"))
		if regNo == "" {
			continue
		}
		for _, slot := range order {
			fields := nocodb.Fields{}
			for _, name := range shared {
				if v := rec.get(name); v != "" {
					fields[name] = v
				}
			}
			present := false
			for _, col := range slots[slot] {
				if v := rec.get(col.header); v != "" {
					fields[col.column] = v
					present = true
				}
			}
			if !present {
				continue
			}
			code, name := str(fields, "SUBJECT_CODE"), str(fields, "SUBJECT_NAME")
			if code == "" && name == "" {
				continue
			}
			fields["REGN_NO"] = regNo
			fields["YEAR_FLAG"] = yearFlag

			_, err := records.ParseCourse(records.CourseFields{
				RegNo:        regNo,
				YearFlag:     flag,
				Code:         code,
				Title:        name,
				Credit:       str(fields, "CREDIT"),
				Grade:        str(fields, "Grade"),
				Marks:        str(fields, "Marks"),
				SemesterID:   str(fields, "Month_Year_Completion"),
				AcademicYear: str(fields, "Academic_Year"),
				Month:        str(fields, "Academic_Month"),
			})
			if err != nil {
				sheet.Rejected = append(sheet.Rejected, RowError{Line: rec.line, RegNo: regNo, Err: err})
				continue
			}
			sheet.Rows = append(sheet.Rows, Row{
				Line: rec.line,
				Key: nocodb.Key{
					{Column: "REGN_NO", Value: regNo},
					{Column: "YEAR_FLAG", Value: flag},
					{Column: "SUBJECT_CODE", Value: code},
				},
				Fields: fields,
			})
		}
	}
	return sheet, nil
}

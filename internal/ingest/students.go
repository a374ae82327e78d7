package ingest

import (
	"fmt"
	"io"
	"slices"
	"strconv"

	"registrar/internal/nocodb"
	"registrar/internal/records"
)

const consolidatedColumn = "consolidated_grade_card_flag"

// studentRenames maps spreadsheet headings to store columns.
var studentRenames = map[string]string{
	"SESSION":            "YEAR_OF_COMPLETION",
	"Cumulative credits": "CUMULATIVE_CREDITS",
}

// ReadStudents parses a student details sheet and stamps every row with
// yearFlag. Consolidated sheets may use year flag 0 and must mark every row
// with consolidated_grade_card_flag = 1; anything else rejects the file.
func ReadStudents(r io.Reader, yearFlag int, consolidated bool) (Sheet, error) {
	minFlag := 1
	if consolidated {
		minFlag = 0
	}
	if yearFlag < minFlag {
		return Sheet{}, sheetError("year flag must be at least %d, got %d", minFlag, yearFlag)
	}
	header, recs, err := readRecords(r)
	if err != nil {
		return Sheet{}, err
	}
	if !slices.Contains(header, "REGN_NO") {
		return Sheet{}, sheetError("missing REGN_NO column")
	}
	if consolidated {
		if !slices.Contains(header, consolidatedColumn) {
			return Sheet{}, sheetError("consolidated import needs a %s column", consolidatedColumn)
		}
		for _, rec := range recs {
			if flag := rec.get(consolidatedColumn); !isOne(flag) {
				return Sheet{}, sheetError("line %d: %s is %q, want 1", rec.line, consolidatedColumn, flag)
			}
		}
	}

	var sheet Sheet
	for _, rec := range recs {
		fields := nocodb.Fields{}
		for column, value := range rec.values {
			if renamed, ok := studentRenames[column]; ok {
				column = renamed
			}
			fields[column] = value
		}
		regNo := cleanRegNo(rec.get("REGN_NO"))
		if regNo == "" {
			continue
		}
		fields["REGN_NO"] = regNo
		fields["YEAR_FLAG"] = yearFlag
		if consolidated {
			fields[consolidatedColumn] = 1
		}

		_, err := records.ParseStudent(records.StudentFields{
			RegNo:            regNo,
			Name:             str(fields, "CNAME"),
			Program:          str(fields, "ACADEMIC_COURSE_ID"),
			AdmissionYear:    str(fields, "ADMISSION_YEAR"),
			YearOfCompletion: str(fields, "YEAR_OF_COMPLETION"),
			YearFlag:         strconv.Itoa(yearFlag),
			Consolidated:     str(fields, consolidatedColumn),
			PhotoRef:         str(fields, "PHOTO_URL"),
		})
		if err != nil {
			sheet.Rejected = append(sheet.Rejected, RowError{Line: rec.line, RegNo: regNo, Err: err})
			continue
		}
		sheet.Rows = append(sheet.Rows, Row{
			Line: rec.line,
			Key: nocodb.Key{
				{Column: "REGN_NO", Value: regNo},
				{Column: "YEAR_FLAG", Value: strconv.Itoa(yearFlag)},
			},
			Fields: fields,
		})
	}
	return sheet, nil
}

func isOne(value string) bool {
	n, err := strconv.ParseFloat(value, 64)
	return err == nil && n == 1
}

// str returns a string-valued field, rendering stamped numbers as text.
func str(fields nocodb.Fields, column string) string {
	switch v := fields[column].(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

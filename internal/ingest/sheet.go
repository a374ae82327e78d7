package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"registrar/internal/nocodb"
)

// Row is one record ready for upload.
type Row struct {
	// Line is the 1-based line of the source record in the CSV, header included.
	Line   int
	Key    nocodb.Key
	Fields nocodb.Fields
}

// RowError explains why a source line was rejected.
type RowError struct {
	Line  int
	RegNo string
	Err   error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e RowError) Unwrap() error { return e.Err }

// Sheet is a parsed CSV: rows to upload and lines that failed validation.
type Sheet struct {
	Rows     []Row
	Rejected []RowError
	// Ignored lists header columns that were not recognised and not uploaded.
	Ignored []string
}

// ErrSheet marks a structural problem with the whole file.
var ErrSheet = errors.New("invalid sheet")

func sheetError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSheet, fmt.Sprintf(format, args...))
}

// record is one CSV data line keyed by header name.
type record struct {
	line   int
	values map[string]string
}

func (r record) get(column string) string {
	return r.values[column]
}

// readRecords reads the header and all data lines. Blank cells are dropped
// so absent values never overwrite stored ones.
func readRecords(r io.Reader) ([]string, []record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, sheetError("empty file")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	seen := make(map[string]bool, len(header))
	for _, name := range header {
		if name == "" {
			continue
		}
		if seen[name] {
			return nil, nil, sheetError("duplicate column %q", name)
		}
		seen[name] = true
	}

	var records []record
	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read csv: %w", err)
		}
		line, _ := reader.FieldPos(0)
		rec := record{line: line, values: make(map[string]string, len(fields))}
		for i, value := range fields {
			if i >= len(header) || header[i] == "" {
				continue
			}
			if value = strings.TrimSpace(value); value != "" {
				rec.values[header[i]] = value
			}
		}
		if len(rec.values) == 0 {
			continue
		}
		records = append(records, rec)
	}
	return header, records, nil
}

// cleanRegNo undoes spreadsheet float formatting of numeric registration
// numbers ("2021006.0" becomes "2021006").
func cleanRegNo(value string) string {
	if whole, frac, ok := strings.Cut(value, "."); ok && strings.Trim(frac, "0") == "" {
		if _, err := strconv.ParseUint(whole, 10, 64); err == nil {
			return whole
		}
	}
	return value
}

package testsupport

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"registrar/internal/config"
	"registrar/internal/logging"
	"registrar/internal/records"
)

// Course is a fixture course row.
type Course struct {
	YearFlag int
	Code     string
	Title    string
	Credits  string
	Grade    string
	Semester string
	Month    int
}

// Student is a fixture student with its course rows.
type Student struct {
	RegNo         string
	Name          string
	Program       string
	AdmissionYear int
	YearFlag      int
	Consolidated  bool
	Courses       []Course
}

// MustOpenStore opens the SQLite record snapshot named by cfg and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *records.Store {
	t.Helper()

	store, err := records.Open(context.Background(), cfg.Database, logging.NewNop())
	if err != nil {
		t.Fatalf("records.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// Seed inserts the students and their courses into a snapshot store.
func Seed(t testing.TB, store *records.Store, cfg *config.Config, students ...Student) {
	t.Helper()

	db := store.DB()
	studentSQL := fmt.Sprintf(`INSERT INTO %q ("REGN_NO","CNAME","ACADEMIC_COURSE_ID","ADMISSION_YEAR","YEAR_FLAG","consolidated_grade_card_flag") VALUES (?,?,?,?,?,?)`, cfg.Database.StudentTable)
	courseSQL := fmt.Sprintf(`INSERT INTO %q ("REGN_NO","YEAR_FLAG","SUBJECT_CODE","SUBJECT_NAME","CREDIT","Grade","Month_Year_Completion","Academic_Year","Academic_Month") VALUES (?,?,?,?,?,?,?,?,?)`, cfg.Database.CourseTable)
	for _, s := range students {
		flag := 0
		if s.Consolidated {
			flag = 1
		}
		if _, err := db.Exec(studentSQL, s.RegNo, s.Name, s.Program, s.AdmissionYear, s.YearFlag, flag); err != nil {
			t.Fatalf("seed student %s: %v", s.RegNo, err)
		}
		for _, c := range s.Courses {
			year := strings.TrimSpace(c.Semester)
			if fields := strings.Fields(year); len(fields) == 2 {
				year = fields[1]
			}
			if _, err := db.Exec(courseSQL, s.RegNo, c.YearFlag, c.Code, c.Title, c.Credits, c.Grade, c.Semester, year, c.Month); err != nil {
				t.Fatalf("seed course %s/%s: %v", s.RegNo, c.Code, err)
			}
		}
	}
}

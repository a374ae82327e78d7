package records_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"registrar/internal/config"
	"registrar/internal/failures"
	"registrar/internal/logging"
	"registrar/internal/records"
)

func openSnapshot(t *testing.T) *records.Store {
	t.Helper()
	cfg := config.Default().Database
	cfg.Driver = "sqlite"
	cfg.Path = filepath.Join(t.TempDir(), "records.db")
	store, err := records.Open(context.Background(), cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("open snapshot: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seed(t *testing.T, store *records.Store) {
	t.Helper()
	stmts := []string{
		`INSERT INTO "student_details" ("REGN_NO","CNAME","ACADEMIC_COURSE_ID","ADMISSION_YEAR","YEAR_FLAG","consolidated_grade_card_flag","PHOTO_URL")
		 VALUES ('AU21UG-006','Asha Rao','LS',2021,1,0,NULL),
		        ('AU21UG-006','Asha Rao','LS',2021,2,0,NULL),
		        ('AU21UG-006','Asha Rao','LS',2021,0,1,'http://photos/AU21UG-006.png'),
		        ('AU22UG-010','Ravi K','IT',2022,1,0,NULL),
		        ('AU22UG-011','No Courses','DT',2022,1,0,NULL)`,
		`INSERT INTO "student_courses_details" ("REGN_NO","YEAR_FLAG","SUBJECT_CODE","SUBJECT_NAME","CREDIT","Grade","Marks","Month_Year_Completion","Academic_Year","Academic_Month")
		 VALUES ('AU21UG-006',2,'LS201','Genetics','4','A',NULL,'May 2023','2022-23',5),
		        ('AU21UG-006',1,'FY102','Writing','3','B+',NULL,'Dec 2021','2021-22',12),
		        ('AU21UG-006',1,'FY101','Maths','4.0','O',NULL,'Dec 2021','2021-22',12),
		        ('AU22UG-010',1,'FY101','Maths','4','','81','Dec 2022','2022-23',12)`,
	}
	for _, stmt := range stmts {
		if _, err := store.DB().Exec(stmt); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func TestFetchYearScopesCourses(t *testing.T) {
	store := openSnapshot(t)
	seed(t, store)

	identity, courses, err := store.Fetch(context.Background(), records.Request{RegNo: "AU21UG-006", YearFlag: 1})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	want := records.StudentIdentity{RegNo: "AU21UG-006", Name: "Asha Rao", Program: "LS", AdmissionYear: 2021, YearFlag: 1}
	if diff := cmp.Diff(want, identity); diff != "" {
		t.Fatalf("identity mismatch (-want +got):\n%s", diff)
	}
	if len(courses) != 2 {
		t.Fatalf("expected 2 year-1 courses, got %d", len(courses))
	}
	if courses[0].Code != "FY101" || courses[1].Code != "FY102" {
		t.Fatalf("unexpected order: %s, %s", courses[0].Code, courses[1].Code)
	}
	if courses[0].Credits.RatString() != "4" || courses[0].SemesterID != "Dec 2021" {
		t.Fatalf("unexpected course conversion: %+v", courses[0])
	}
}

func TestFetchWholeHistoryPrefersConsolidatedRow(t *testing.T) {
	store := openSnapshot(t)
	seed(t, store)

	identity, courses, err := store.Fetch(context.Background(), records.Request{RegNo: "AU21UG-006"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !identity.Consolidated || identity.YearFlag != 0 {
		t.Fatalf("expected consolidated identity, got %+v", identity)
	}
	if identity.PhotoRef != "http://photos/AU21UG-006.png" {
		t.Fatalf("unexpected photo ref: %q", identity.PhotoRef)
	}
	if len(courses) != 3 {
		t.Fatalf("expected all 3 courses, got %d", len(courses))
	}
	if courses[2].Code != "LS201" {
		t.Fatalf("expected year 2 course last, got %s", courses[2].Code)
	}
}

func TestFetchNoCoursesIsNotAnError(t *testing.T) {
	store := openSnapshot(t)
	seed(t, store)

	_, courses, err := store.Fetch(context.Background(), records.Request{RegNo: "AU22UG-011", YearFlag: 1})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(courses) != 0 {
		t.Fatalf("expected no courses, got %d", len(courses))
	}
}

func TestFetchUnknownStudent(t *testing.T) {
	store := openSnapshot(t)
	seed(t, store)

	_, _, err := store.Fetch(context.Background(), records.Request{RegNo: "AU99UG-999"})
	if !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if failures.KindOf(err) != failures.KindNotFound {
		t.Fatalf("unexpected kind: %s", failures.KindOf(err))
	}
}

func TestFetchCancelledIsClassified(t *testing.T) {
	store := openSnapshot(t)
	seed(t, store)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := store.Fetch(ctx, records.Request{RegNo: "AU21UG-006"})
	if err == nil {
		t.Fatal("expected an error from a cancelled fetch")
	}
	if kind := failures.KindOf(err); kind != failures.KindCancelled {
		t.Fatalf("unexpected kind: %s", kind)
	}
}

func TestFetchRejectsMalformedCredit(t *testing.T) {
	store := openSnapshot(t)
	seed(t, store)
	if _, err := store.DB().Exec(`INSERT INTO "student_courses_details" ("REGN_NO","YEAR_FLAG","SUBJECT_CODE","CREDIT","Grade") VALUES ('AU22UG-010',1,'BAD1','four','A')`); err != nil {
		t.Fatalf("insert: %v", err)
	}

	_, _, err := store.Fetch(context.Background(), records.Request{RegNo: "AU22UG-010", YearFlag: 1})
	var fetchErr *records.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fetchErr.ErrorKind() != failures.KindGrading {
		t.Fatalf("expected grading kind for bad data, got %s", fetchErr.ErrorKind())
	}
}

func TestList(t *testing.T) {
	store := openSnapshot(t)
	seed(t, store)
	ctx := context.Background()

	all, err := store.List(ctx, records.Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if diff := cmp.Diff([]string{"AU21UG-006", "AU22UG-010", "AU22UG-011"}, all); diff != "" {
		t.Fatalf("unexpected list (-want +got):\n%s", diff)
	}

	it, err := store.List(ctx, records.Filter{Program: "IT", YearFlag: 1})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if diff := cmp.Diff([]string{"AU22UG-010"}, it); diff != "" {
		t.Fatalf("unexpected filtered list (-want +got):\n%s", diff)
	}

	consolidated, err := store.List(ctx, records.Filter{Consolidated: true})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(consolidated) != 1 || consolidated[0] != "AU21UG-006" {
		t.Fatalf("unexpected consolidated list: %v", consolidated)
	}
}

func TestYearFlags(t *testing.T) {
	store := openSnapshot(t)
	seed(t, store)

	flags, err := store.YearFlags(context.Background(), "AU21UG-006")
	if err != nil {
		t.Fatalf("YearFlags: %v", err)
	}
	if diff := cmp.Diff([]int{1, 2}, flags); diff != "" {
		t.Fatalf("unexpected year flags (-want +got):\n%s", diff)
	}
	none, err := store.YearFlags(context.Background(), "NOBODY")
	if err != nil || len(none) != 0 {
		t.Fatalf("expected no flags, got %v (%v)", none, err)
	}
}

func TestReopenChecksSchemaVersion(t *testing.T) {
	cfg := config.Default().Database
	cfg.Driver = "sqlite"
	cfg.Path = filepath.Join(t.TempDir(), "records.db")
	ctx := context.Background()

	store, err := records.Open(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := store.DB().Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = store.Close()

	if _, err := records.Open(ctx, cfg, nil); !errors.Is(err, records.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestRedactedDSN(t *testing.T) {
	cfg := config.Database{Driver: "postgres", Host: "db", Port: 5432, Name: "root_db", User: "reg", Password: "secret"}
	got := records.RedactedDSN(cfg)
	if got != "postgres://reg@db:5432/root_db" {
		t.Fatalf("unexpected dsn: %q", got)
	}
}

package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"registrar/internal/config"
	"registrar/internal/failures"
	"registrar/internal/logging"
)

func init() {
	// modernc registers as "sqlite", which sqlx does not know by default.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Store reads student and course rows from the relational source.
type Store struct {
	db           *sqlx.DB
	driver       string
	studentTable string
	courseTable  string
	timeout      time.Duration
	logger       *slog.Logger
}

// Open connects to the configured database. SQLite snapshots get the embedded
// schema applied when the file is new.
func Open(ctx context.Context, cfg config.Database, logger *slog.Logger) (*Store, error) {
	var (
		db  *sqlx.DB
		err error
	)
	switch cfg.Driver {
	case "postgres":
		db, err = sqlx.Open("postgres", postgresDSN(cfg))
	case "sqlite":
		db, err = sqlx.Open("sqlite", cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Driver, err)
	}

	timeout := time.Duration(cfg.QueryTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	store := &Store{
		db:           db,
		driver:       cfg.Driver,
		studentTable: qualify(cfg.Driver, cfg.Schema, cfg.StudentTable),
		courseTable:  qualify(cfg.Driver, cfg.Schema, cfg.CourseTable),
		timeout:      timeout,
		logger:       logging.NewComponentLogger(logger, "records"),
	}

	if cfg.Driver == "sqlite" {
		db.SetMaxOpenConns(1)
		pragmas := []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA busy_timeout = 5000",
		}
		for _, pragma := range pragmas {
			if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
				_ = db.Close()
				return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
			}
		}
		if err := store.initSchema(ctx, cfg.StudentTable, cfg.CourseTable); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return store, nil
}

func postgresDSN(cfg config.Database) string {
	parts := []string{
		"host=" + quoteDSN(cfg.Host),
		"dbname=" + quoteDSN(cfg.Name),
		"user=" + quoteDSN(cfg.User),
		"sslmode=" + quoteDSN(cfg.SSLMode),
	}
	if cfg.Port > 0 {
		parts = append(parts, "port="+strconv.Itoa(cfg.Port))
	}
	if cfg.Password != "" {
		parts = append(parts, "password="+quoteDSN(cfg.Password))
	}
	if cfg.QueryTimeout > 0 {
		parts = append(parts, "connect_timeout="+strconv.Itoa(cfg.QueryTimeout))
	}
	return strings.Join(parts, " ")
}

func quoteDSN(value string) string {
	if value == "" || strings.ContainsAny(value, ` '\`) {
		return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(value) + "'"
	}
	return value
}

// RedactedDSN returns a loggable description of the connection target.
func RedactedDSN(cfg config.Database) string {
	if cfg.Driver == "sqlite" {
		return "sqlite://" + cfg.Path
	}
	u := url.URL{Scheme: "postgres", Host: cfg.Host, Path: "/" + cfg.Name}
	if cfg.Port > 0 {
		u.Host = cfg.Host + ":" + strconv.Itoa(cfg.Port)
	}
	if cfg.User != "" {
		u.User = url.User(cfg.User)
	}
	return u.String()
}

func qualify(driver, schema, table string) string {
	if driver == "postgres" && schema != "" {
		return quoteIdent(schema) + "." + quoteIdent(table)
	}
	return quoteIdent(table)
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the connection for fixtures and maintenance commands.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return failures.Wrap(failures.KindConnectivity, "ping "+s.driver, err)
	}
	return nil
}

const studentColumns = `"REGN_NO", "CNAME", "ACADEMIC_COURSE_ID", "ADMISSION_YEAR", "YEAR_OF_COMPLETION",
	"YEAR_FLAG", "consolidated_grade_card_flag", "PHOTO_URL"`

const courseColumns = `"REGN_NO", "YEAR_FLAG", "SUBJECT_CODE", "SUBJECT_NAME", "CREDIT", "Grade", "Marks",
	"Month_Year_Completion", "Academic_Year", "Academic_Month"`

// Fetch implements Fetcher. Course rows come back ordered by academic year and
// month so the calculator sees semesters chronologically. A student with no
// course rows yields an empty slice and no error.
func (s *Store) Fetch(ctx context.Context, req Request) (StudentIdentity, []CourseRecord, error) {
	regNo := strings.TrimSpace(req.RegNo)
	if regNo == "" {
		return StudentIdentity{}, nil, &FetchError{RegNo: req.RegNo, Op: "validate request", Kind: failures.KindNotFound, Err: ErrNotFound}
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	identity, err := s.fetchIdentity(ctx, regNo, req.YearFlag)
	if err != nil {
		return StudentIdentity{}, nil, err
	}

	query := `SELECT ` + courseColumns + ` FROM ` + s.courseTable + ` WHERE "REGN_NO" = ?`
	args := []any{regNo}
	if req.YearFlag > 0 {
		query += ` AND "YEAR_FLAG" <= ?`
		args = append(args, req.YearFlag)
	}
	query += ` ORDER BY "YEAR_FLAG", "Academic_Year", "Academic_Month", "SUBJECT_CODE"`

	var rows []courseRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return StudentIdentity{}, nil, &FetchError{RegNo: regNo, Op: "select courses", Err: err}
	}

	courses := make([]CourseRecord, 0, len(rows))
	for _, row := range rows {
		course, err := ParseCourse(row.fields())
		if err != nil {
			return StudentIdentity{}, nil, &FetchError{RegNo: regNo, Op: "convert course", Kind: failures.KindGrading, Err: err}
		}
		courses = append(courses, course)
	}

	s.logger.Debug("fetched student records",
		logging.String(logging.FieldRegNo, regNo),
		logging.Int(logging.FieldYearFlag, identity.YearFlag),
		logging.Int("course_rows", len(courses)),
	)
	return identity, courses, nil
}

// fetchIdentity picks the year's row, or for a whole-history request the
// consolidated row when present and otherwise the latest year.
func (s *Store) fetchIdentity(ctx context.Context, regNo string, yearFlag int) (StudentIdentity, error) {
	query := `SELECT ` + studentColumns + ` FROM ` + s.studentTable + ` WHERE "REGN_NO" = ?`
	args := []any{regNo}
	if yearFlag > 0 {
		query += ` AND "YEAR_FLAG" = ?`
		args = append(args, yearFlag)
	}
	query += ` ORDER BY COALESCE("consolidated_grade_card_flag", 0) DESC, "YEAR_FLAG" DESC LIMIT 1`

	var row studentRow
	if err := s.db.GetContext(ctx, &row, s.db.Rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return StudentIdentity{}, &FetchError{RegNo: regNo, Op: "select student", Err: ErrNotFound}
		}
		return StudentIdentity{}, &FetchError{RegNo: regNo, Op: "select student", Err: err}
	}
	identity, err := ParseStudent(row.fields())
	if err != nil {
		return StudentIdentity{}, &FetchError{RegNo: regNo, Op: "convert student", Kind: failures.KindGrading, Err: err}
	}
	return identity, nil
}

// List returns the distinct registration numbers matching filter, sorted.
func (s *Store) List(ctx context.Context, filter Filter) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		clauses []string
		args    []any
	)
	if filter.YearFlag > 0 {
		clauses = append(clauses, `"YEAR_FLAG" = ?`)
		args = append(args, filter.YearFlag)
	}
	if filter.AdmissionYear > 0 {
		clauses = append(clauses, `"ADMISSION_YEAR" = ?`)
		args = append(args, filter.AdmissionYear)
	}
	if program := strings.TrimSpace(filter.Program); program != "" {
		clauses = append(clauses, `"ACADEMIC_COURSE_ID" = ?`)
		args = append(args, program)
	}
	if filter.Consolidated {
		clauses = append(clauses, `"consolidated_grade_card_flag" = 1`)
	}

	query := `SELECT DISTINCT "REGN_NO" FROM ` + s.studentTable
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY "REGN_NO"`

	var regNos []string
	if err := s.db.SelectContext(ctx, &regNos, s.db.Rebind(query), args...); err != nil {
		return nil, failures.Wrap(failures.KindConnectivity, "list students", err)
	}
	return regNos, nil
}

// YearFlags returns the positive year flags with a student row for regNo, ascending.
func (s *Store) YearFlags(ctx context.Context, regNo string) ([]int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := `SELECT DISTINCT "YEAR_FLAG" FROM ` + s.studentTable + ` WHERE "REGN_NO" = ? AND "YEAR_FLAG" > 0 ORDER BY "YEAR_FLAG"`
	var flags []int
	if err := s.db.SelectContext(ctx, &flags, s.db.Rebind(query), strings.TrimSpace(regNo)); err != nil {
		return nil, &FetchError{RegNo: regNo, Op: "select year flags", Err: err}
	}
	return flags, nil
}

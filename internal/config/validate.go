package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateNocoDB(); err != nil {
		return err
	}
	if err := c.validateGrading(); err != nil {
		return err
	}
	if err := c.validateDocuments(); err != nil {
		return err
	}
	if err := c.validateBatch(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case "postgres":
		if c.Database.Port < 0 || c.Database.Port > 65535 {
			return fmt.Errorf("database.port %d is out of range", c.Database.Port)
		}
	case "sqlite":
		if strings.TrimSpace(c.Database.Path) == "" {
			return errors.New("database.path must be set when database.driver is sqlite")
		}
	default:
		return fmt.Errorf("database.driver %q is not supported (use postgres or sqlite)", c.Database.Driver)
	}
	if !isIdentifier(c.Database.StudentTable) {
		return fmt.Errorf("database.student_table %q is not a valid table name", c.Database.StudentTable)
	}
	if !isIdentifier(c.Database.CourseTable) {
		return fmt.Errorf("database.course_table %q is not a valid table name", c.Database.CourseTable)
	}
	if c.Database.Schema != "" && !isIdentifier(c.Database.Schema) {
		return fmt.Errorf("database.schema %q is not a valid schema name", c.Database.Schema)
	}
	if c.Database.QueryTimeout <= 0 {
		return errors.New("database.query_timeout must be positive")
	}
	return nil
}

func (c *Config) validateNocoDB() error {
	if c.NocoDB.BaseURL != "" && !strings.HasPrefix(c.NocoDB.BaseURL, "http://") && !strings.HasPrefix(c.NocoDB.BaseURL, "https://") {
		return fmt.Errorf("nocodb.base_url %q must be an http(s) URL", c.NocoDB.BaseURL)
	}
	if c.NocoDB.RequestTimeout <= 0 {
		return errors.New("nocodb.request_timeout must be positive")
	}
	return nil
}

// RequireNocoDB reports whether the sync target is configured. Only commands
// that talk to the external store call it.
func (c *Config) RequireNocoDB() error {
	if c.NocoDB.BaseURL == "" {
		return errors.New("nocodb.base_url is required. Set NOCODB_API_BASE env var or edit the config file")
	}
	if c.NocoDB.APIToken == "" {
		return errors.New("nocodb.api_token is required. Set NOCODB_API_TOKEN env var or add it to .env")
	}
	return nil
}

func (c *Config) validateGrading() error {
	if c.Grading.Precision < 0 || c.Grading.Precision > 6 {
		return errors.New("grading.precision must be between 0 and 6")
	}
	for i, entry := range c.Grading.Grades {
		if entry.Symbol == "" {
			return fmt.Errorf("grading.grades[%d].symbol must be set", i)
		}
		if entry.Points < 0 {
			return fmt.Errorf("grading.grades[%d].points must not be negative", i)
		}
	}
	for i, band := range c.Grading.Bands {
		if band.Symbol == "" {
			return fmt.Errorf("grading.bands[%d].symbol must be set", i)
		}
		if band.Min < 0 {
			return fmt.Errorf("grading.bands[%d].min must not be negative", i)
		}
	}
	return nil
}

func (c *Config) validateDocuments() error {
	if strings.TrimSpace(c.Documents.Institution) == "" {
		return errors.New("documents.institution must be set")
	}
	if c.Documents.PhotoWidth <= 0 || c.Documents.PhotoHeight <= 0 {
		return errors.New("documents.photo_width and documents.photo_height must be positive")
	}
	if c.Documents.PhotoTimeout <= 0 {
		return errors.New("documents.photo_timeout must be positive")
	}
	if c.Documents.ProgramDuration <= 0 {
		return errors.New("documents.program_duration must be positive")
	}
	if c.Documents.IssueDate != "" {
		if _, err := time.Parse(time.DateOnly, c.Documents.IssueDate); err != nil {
			return fmt.Errorf("documents.issue_date %q must use YYYY-MM-DD", c.Documents.IssueDate)
		}
	}
	return nil
}

func (c *Config) validateBatch() error {
	if c.Batch.Concurrency <= 0 {
		return errors.New("batch.concurrency must be positive")
	}
	if c.Batch.UnitTimeout <= 0 {
		return errors.New("batch.unit_timeout must be positive")
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.RetryAttempts <= 0 {
		return errors.New("sync.retry_attempts must be positive")
	}
	if c.Sync.RetryBaseDelayMS < 0 || c.Sync.RetryMaxDelayMS < 0 {
		return errors.New("sync retry delays must not be negative")
	}
	if c.Sync.RetryMaxDelayMS < c.Sync.RetryBaseDelayMS {
		return errors.New("sync.retry_max_delay_ms must be at least sync.retry_base_delay_ms")
	}
	if c.Sync.LockTimeout <= 0 {
		return errors.New("sync.lock_timeout must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q is not supported (use console or json)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not supported", c.Logging.Level)
	}
	return nil
}

// IssueTime returns the configured issue date, or now truncated to the day.
func (c *Config) IssueTime(now time.Time) time.Time {
	if c.Documents.IssueDate != "" {
		if parsed, err := time.Parse(time.DateOnly, c.Documents.IssueDate); err == nil {
			return parsed
		}
	}
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func isIdentifier(value string) bool {
	if value == "" {
		return false
	}
	for i, r := range value {
		switch {
		case r == '_':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeDatabase(); err != nil {
		return err
	}
	c.normalizeNocoDB()
	c.normalizeGrading()
	c.normalizeDocuments()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.PhotoDir, err = expandPath(c.Paths.PhotoDir); err != nil {
		return fmt.Errorf("paths.photo_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeDatabase() error {
	db := &c.Database
	db.Driver = strings.ToLower(strings.TrimSpace(db.Driver))
	if db.Driver == "" {
		db.Driver = defaultDatabaseDriver
	}
	if db.Driver == "postgresql" {
		db.Driver = "postgres"
	}

	envFallback(&db.Host, "DB_HOST")
	envFallback(&db.Name, "DB_NAME")
	envFallback(&db.User, "DB_USER")
	envFallback(&db.Password, "DB_PASSWORD")
	envFallback(&db.Schema, "NOCODB_SCHEMA")
	if value, ok := os.LookupEnv("DB_PORT"); ok && db.Port == 0 {
		port, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("DB_PORT: %w", err)
		}
		db.Port = port
	}
	if db.Driver == "postgres" {
		if strings.TrimSpace(db.Host) == "" {
			db.Host = defaultDatabaseHost
		}
		if db.Port == 0 {
			db.Port = defaultDatabasePort
		}
		if strings.TrimSpace(db.Name) == "" {
			db.Name = defaultDatabaseName
		}
		if strings.TrimSpace(db.User) == "" {
			db.User = defaultDatabaseUser
		}
		if strings.TrimSpace(db.SSLMode) == "" {
			db.SSLMode = defaultSSLMode
		}
	}

	db.Schema = strings.TrimSpace(db.Schema)
	db.StudentTable = strings.TrimSpace(db.StudentTable)
	if db.StudentTable == "" {
		db.StudentTable = defaultStudentTable
	}
	db.CourseTable = strings.TrimSpace(db.CourseTable)
	if db.CourseTable == "" {
		db.CourseTable = defaultCourseTable
	}
	if db.Driver == "sqlite" && strings.TrimSpace(db.Path) != "" {
		expanded, err := expandPath(db.Path)
		if err != nil {
			return fmt.Errorf("database.path: %w", err)
		}
		db.Path = expanded
	}
	return nil
}

func (c *Config) normalizeNocoDB() {
	envFallback(&c.NocoDB.BaseURL, "NOCODB_API_BASE")
	envFallback(&c.NocoDB.APIToken, "NOCODB_API_TOKEN")
	c.NocoDB.BaseURL = strings.TrimRight(strings.TrimSpace(c.NocoDB.BaseURL), "/")
	c.NocoDB.APIToken = strings.TrimSpace(c.NocoDB.APIToken)
	if strings.TrimSpace(c.NocoDB.StudentTable) == "" {
		c.NocoDB.StudentTable = defaultStudentTable
	}
	if strings.TrimSpace(c.NocoDB.CourseTable) == "" {
		c.NocoDB.CourseTable = defaultCourseTable
	}
}

func (c *Config) normalizeGrading() {
	for i := range c.Grading.Grades {
		c.Grading.Grades[i].Symbol = strings.TrimSpace(c.Grading.Grades[i].Symbol)
	}
	for i := range c.Grading.Bands {
		c.Grading.Bands[i].Symbol = strings.TrimSpace(c.Grading.Bands[i].Symbol)
	}
}

func (c *Config) normalizeDocuments() {
	if c.Documents.Programs == nil {
		c.Documents.Programs = defaultPrograms()
	}
	c.Documents.NumberPrefix = strings.TrimSpace(c.Documents.NumberPrefix)
	c.Documents.IssueDate = strings.TrimSpace(c.Documents.IssueDate)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func envFallback(target *string, key string) {
	if strings.TrimSpace(*target) != "" {
		return
	}
	if value, ok := os.LookupEnv(key); ok {
		*target = strings.TrimSpace(value)
	}
}

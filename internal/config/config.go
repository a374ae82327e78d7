package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	OutputDir string `toml:"output_dir"`
	PhotoDir  string `toml:"photo_dir"`
	StateDir  string `toml:"state_dir"`
	LogDir    string `toml:"log_dir"`
}

// Database describes the relational store holding student and course rows.
type Database struct {
	Driver       string `toml:"driver"`
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	Name         string `toml:"name"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	Schema       string `toml:"schema"`
	SSLMode      string `toml:"sslmode"`
	Path         string `toml:"path"`
	StudentTable string `toml:"student_table"`
	CourseTable  string `toml:"course_table"`
	QueryTimeout int    `toml:"query_timeout"`
}

// NocoDB contains configuration for the external record store.
type NocoDB struct {
	BaseURL        string `toml:"base_url"`
	APIToken       string `toml:"api_token"`
	StudentTable   string `toml:"student_table"`
	CourseTable    string `toml:"course_table"`
	RequestTimeout int    `toml:"request_timeout"`
}

// GradeEntry is one row of the grade point table.
type GradeEntry struct {
	Symbol  string  `toml:"symbol"`
	Points  float64 `toml:"points"`
	Failing bool    `toml:"failing"`
}

// MarkBand maps numeric marks at or above Min to a grade symbol.
type MarkBand struct {
	Min    float64 `toml:"min"`
	Symbol string  `toml:"symbol"`
}

// Grading contains the grade point table and rounding precision.
// An empty Grades list selects the built-in table.
type Grading struct {
	Precision int          `toml:"precision"`
	Grades    []GradeEntry `toml:"grades"`
	Bands     []MarkBand   `toml:"bands"`
}

// Documents contains the static text and layout knobs for rendered documents.
type Documents struct {
	Institution     string            `toml:"institution"`
	Address         string            `toml:"address"`
	Established     string            `toml:"established"`
	NumberPrefix    string            `toml:"number_prefix"`
	Level           string            `toml:"level"`
	Medium          string            `toml:"medium_of_instruction"`
	ProgramDuration int               `toml:"program_duration"`
	Programs        map[string]string `toml:"programs"`
	PhotoWidth      int               `toml:"photo_width"`
	PhotoHeight     int               `toml:"photo_height"`
	PhotoTimeout    int               `toml:"photo_timeout"`
	IssueDate       string            `toml:"issue_date"`
}

// Batch contains document batch tuning.
type Batch struct {
	Concurrency int `toml:"concurrency"`
	UnitTimeout int `toml:"unit_timeout"`
}

// Sync contains reconciler retry and locking settings.
type Sync struct {
	RetryAttempts    int `toml:"retry_attempts"`
	RetryBaseDelayMS int `toml:"retry_base_delay_ms"`
	RetryMaxDelayMS  int `toml:"retry_max_delay_ms"`
	LockTimeout      int `toml:"lock_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for registrar.
//
// Configuration sections by subsystem:
//   - Paths: output, photo, state and log directories
//   - Database: relational source of student and course rows
//   - NocoDB: external record store kept in sync
//   - Grading: grade point table, mark bands and rounding precision
//   - Documents: institution text, numbering and photo box
//   - Batch: concurrency and per-student timeout
//   - Sync: retry/backoff and the cross-process lock
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Database  Database  `toml:"database"`
	NocoDB    NocoDB    `toml:"nocodb"`
	Grading   Grading   `toml:"grading"`
	Documents Documents `toml:"documents"`
	Batch     Batch     `toml:"batch"`
	Sync      Sync      `toml:"sync"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/registrar/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if err := loadDotEnv(filepath.Dir(resolvedPath)); err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("registrar.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// loadDotEnv loads .env files beside the config and in the working directory.
// Variables already present in the environment win.
func loadDotEnv(configDir string) error {
	candidates := []string{filepath.Join(configDir, ".env")}
	if wd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(wd, ".env"))
	}
	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}
		info, err := os.Stat(candidate)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("stat %s: %w", candidate, err)
		}
		if info.IsDir() {
			continue
		}
		if err := godotenv.Load(candidate); err != nil {
			return fmt.Errorf("load %s: %w", candidate, err)
		}
	}
	return nil
}

// EnsureDirectories creates the directories the CLI writes into.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// QueryTimeout returns the per-query timeout for the record source.
func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.Database.QueryTimeout) * time.Second
}

// NocoDBTimeout returns the per-request timeout for the external store.
func (c *Config) NocoDBTimeout() time.Duration {
	return time.Duration(c.NocoDB.RequestTimeout) * time.Second
}

// UnitTimeout bounds the external calls made for a single student in a batch.
func (c *Config) UnitTimeout() time.Duration {
	return time.Duration(c.Batch.UnitTimeout) * time.Second
}

// PhotoTimeout bounds a single photo download.
func (c *Config) PhotoTimeout() time.Duration {
	return time.Duration(c.Documents.PhotoTimeout) * time.Second
}

// RetryDelays returns the base and maximum backoff delays for store retries.
func (c *Config) RetryDelays() (time.Duration, time.Duration) {
	return time.Duration(c.Sync.RetryBaseDelayMS) * time.Millisecond,
		time.Duration(c.Sync.RetryMaxDelayMS) * time.Millisecond
}

// LockTimeout bounds how long a sync waits for another sync to release the lock.
func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.Sync.LockTimeout) * time.Second
}

// SyncLockPath returns the lock file guarding concurrent syncs on this host.
func (c *Config) SyncLockPath() string {
	return filepath.Join(c.Paths.StateDir, "sync.lock")
}

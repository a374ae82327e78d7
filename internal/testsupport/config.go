package testsupport

import (
	"path/filepath"
	"testing"

	"registrar/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The record source is a SQLite snapshot inside the temp directory.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.OutputDir = filepath.Join(base, "documents")
	cfgVal.Paths.PhotoDir = filepath.Join(base, "photos")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Database.Driver = "sqlite"
	cfgVal.Database.Path = filepath.Join(base, "records.db")
	cfgVal.Documents.IssueDate = "2024-06-30"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithNocoDB points the external store at baseURL.
func WithNocoDB(baseURL, token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.NocoDB.BaseURL = baseURL
		b.cfg.NocoDB.APIToken = token
	}
}

// WithConcurrency overrides the batch worker count.
func WithConcurrency(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Batch.Concurrency = n
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.OutputDir)
}

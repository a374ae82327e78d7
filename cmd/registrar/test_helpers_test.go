package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"registrar/internal/config"
	"registrar/internal/records"
	"registrar/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *records.Store
	configPath string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	cfg.Logging.Level = "error"
	home := filepath.Join(testsupport.BaseDir(cfg), "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", home)

	configPath := filepath.Join(home, ".config", "registrar", "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		store:      testsupport.MustOpenStore(t, cfg),
		configPath: configPath,
	}
}

func (e *cliTestEnv) seed(t *testing.T, students ...testsupport.Student) {
	t.Helper()
	testsupport.Seed(t, e.store, e.cfg, students...)
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func requireFile(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected file at %s: %v", path, err)
	}
	if info.Size() == 0 {
		t.Fatalf("file %s is empty", path)
	}
}

func ashaRao(yearFlag int, name string) testsupport.Student {
	courses := map[int][]testsupport.Course{
		1: {
			{YearFlag: 1, Code: "LS101", Title: "Biology", Credits: "4", Grade: "A", Semester: "Nov 2021", Month: 11},
			{YearFlag: 1, Code: "LS102", Title: "Chemistry", Credits: "3", Grade: "B+", Semester: "Nov 2021", Month: 11},
		},
		2: {
			{YearFlag: 2, Code: "LS201", Title: "Genetics", Credits: "4", Grade: "O", Semester: "May 2023", Month: 5},
		},
	}
	return testsupport.Student{
		RegNo:         "AU21UG-006",
		Name:          name,
		Program:       "LS",
		AdmissionYear: 2021,
		YearFlag:      yearFlag,
		Courses:       courses[yearFlag],
	}
}

package preflight

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"registrar/internal/logging"
	"registrar/internal/nocodb"
	"registrar/internal/testsupport"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if result := CheckFreeSpace("space", dir, 1); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if result := CheckFreeSpace("space", dir, 1<<62); result.Passed {
		t.Fatal("expected failure for an impossible requirement")
	}
	if result := CheckFreeSpace("space", filepath.Join(dir, "nope"), 1); result.Passed {
		t.Fatal("expected failure for missing path")
	}
}

func TestCheckDatabase(t *testing.T) {
	ok := CheckDatabase(context.Background(), pingFunc(func(context.Context) error { return nil }))
	if !ok.Passed {
		t.Fatalf("expected pass, got: %s", ok.Detail)
	}
	slow := CheckDatabase(context.Background(), pingFunc(func(context.Context) error { return context.DeadlineExceeded }))
	if slow.Passed || slow.Detail != "check timed out (unresponsive)" {
		t.Fatalf("unexpected result: %+v", slow)
	}
	if missing := CheckDatabase(context.Background(), nil); missing.Passed {
		t.Fatal("expected failure without a connection")
	}
}

func TestCheckNocoDB(t *testing.T) {
	fake := testsupport.NewNocoDB(t, "secret")

	good := nocodb.New(fake.URL(), "secret", time.Second, logging.NewNop())
	if result := CheckNocoDB(context.Background(), good, "student_details"); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}

	bad := nocodb.New(fake.URL(), "wrong", time.Second, logging.NewNop())
	result := CheckNocoDB(context.Background(), bad, "student_details")
	if result.Passed || result.Detail != "auth failed (invalid api token)" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil, Targets{}); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_MinimalConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.PhotoDir = ""
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	db := pingFunc(func(context.Context) error { return nil })

	results := RunAll(context.Background(), cfg, Targets{Database: db})
	want := []string{"Output directory", "State directory", "Output free space", "Database", "NocoDB"}
	if len(results) != len(want) {
		t.Fatalf("expected %d results, got %+v", len(want), results)
	}
	for i, r := range results {
		if r.Name != want[i] {
			t.Errorf("result %d is %q, want %q", i, r.Name, want[i])
		}
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
	if got := results[len(results)-1].Detail; got != "Not configured" {
		t.Fatalf("expected unconfigured NocoDB to be skipped, got %q", got)
	}
}

func TestRunAll_ReportsOpenFailureAndStore(t *testing.T) {
	fake := testsupport.NewNocoDB(t, "secret")
	cfg := testsupport.NewConfig(t, testsupport.WithNocoDB(fake.URL(), "secret"))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(cfg.Paths.PhotoDir, 0o755); err != nil {
		t.Fatal(err)
	}
	client := nocodb.New(fake.URL(), "secret", time.Second, logging.NewNop())

	results := RunAll(context.Background(), cfg, Targets{
		DatabaseErr: errors.New("connection refused"),
		Store:       client,
	})
	failed := Failed(results)
	if len(failed) != 1 || failed[0].Name != "Database" || failed[0].Detail != "connection refused" {
		t.Fatalf("unexpected failures: %+v", failed)
	}
	found := false
	for _, r := range results {
		if r.Name == "NocoDB" {
			found = r.Passed
		}
	}
	if !found {
		t.Fatal("expected a passing NocoDB check")
	}
}

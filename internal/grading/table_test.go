package grading_test

import (
	"errors"
	"math/big"
	"testing"

	"registrar/internal/config"
	"registrar/internal/grading"
)

func TestDefaultTableLookup(t *testing.T) {
	table := grading.Default()

	tests := []struct {
		symbol  string
		points  string
		failing bool
	}{
		{"O", "10", false},
		{"A+", "9", false},
		{" a ", "8", false},
		{"b+", "7", false},
		{"F", "0", true},
		{"Ab", "0", true},
		{"AB", "0", true},
	}
	for _, tt := range tests {
		entry, err := table.Lookup(tt.symbol)
		if err != nil {
			t.Fatalf("Lookup(%q): %v", tt.symbol, err)
		}
		if entry.PointsString() != tt.points {
			t.Fatalf("Lookup(%q) points = %s, want %s", tt.symbol, entry.PointsString(), tt.points)
		}
		if entry.Failing != tt.failing {
			t.Fatalf("Lookup(%q) failing = %v, want %v", tt.symbol, entry.Failing, tt.failing)
		}
	}
	if table.Max().Cmp(big.NewRat(10, 1)) != 0 {
		t.Fatalf("unexpected max: %s", table.Max().RatString())
	}
}

func TestLookupUnknownGrade(t *testing.T) {
	_, err := grading.Default().Lookup("Z")
	var unknown *grading.UnknownGradeError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownGradeError, got %v", err)
	}
	if unknown.Symbol != "Z" || unknown.ErrorKind() != "grading" {
		t.Fatalf("unexpected error detail: %+v", unknown)
	}
}

func TestNewRejectsDuplicates(t *testing.T) {
	_, err := grading.New([]grading.Entry{
		{Symbol: "A", Points: big.NewRat(9, 1)},
		{Symbol: " a", Points: big.NewRat(8, 1)},
	}, nil)
	var cfgErr *grading.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestNewRejectsBadBands(t *testing.T) {
	entries := []grading.Entry{{Symbol: "P", Points: big.NewRat(5, 1)}}
	if _, err := grading.New(entries, []grading.Band{{Min: big.NewRat(40, 1), Symbol: "Q"}}); err == nil {
		t.Fatal("expected error for band with unknown symbol")
	}
	if _, err := grading.New(entries, []grading.Band{{Min: big.NewRat(40, 1), Symbol: "P"}, {Min: big.NewRat(40, 1), Symbol: "P"}}); err == nil {
		t.Fatal("expected error for duplicate band minimum")
	}
	if _, err := grading.New(nil, nil); err == nil {
		t.Fatal("expected error for empty table")
	}
}

func TestResolveMarksThroughBands(t *testing.T) {
	table, err := grading.NewFromConfig(config.Grading{
		Grades: []config.GradeEntry{
			{Symbol: "O", Points: 10},
			{Symbol: "A", Points: 8.5},
			{Symbol: "F", Points: 0, Failing: true},
		},
		Bands: []config.MarkBand{
			{Min: 40, Symbol: "A"},
			{Min: 90, Symbol: "O"},
			{Min: 0, Symbol: "F"},
		},
	})
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}

	tests := []struct {
		grade, marks string
		want         string
	}{
		{"", "95", "O"},
		{"", "90", "O"},
		{"", "72.5", "A"},
		{"", "12", "F"},
		{"O", "12", "O"},
	}
	for _, tt := range tests {
		entry, err := table.Resolve(tt.grade, tt.marks)
		if err != nil {
			t.Fatalf("Resolve(%q,%q): %v", tt.grade, tt.marks, err)
		}
		if entry.Symbol != tt.want {
			t.Fatalf("Resolve(%q,%q) = %s, want %s", tt.grade, tt.marks, entry.Symbol, tt.want)
		}
	}

	entry, _ := table.Lookup("A")
	if entry.Points.Cmp(big.NewRat(17, 2)) != 0 {
		t.Fatalf("expected exact 17/2, got %s", entry.Points.RatString())
	}
	if _, err := table.Resolve("", "abc"); err == nil {
		t.Fatal("expected error for non-numeric marks")
	}
}

func TestLookupReturnsCopies(t *testing.T) {
	table := grading.Default()
	entry, _ := table.Lookup("O")
	entry.Points.SetInt64(0)
	again, _ := table.Lookup("O")
	if again.PointsString() != "10" {
		t.Fatalf("table mutated through returned entry: %s", again.PointsString())
	}
}

func TestNewFromConfigEmptyUsesDefault(t *testing.T) {
	table, err := grading.NewFromConfig(config.Grading{Precision: 2})
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	if len(table.Entries()) != len(grading.Default().Entries()) {
		t.Fatal("expected default entries")
	}
}

package grading

import (
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"registrar/internal/config"
)

// Entry maps a grade symbol to its grade point and pass/fail status.
type Entry struct {
	Symbol  string
	Points  *big.Rat
	Failing bool
}

// Passing reports whether the grade earns credit.
func (e Entry) Passing() bool { return !e.Failing }

// PointsString formats the grade point for display, dropping a trailing ".0".
func (e Entry) PointsString() string {
	if e.Points == nil {
		return ""
	}
	if e.Points.IsInt() {
		return e.Points.Num().String()
	}
	return e.Points.FloatString(2)
}

// Band maps numeric marks at or above Min to a grade symbol.
type Band struct {
	Min    *big.Rat
	Symbol string
}

// Table is an immutable grade point lookup. It is safe for concurrent use.
type Table struct {
	entries []Entry
	index   map[string]int
	bands   []Band
	max     *big.Rat
}

// New builds a table, rejecting duplicate symbols after normalisation and
// bands that refer to unknown symbols.
func New(entries []Entry, bands []Band) (*Table, error) {
	if len(entries) == 0 {
		return nil, &ConfigurationError{Reason: "no grades defined"}
	}
	t := &Table{
		entries: make([]Entry, 0, len(entries)),
		index:   make(map[string]int, len(entries)),
		max:     new(big.Rat),
	}
	for _, entry := range entries {
		key := normalize(entry.Symbol)
		if key == "" {
			return nil, &ConfigurationError{Reason: "grade symbol must not be empty"}
		}
		if entry.Points == nil || entry.Points.Sign() < 0 {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("grade %q has no valid points", entry.Symbol)}
		}
		if _, dup := t.index[key]; dup {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("duplicate grade symbol %q", entry.Symbol)}
		}
		stored := Entry{
			Symbol:  strings.TrimSpace(entry.Symbol),
			Points:  new(big.Rat).Set(entry.Points),
			Failing: entry.Failing,
		}
		t.index[key] = len(t.entries)
		t.entries = append(t.entries, stored)
		if stored.Points.Cmp(t.max) > 0 {
			t.max.Set(stored.Points)
		}
	}
	for _, band := range bands {
		if band.Min == nil {
			return nil, &ConfigurationError{Reason: "mark band without minimum"}
		}
		if _, ok := t.index[normalize(band.Symbol)]; !ok {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("mark band refers to unknown grade %q", band.Symbol)}
		}
		t.bands = append(t.bands, Band{Min: new(big.Rat).Set(band.Min), Symbol: band.Symbol})
	}
	sort.SliceStable(t.bands, func(i, j int) bool {
		return t.bands[i].Min.Cmp(t.bands[j].Min) > 0
	})
	for i := 1; i < len(t.bands); i++ {
		if t.bands[i].Min.Cmp(t.bands[i-1].Min) == 0 {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("duplicate mark band minimum %s", t.bands[i].Min.FloatString(2))}
		}
	}
	return t, nil
}

// Default returns the institution's standard ten-point table.
func Default() *Table {
	t, err := New(defaultEntries(), nil)
	if err != nil {
		panic(err)
	}
	return t
}

func defaultEntries() []Entry {
	pts := func(n int64) *big.Rat { return big.NewRat(n, 1) }
	return []Entry{
		{Symbol: "O", Points: pts(10)},
		{Symbol: "A+", Points: pts(9)},
		{Symbol: "A", Points: pts(8)},
		{Symbol: "B+", Points: pts(7)},
		{Symbol: "B", Points: pts(6)},
		{Symbol: "C+", Points: pts(5)},
		{Symbol: "C", Points: pts(4)},
		{Symbol: "D", Points: pts(3)},
		{Symbol: "F", Points: pts(0), Failing: true},
		{Symbol: "S", Points: pts(10)},
		{Symbol: "AP", Points: pts(8)},
		{Symbol: "Ab", Points: pts(0), Failing: true},
	}
}

// NewFromConfig builds the process-wide table from configuration. An empty
// grade list selects Default.
func NewFromConfig(cfg config.Grading) (*Table, error) {
	if len(cfg.Grades) == 0 && len(cfg.Bands) == 0 {
		return Default(), nil
	}
	entries := defaultEntries()
	if len(cfg.Grades) > 0 {
		entries = make([]Entry, 0, len(cfg.Grades))
		for _, g := range cfg.Grades {
			points, err := ratFromFloat(g.Points)
			if err != nil {
				return nil, &ConfigurationError{Reason: fmt.Sprintf("grade %q: %v", g.Symbol, err)}
			}
			entries = append(entries, Entry{Symbol: g.Symbol, Points: points, Failing: g.Failing})
		}
	}
	bands := make([]Band, 0, len(cfg.Bands))
	for _, b := range cfg.Bands {
		minimum, err := ratFromFloat(b.Min)
		if err != nil {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("band %q: %v", b.Symbol, err)}
		}
		bands = append(bands, Band{Min: minimum, Symbol: b.Symbol})
	}
	return New(entries, bands)
}

// ratFromFloat goes through the shortest decimal form so 8.5 becomes 17/2
// rather than the binary expansion of the float.
func ratFromFloat(v float64) (*big.Rat, error) {
	r, ok := new(big.Rat).SetString(strconv.FormatFloat(v, 'f', -1, 64))
	if !ok {
		return nil, fmt.Errorf("invalid number %v", v)
	}
	return r, nil
}

// Lookup returns the entry for symbol. Symbols match case-insensitively after
// trimming whitespace.
func (t *Table) Lookup(symbol string) (Entry, error) {
	i, ok := t.index[normalize(symbol)]
	if !ok {
		return Entry{}, &UnknownGradeError{Symbol: strings.TrimSpace(symbol)}
	}
	return t.entries[i].clone(), nil
}

// Resolve looks up grade, falling back to the mark bands when grade is blank
// and marks is numeric.
func (t *Table) Resolve(grade, marks string) (Entry, error) {
	if strings.TrimSpace(grade) != "" {
		return t.Lookup(grade)
	}
	marks = strings.TrimSpace(marks)
	value, ok := new(big.Rat).SetString(marks)
	if !ok || len(t.bands) == 0 {
		return Entry{}, &UnknownGradeError{Symbol: marks}
	}
	for _, band := range t.bands {
		if value.Cmp(band.Min) >= 0 {
			return t.Lookup(band.Symbol)
		}
	}
	return Entry{}, &UnknownGradeError{Symbol: marks}
}

// Max returns the highest grade point in the table.
func (t *Table) Max() *big.Rat {
	return new(big.Rat).Set(t.max)
}

// Entries returns the table in definition order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	for i, e := range t.entries {
		out[i] = e.clone()
	}
	return out
}

func (e Entry) clone() Entry {
	e.Points = new(big.Rat).Set(e.Points)
	return e
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

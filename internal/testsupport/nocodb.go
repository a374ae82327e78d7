package testsupport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// NocoDB is an in-memory stand-in for the NocoDB v1 data API. It supports
// list with eq where clauses, get, create and patch, and stamps UpdatedAt
// with a counter on every write.
type NocoDB struct {
	Server *httptest.Server
	Token  string

	mu       sync.Mutex
	tables   map[string]map[int]map[string]any
	nextID   int
	clock    int
	failures []int
	requests int
}

// NewNocoDB starts a fake server closed at test cleanup.
func NewNocoDB(t testing.TB, token string) *NocoDB {
	t.Helper()
	n := &NocoDB{Token: token, tables: map[string]map[int]map[string]any{}}
	n.Server = httptest.NewServer(http.HandlerFunc(n.serve))
	t.Cleanup(n.Server.Close)
	return n
}

// URL returns the base URL to configure clients with.
func (n *NocoDB) URL() string { return n.Server.URL + "/api/v1/db/data/noco/registrar" }

// FailNext makes the next len(statuses) requests answer with those statuses.
func (n *NocoDB) FailNext(statuses ...int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures = append(n.failures, statuses...)
}

// Requests returns the number of requests served.
func (n *NocoDB) Requests() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.requests
}

// Rows returns a copy of the rows of table ordered by id.
func (n *NocoDB) Rows(table string) []map[string]any {
	n.mu.Lock()
	defer n.mu.Unlock()
	ids := make([]int, 0, len(n.tables[table]))
	for id := range n.tables[table] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, copyRow(n.tables[table][id]))
	}
	return out
}

// Touch bumps a row's UpdatedAt as if another writer had changed it.
func (n *NocoDB) Touch(table string, id int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if row, ok := n.tables[table][id]; ok {
		n.clock++
		row["UpdatedAt"] = stamp(n.clock)
	}
}

func (n *NocoDB) serve(w http.ResponseWriter, r *http.Request) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.requests++

	if len(n.failures) > 0 {
		status := n.failures[0]
		n.failures = n.failures[1:]
		http.Error(w, http.StatusText(status), status)
		return
	}
	if r.Header.Get("xc-token") != n.Token {
		http.Error(w, `{"msg":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	const prefix = "/api/v1/db/data/noco/registrar/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		http.NotFound(w, r)
		return
	}
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, prefix), "/")
	table := parts[0]
	if n.tables[table] == nil {
		n.tables[table] = map[int]map[string]any{}
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		n.list(w, r, table)
	case len(parts) == 1 && r.Method == http.MethodPost:
		n.create(w, r, table)
	case len(parts) == 2 && (r.Method == http.MethodGet || r.Method == http.MethodPatch):
		id, err := strconv.Atoi(parts[1])
		row, ok := n.tables[table][id]
		if err != nil || !ok {
			http.Error(w, `{"msg":"not found"}`, http.StatusNotFound)
			return
		}
		if r.Method == http.MethodPatch {
			var fields map[string]any
			if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			for k, v := range fields {
				row[k] = v
			}
			n.clock++
			row["UpdatedAt"] = stamp(n.clock)
		}
		writeJSON(w, row)
	default:
		http.Error(w, "unsupported", http.StatusMethodNotAllowed)
	}
}

func (n *NocoDB) list(w http.ResponseWriter, r *http.Request, table string) {
	conds, err := parseWhere(r.URL.Query().Get("where"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ids := make([]int, 0)
	for id, row := range n.tables[table] {
		if matches(row, conds) {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	list := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		list = append(list, n.tables[table][id])
	}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	writeJSON(w, map[string]any{"list": list, "pageInfo": map[string]any{"totalRows": len(ids)}})
}

func (n *NocoDB) create(w http.ResponseWriter, r *http.Request, table string) {
	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	n.nextID++
	n.clock++
	fields["Id"] = n.nextID
	fields["UpdatedAt"] = stamp(n.clock)
	n.tables[table][n.nextID] = fields
	writeJSON(w, fields)
}

func parseWhere(where string) ([][2]string, error) {
	if where == "" {
		return nil, nil
	}
	var conds [][2]string
	for _, part := range strings.Split(where, "~and") {
		part = strings.TrimSuffix(strings.TrimPrefix(part, "("), ")")
		fields := strings.Split(part, ",")
		if len(fields) != 3 || fields[1] != "eq" {
			return nil, fmt.Errorf("unsupported where clause %q", part)
		}
		conds = append(conds, [2]string{fields[0], fields[2]})
	}
	return conds, nil
}

func matches(row map[string]any, conds [][2]string) bool {
	for _, c := range conds {
		if fmt.Sprint(row[c[0]]) != c[1] {
			return false
		}
	}
	return true
}

func stamp(tick int) string {
	return fmt.Sprintf("2024-01-01 00:00:00.%06d+00:00", tick)
}

func copyRow(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

package nocodb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"registrar/internal/config"
	"registrar/internal/logging"
)

const (
	defaultHTTPTimeout = 15 * time.Second
	maxErrorBody       = 512
)

// Fields is a row payload keyed by column name.
type Fields map[string]any

// KeyField is one column of a composite key.
type KeyField struct {
	Column string
	Value  string
}

// Key is an ordered composite unique key.
type Key []KeyField

func (k Key) String() string {
	parts := make([]string, 0, len(k))
	for _, f := range k {
		parts = append(parts, f.Column+"="+f.Value)
	}
	return strings.Join(parts, ",")
}

// where renders the key as a NocoDB where clause.
func (k Key) where() (string, error) {
	if len(k) == 0 {
		return "", errors.New("empty key")
	}
	parts := make([]string, 0, len(k))
	for _, f := range k {
		column := strings.TrimSpace(f.Column)
		value := strings.TrimSpace(f.Value)
		if column == "" || value == "" {
			return "", fmt.Errorf("key column %q has no value", f.Column)
		}
		if strings.ContainsAny(column+value, "(),~") {
			return "", fmt.Errorf("key field %s=%s contains reserved characters", column, value)
		}
		parts = append(parts, fmt.Sprintf("(%s,eq,%s)", column, value))
	}
	return strings.Join(parts, "~and"), nil
}

// Record is a stored row. Version changes on every write.
type Record struct {
	ID      string
	Version string
	Fields  Fields
}

// Client talks to the NocoDB v1 data API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New constructs a client from explicit settings.
func New(baseURL, token string, timeout time.Duration, logger *slog.Logger, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:      strings.TrimSpace(token),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewComponentLogger(logger, "nocodb"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig constructs a client from the [nocodb] section.
func NewFromConfig(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Client, error) {
	if err := cfg.RequireNocoDB(); err != nil {
		return nil, err
	}
	return New(cfg.NocoDB.BaseURL, cfg.NocoDB.APIToken, cfg.NocoDBTimeout(), logger, opts...), nil
}

type listResponse struct {
	List []map[string]any `json:"list"`
}

// Lookup finds the row matching key. A missing row is not an error.
func (c *Client) Lookup(ctx context.Context, table string, key Key) (Record, bool, error) {
	where, err := key.where()
	if err != nil {
		return Record{}, false, permanent("lookup", table, err)
	}
	query := url.Values{}
	query.Set("where", where)
	query.Set("limit", "2")

	var resp listResponse
	if err := c.do(ctx, http.MethodGet, "lookup", table, "", query, nil, &resp); err != nil {
		return Record{}, false, err
	}
	switch len(resp.List) {
	case 0:
		return Record{}, false, nil
	case 1:
		return toRecord(resp.List[0]), true, nil
	}
	c.logger.Warn("composite key matched several rows; using the first",
		logging.String("table", table),
		logging.String("key", key.String()),
		logging.String(logging.FieldEventType, "duplicate_key_rows"),
	)
	return toRecord(resp.List[0]), true, nil
}

// Get reads one row by id.
func (c *Client) Get(ctx context.Context, table, id string) (Record, error) {
	var row map[string]any
	if err := c.do(ctx, http.MethodGet, "get", table, id, nil, nil, &row); err != nil {
		return Record{}, err
	}
	return toRecord(row), nil
}

// Create inserts a row.
func (c *Client) Create(ctx context.Context, table string, fields Fields) (Record, error) {
	var row map[string]any
	if err := c.do(ctx, http.MethodPost, "create", table, "", nil, fields, &row); err != nil {
		return Record{}, err
	}
	return toRecord(row), nil
}

// Update patches the row identified by current. When current carries a
// version and the stored row has moved on, the write is refused with
// ErrConcurrentModification.
func (c *Client) Update(ctx context.Context, table string, current Record, fields Fields) (Record, error) {
	if current.ID == "" {
		return Record{}, permanent("update", table, errors.New("record has no id"))
	}
	if current.Version != "" {
		latest, err := c.Get(ctx, table, current.ID)
		if err != nil {
			return Record{}, err
		}
		if latest.Version != current.Version {
			return Record{}, &StoreError{
				Op:    "update",
				Table: table,
				Err:   fmt.Errorf("%w: row %s changed at %s", ErrConcurrentModification, current.ID, latest.Version),
			}
		}
	}
	var row map[string]any
	if err := c.do(ctx, http.MethodPatch, "update", table, current.ID, nil, fields, &row); err != nil {
		return Record{}, err
	}
	updated := toRecord(row)
	if updated.ID == "" {
		updated.ID = current.ID
	}
	return updated, nil
}

// Ping lists a single row of table to prove the API is reachable and the
// token accepted.
func (c *Client) Ping(ctx context.Context, table string) error {
	query := url.Values{}
	query.Set("limit", "1")
	var resp listResponse
	return c.do(ctx, http.MethodGet, "ping", table, "", query, nil, &resp)
}

func (c *Client) do(ctx context.Context, method, op, table, id string, query url.Values, body any, out any) error {
	if c.baseURL == "" {
		return permanent(op, table, errors.New("base url not configured"))
	}
	segments := []string{table}
	if id != "" {
		segments = append(segments, id)
	}
	endpoint, err := url.JoinPath(c.baseURL, segments...)
	if err != nil {
		return permanent(op, table, fmt.Errorf("build url: %w", err))
	}
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return permanent(op, table, fmt.Errorf("encode body: %w", err))
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return permanent(op, table, fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("xc-token", c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &StoreError{Op: op, Table: table, Transient: transientTransport(ctx, err), Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return &StoreError{Op: op, Table: table, Transient: true, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return &StoreError{
			Op:         op,
			Table:      table,
			Status:     resp.StatusCode,
			Transient:  transientStatus(resp.StatusCode),
			RetryAfter: retryAfter,
			Err:        fmt.Errorf("http %d: %s", resp.StatusCode, snippet(payload)),
		}
	}
	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return permanent(op, table, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func transientStatus(status int) bool {
	return status == http.StatusRequestTimeout ||
		status == http.StatusTooManyRequests ||
		status >= http.StatusInternalServerError
}

func transientTransport(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

func toRecord(row map[string]any) Record {
	rec := Record{Fields: Fields(row)}
	for _, key := range []string{"Id", "id", "ID"} {
		if v, ok := row[key]; ok && v != nil {
			rec.ID = fmt.Sprint(v)
			break
		}
	}
	for _, key := range []string{"UpdatedAt", "updated_at"} {
		if v, ok := row[key]; ok && v != nil {
			rec.Version = fmt.Sprint(v)
			break
		}
	}
	return rec
}

func snippet(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody] + "..."
	}
	return text
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		if delay := time.Until(when); delay > 0 {
			return delay, true
		}
	}
	return 0, false
}

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datatools/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datatools/pkg/models"
)

// DefaultPollInterval is the delay between two status checks of a run.
const DefaultPollInterval = 1500 * time.Millisecond

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Fields     []apperrors.FieldError
}

func (e *APIError) Error() string {
	if len(e.Fields) > 0 {
		parts := make([]string, len(e.Fields))
		for i, f := range e.Fields {
			parts[i] = f.Field + ": " + f.Message
		}
		return fmt.Sprintf("%s (HTTP %d): %s", e.Code, e.StatusCode, strings.Join(parts, "; "))
	}
	return fmt.Sprintf("%s (HTTP %d): %s", e.Code, e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client calls the datatools HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger used for polling progress.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("datatools-client")
	return c
}

// SuggestKeys proposes join keys for two tables.
func (c *Client) SuggestKeys(ctx context.Context, req models.SuggestKeysRequest) (*models.SuggestKeysResult, error) {
	var out models.SuggestKeysResult
	if err := c.do(ctx, http.MethodPost, "/api/compare/suggest-keys", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitComparison starts a comparison run.
func (c *Client) SubmitComparison(ctx context.Context, req models.CompareRunRequest) (*models.SubmittedRun, error) {
	var out models.SubmittedRun
	if err := c.do(ctx, http.MethodPost, "/api/compare/run", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitValidation starts a validation run.
func (c *Client) SubmitValidation(ctx context.Context, req models.ValidateRunRequest) (*models.SubmittedRun, error) {
	var out models.SubmittedRun
	if err := c.do(ctx, http.MethodPost, "/api/validate/run", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetRun fetches a run of any kind.
func (c *Client) GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error) {
	var out models.Run
	if err := c.do(ctx, http.MethodGet, "/api/runs/"+id.String(), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListRuns lists runs, newest first.
func (c *Client) ListRuns(ctx context.Context, filter models.RunFilter) ([]*models.Run, error) {
	q := url.Values{}
	if filter.Environment != "" {
		q.Set("env_schema", filter.Environment)
	}
	if filter.Kind != "" {
		q.Set("kind", string(filter.Kind))
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}

	var out struct {
		Runs []*models.Run `json:"runs"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/runs", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Runs, nil
}

// ListTables lists tables of env whose name contains filter.
func (c *Client) ListTables(ctx context.Context, env, filter string) ([]models.TableInfo, error) {
	q := url.Values{}
	if env != "" {
		q.Set("env_schema", env)
	}
	if filter != "" {
		q.Set("filter", filter)
	}

	var out struct {
		Tables []models.TableInfo `json:"tables"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/assets/tables", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Tables, nil
}

// TableColumns lists the columns of one table.
func (c *Client) TableColumns(ctx context.Context, env, table, partition string) ([]models.ColumnMeta, error) {
	q := url.Values{}
	q.Set("table", table)
	if env != "" {
		q.Set("env_schema", env)
	}
	if partition != "" {
		q.Set("pt", partition)
	}

	var out struct {
		Columns []models.ColumnMeta `json:"columns"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/assets/table-columns", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Columns, nil
}

// AuditEntries returns the newest audit entries, optionally for one action.
func (c *Client) AuditEntries(ctx context.Context, action string, limit int) ([]*models.AuditLogEntry, error) {
	q := url.Values{}
	if action != "" {
		q.Set("action", action)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var out struct {
		Entries []*models.AuditLogEntry `json:"entries"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/audit", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

// WaitForRun polls a run every interval until it is terminal or ctx ends.
// onPoll, when set, sees every observed state.
func (c *Client) WaitForRun(ctx context.Context, id uuid.UUID, interval time.Duration, onPoll func(*models.Run)) (*models.Run, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	polls := 0
	for {
		run, err := c.GetRun(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to poll run %s: %w", id, err)
		}
		polls++
		if onPoll != nil {
			onPoll(run)
		}
		if run.Status.IsTerminal() {
			c.logger.Debug("Run finished",
				zap.String("run_id", id.String()),
				zap.String("status", string(run.Status)),
				zap.Int("polls", polls))
			return run, nil
		}

		select {
		case <-ctx.Done():
			return run, ctx.Err()
		case <-ticker.C:
		}
	}
}

// envelope mirrors the server's success wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

// errorBody covers both plain and validation error responses.
type errorBody struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Fields  []apperrors.FieldError `json:"fields"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var eb errorBody
		if json.Unmarshal(raw, &eb) == nil {
			apiErr.Code = eb.Error
			apiErr.Message = eb.Message
			apiErr.Fields = eb.Fields
		}
		if apiErr.Code == "" {
			apiErr.Code = http.StatusText(resp.StatusCode)
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}

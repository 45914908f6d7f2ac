// Package client is the CLI's HTTP client for a running relay daemon.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/groblegark/pixelrelay/internal/diaglog"
	"github.com/groblegark/pixelrelay/internal/settings"
	"github.com/groblegark/pixelrelay/internal/track"
)

// HTTPClient talks to the relay's HTTP/JSON API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates a client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// Health reports the daemon's health status string.
func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// Track submits one page request envelope and returns its trace id.
func (c *HTTPClient) Track(ctx context.Context, env *track.Envelope) (string, error) {
	var resp struct {
		TraceID string `json:"trace_id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/track", env, &resp); err != nil {
		return "", err
	}
	return resp.TraceID, nil
}

// TestConnectionResult is the daemon's report of a connectivity test.
type TestConnectionResult struct {
	StatusCode int            `json:"status_code"`
	Body       map[string]any `json:"body"`
}

// TestConnection asks the daemon to send a synthetic test event.
func (c *HTTPClient) TestConnection(ctx context.Context) (*TestConnectionResult, error) {
	var resp TestConnectionResult
	if err := c.doJSON(ctx, http.MethodPost, "/v1/test", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetSettings fetches the current settings (access token redacted).
func (c *HTTPClient) GetSettings(ctx context.Context) (*settings.Settings, error) {
	var s settings.Settings
	if err := c.doJSON(ctx, http.MethodGet, "/v1/settings", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// PutSettings replaces the settings and returns the stored (redacted) copy.
func (c *HTTPClient) PutSettings(ctx context.Context, s *settings.Settings) (*settings.Settings, error) {
	var out settings.Settings
	if err := c.doJSON(ctx, http.MethodPut, "/v1/settings", s, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListLogs fetches the newest diagnostic log entries.
func (c *HTTPClient) ListLogs(ctx context.Context, limit int) ([]*diaglog.Entry, error) {
	path := "/v1/logs"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp struct {
		Logs []*diaglog.Entry `json:"logs"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Logs, nil
}

// CleanupLogs deletes diagnostic entries older than the cutoff. A zero
// cutoff deletes everything up to now.
func (c *HTTPClient) CleanupLogs(ctx context.Context, before time.Time) (int64, error) {
	path := "/v1/logs"
	if !before.IsZero() {
		q := url.Values{}
		q.Set("before", before.Format(time.RFC3339))
		path += "?" + q.Encode()
	}
	var resp struct {
		Deleted int64 `json:"deleted"`
	}
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, &resp); err != nil {
		return 0, err
	}
	return resp.Deleted, nil
}

// APIError represents an error response from the daemon.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}

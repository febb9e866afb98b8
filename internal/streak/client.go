// Package streak is a thin client for the Streak CRM REST API (v1).
//
// A Client is bound to a single API key; callers pick the key for the
// tenant they are acting for. No retries are attempted: the first upstream
// failure is returned to the caller.
package streak

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the public Streak API root.
const DefaultBaseURL = "https://www.streak.com/api/v1"

// DefaultTimeout bounds a single upstream call when no http.Client is given.
const DefaultTimeout = 30 * time.Second

// maxErrorBody caps how much of an upstream error body is kept.
const maxErrorBody = 1024

// ErrNotFound matches (via errors.Is) an APIError with status 404.
var ErrNotFound = errors.New("streak: not found")

// APIError is a non-2xx response from Streak.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("streak: %s %s returned %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Is reports whether the error is a 404 when target is ErrNotFound.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Client issues authenticated calls against one Streak account.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New returns a client for apiKey. An empty baseURL selects DefaultBaseURL;
// a nil httpClient gets a client with DefaultTimeout.
func New(baseURL, apiKey string, httpClient *http.Client) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{baseURL: baseURL, apiKey: apiKey, http: httpClient}
}

// ListPipelines returns every pipeline visible to the API key.
func (c *Client) ListPipelines(ctx context.Context) ([]Pipeline, error) {
	var out []Pipeline
	if err := c.do(ctx, http.MethodGet, "/pipelines", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetPipeline returns one pipeline including stages and fields.
func (c *Client) GetPipeline(ctx context.Context, key string) (*Pipeline, error) {
	var out Pipeline
	if err := c.do(ctx, http.MethodGet, "/pipelines/"+url.PathEscape(key), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListBoxes returns the boxes of a pipeline.
func (c *Client) ListBoxes(ctx context.Context, pipelineKey string) ([]Box, error) {
	var out []Box
	path := "/pipelines/" + url.PathEscape(pipelineKey) + "/boxes"
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetBox returns a single box.
func (c *Client) GetBox(ctx context.Context, key string) (*Box, error) {
	var out Box
	if err := c.do(ctx, http.MethodGet, "/boxes/"+url.PathEscape(key), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateBoxField sets one field value on a box.
func (c *Client) UpdateBoxField(ctx context.Context, boxKey, fieldKey string, value any) error {
	path := "/boxes/" + url.PathEscape(boxKey) + "/fields/" + url.PathEscape(fieldKey)
	return c.do(ctx, http.MethodPost, path, map[string]any{"value": value}, nil)
}

// do performs a request and decodes a JSON response into out (if non-nil).
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("streak: encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("streak: build %s %s: %w", method, path, err)
	}
	// Streak uses the API key as the basic-auth user with an empty password.
	req.SetBasicAuth(c.apiKey, "")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("streak: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(text)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("streak: decode %s %s: %w", method, path, err)
	}
	return nil
}

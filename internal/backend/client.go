// Package backend is the authenticated HTTP/SSE client for the outreach
// backend. It attaches a bearer token when one is available, maps non-2xx
// responses to typed errors carrying the server's error field, and opens
// cancellable SSE streams for the chat and draft endpoints.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TokenProvider supplies a fresh bearer token for the current user. A nil
// provider, or a provider error, means requests go out unauthenticated;
// the backend's development mode accepts those.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// APIError carries the HTTP status and the server's error message
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend returned HTTP %d", e.Status)
}

// Client talks to the outreach backend
type Client struct {
	baseURL string
	tokens  TokenProvider

	jsonClient   *http.Client
	streamClient *http.Client // no timeout; streams run until done or cancel

	logger *log.Logger
}

// NewClient creates a backend client. baseURL falls back to the localhost
// default when empty.
func NewClient(baseURL string, timeout time.Duration, tokens TokenProvider) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "http://localhost:8080"
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		tokens:       tokens,
		jsonClient:   &http.Client{Timeout: timeout},
		streamClient: &http.Client{Timeout: 0},
	}
}

// SetLogger sets the logger for debug output
func (c *Client) SetLogger(logger *log.Logger) {
	c.logger = logger
}

// BaseURL returns the resolved backend base
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token, err := c.tokens.Token(ctx); err != nil {
			// Proceed unauthenticated; the backend decides whether to accept.
			c.logf("token acquisition failed, sending unauthenticated: %v", err)
		} else if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}

// doJSON performs a request and decodes the JSON response into out (which
// may be nil for fire-and-forget calls).
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.jsonClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkResponse(resp); err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// stream POSTs a JSON body and returns the open SSE response body. The
// caller owns the body and must close it; cancelling ctx terminates the
// stream.
func (c *Client) stream(ctx context.Context, path string, body any) (io.ReadCloser, error) {
	req, err := c.newRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend stream failed: %w", err)
	}
	if err := checkResponse(resp); err != nil {
		_ = resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

// checkResponse maps non-2xx responses to an APIError, preferring the
// server's JSON error field over a generic message.
func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	apiErr := &APIError{Status: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err == nil && len(data) > 0 {
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &payload) == nil && payload.Error != "" {
			apiErr.Message = payload.Error
		}
	}
	return apiErr
}

func (c *Client) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}

func queryPath(path string, params url.Values) string {
	if len(params) == 0 {
		return path
	}
	return path + "?" + params.Encode()
}

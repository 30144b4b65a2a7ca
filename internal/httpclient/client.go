// Package httpclient provides the shared HTTP client used by the status
// probes, with classified errors so callers can tell transient conditions
// from authoritative failures.
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultTimeout = 30 * time.Second
	userAgent      = "loomctl/1.0"
)

// Client abstracts HTTP access for probe implementations
//
//go:generate mockgen -destination=mocks/mock_client.go -package=mocks github.com/loomstudio/loomctl/internal/httpclient Client
type Client interface {
	// Get fetches the URL and returns the response body. Non-2xx responses
	// are returned as *HTTPError with the body captured as the message.
	Get(ctx context.Context, url string) ([]byte, error)

	// Post sends a JSON body to the URL. The response body is returned for
	// all responses; non-2xx status is reported via *HTTPError alongside it
	// so callers can still parse structured error payloads.
	Post(ctx context.Context, url string, body []byte) ([]byte, int, error)
}

// DefaultClient is the standard implementation of Client
type DefaultClient struct {
	client *http.Client
}

// NewDefaultClient creates a client with the given timeout. A zero timeout
// falls back to the default of 30 seconds.
func NewDefaultClient(timeout time.Duration) *DefaultClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &DefaultClient{
		client: &http.Client{
			Timeout: timeout,
			Jar:     nil,
		},
	}
}

// NewDefaultClientWithJar creates a client that carries cookies between
// requests, as the authenticated session endpoints require.
func NewDefaultClientWithJar(timeout time.Duration, jar http.CookieJar) *DefaultClient {
	c := NewDefaultClient(timeout)
	c.client.Jar = jar
	return c
}

// Get fetches the URL and returns the response body
func (c *DefaultClient) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return data, NewHTTPError(resp.StatusCode, url, string(data))
	}

	return data, nil
}

// Post sends a JSON body to the URL
func (c *DefaultClient) Post(ctx context.Context, url string, body []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return data, resp.StatusCode, NewHTTPError(resp.StatusCode, url, string(data))
	}

	return data, resp.StatusCode, nil
}

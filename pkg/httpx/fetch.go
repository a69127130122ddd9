package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// HTTPError captures a non-2xx response so callers can inspect the status
// code with errors.As instead of parsing the message.
type HTTPError struct {
	StatusCode int
	URL        string
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("request to %s returned status %d", e.URL, e.StatusCode)
}

// IsHTTPError reports whether err is an *HTTPError with the given status.
func IsHTTPError(err error, code int) bool {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		return false
	}
	return httpErr.StatusCode == code
}

// fetchConfig is built up by FetchOptions.
type fetchConfig struct {
	method         string
	headers        map[string]string
	body           io.Reader
	maxResponse    int64
}

// FetchOption configures a single Fetch call.
type FetchOption func(*fetchConfig)

func WithMethod(method string) FetchOption {
	return func(c *fetchConfig) { c.method = method }
}

func WithHeader(key, value string) FetchOption {
	return func(c *fetchConfig) { c.headers[key] = value }
}

func WithMaxResponseSize(n int64) FetchOption {
	return func(c *fetchConfig) { c.maxResponse = n }
}

// Fetch performs an HTTP request and returns the (size-bounded) response
// body, or an *HTTPError for any non-2xx status.
func Fetch(ctx context.Context, client *http.Client, url string, opts ...FetchOption) ([]byte, error) {
	cfg := &fetchConfig{
		method:      http.MethodGet,
		headers:     map[string]string{},
		maxResponse: DefaultMaxResponseSize,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	req, err := http.NewRequestWithContext(ctx, cfg.method, url, cfg.body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	for k, v := range cfg.headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, cfg.maxResponse+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body from %s: %w", url, err)
	}
	if int64(len(data)) > cfg.maxResponse {
		return nil, fmt.Errorf("response from %s exceeded %d bytes", url, cfg.maxResponse)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: url, Body: data}
	}
	return data, nil
}

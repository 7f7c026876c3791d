// Package fetch provides the HTTP transport used to download artifacts,
// with bounded retries and size-limited reads.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultTimeout is the default timeout for HTTP requests
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResponseSize is the default maximum allowed response size (500MB)
	DefaultMaxResponseSize = 500 * 1024 * 1024

	// UserAgent is the user agent string for HTTP requests
	UserAgent = "aadatakit/1.0"
)

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks -source=client.go Client

// Client is an interface for HTTP operations
type Client interface {
	// Get performs an HTTP GET request and returns the response body
	Get(ctx context.Context, url string) ([]byte, error)

	// Download performs an HTTP GET request and streams the response body
	// to dst, returning the number of bytes written
	Download(ctx context.Context, url string, dst io.Writer) (int64, error)
}

// DefaultClient is the default HTTP client implementation
type DefaultClient struct {
	client  *http.Client
	maxSize int64
}

// NewDefaultClient creates a new default HTTP client. Zero values select
// DefaultTimeout and DefaultMaxResponseSize.
func NewDefaultClient(timeout time.Duration, maxSize int64) *DefaultClient {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if maxSize == 0 {
		maxSize = DefaultMaxResponseSize
	}
	return &DefaultClient{
		client: &http.Client{
			Timeout: timeout,
		},
		maxSize: maxSize,
	}
}

// Get performs an HTTP GET request and returns the full response body
func (c *DefaultClient) Get(ctx context.Context, url string) ([]byte, error) {
	body, _, err := c.do(ctx, url)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = body.Close()
	}()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return data, nil
}

// Download streams the response body to dst
func (c *DefaultClient) Download(ctx context.Context, url string, dst io.Writer) (int64, error) {
	body, contentLength, err := c.do(ctx, url)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = body.Close()
	}()

	n, err := io.Copy(dst, body)
	if err != nil {
		return n, fmt.Errorf("transfer interrupted after %d bytes: %w", n, err)
	}

	// A short read against a declared Content-Length is a partial
	// transfer even when the connection closed cleanly.
	if contentLength > 0 && n < contentLength {
		return n, fmt.Errorf("partial transfer: got %d of %d bytes: %w",
			n, contentLength, io.ErrUnexpectedEOF)
	}

	return n, nil
}

func (c *DefaultClient) do(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to execute request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, 0, NewHTTPError(resp.StatusCode, url, resp.Status)
	}

	if resp.ContentLength > c.maxSize {
		_ = resp.Body.Close()
		return nil, 0, fmt.Errorf("response size %d bytes exceeds maximum allowed size of %d bytes",
			resp.ContentLength, c.maxSize)
	}

	return &limitedBody{body: resp.Body, remaining: c.maxSize}, resp.ContentLength, nil
}

// limitedBody guards against servers that stream more than the declared or
// allowed size. Reading past the limit fails instead of truncating silently.
type limitedBody struct {
	body      io.ReadCloser
	remaining int64
}

func (l *limitedBody) Read(p []byte) (int, error) {
	if l.remaining <= 0 {
		return 0, fmt.Errorf("response exceeds maximum allowed size")
	}
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.body.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, fmt.Errorf("response exceeds maximum allowed size")
	}
	return n, err
}

func (l *limitedBody) Close() error {
	return l.body.Close()
}

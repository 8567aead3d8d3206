package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"time"
)

// DefaultTimeout bounds every fetch when no explicit timeout is configured.
const DefaultTimeout = 30 * time.Second

// FetchError describes a failed fetch. Exactly one of Timeout or a non-zero
// StatusCode is set for the spec'd failure causes; other transport errors
// keep both unset and carry the underlying error.
type FetchError struct {
	URL        string
	StatusCode int
	Timeout    bool
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed (%s)", e.URL, e.Cause())
}

// Cause returns the failure cause as a stable string: "timeout",
// "http_status:<code>", or "network".
func (e *FetchError) Cause() string {
	if e.Timeout {
		return "timeout"
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("http_status:%d", e.StatusCode)
	}
	return "network"
}

func (e *FetchError) Unwrap() error { return e.Err }

// retryable reports whether another attempt could plausibly succeed.
func (e *FetchError) retryable() bool {
	if e.Timeout || e.StatusCode == 0 {
		return true
	}
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable:
		return true
	}
	return e.StatusCode >= 500
}

// Client is a reusable HTTP client for fetching feed payloads. One Client is
// shared for a whole ingestion run; Close releases its idle connections.
type Client struct {
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
}

// NewClient creates a client with a fixed per-request timeout. maxRetries is
// the number of additional attempts after a retryable failure; zero disables
// retrying.
func NewClient(timeout time.Duration, maxRetries int, retryDelay time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
}

// Fetch issues a GET for url and returns the full response body. Failures are
// returned as *FetchError; the call never blocks past the configured timeout
// per attempt.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		data, err := c.fetchOnce(ctx, url)
		if err == nil {
			return data, nil
		}
		lastErr = err
		var fe *FetchError
		if attempt >= c.maxRetries || !errors.As(err, &fe) || !fe.retryable() {
			break
		}
		log.Printf("retrying %s in %s (attempt %d/%d): %v", url, c.retryDelay, attempt+1, c.maxRetries, err)
		select {
		case <-ctx.Done():
			return nil, lastErr
		case <-time.After(c.retryDelay):
		}
	}
	return nil, lastErr
}

func (c *Client) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", "gtfs-ingest/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Timeout: isTimeout(err), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: url, Timeout: isTimeout(err), Err: err}
	}
	log.Printf("fetched %d bytes from %s", len(data), url)
	return data, nil
}

// Close releases idle connections held by the shared client.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

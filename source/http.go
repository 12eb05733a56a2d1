package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// HTTPClient is a wrapper for http.Client with rate limiting and retries.
type HTTPClient struct {
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	// NewBackOff returns the retry policy for one request.
	NewBackOff func() backoff.BackOff
}

// HTTPOptions holds options for creating a new HTTPClient.
type HTTPOptions struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	BurstSize         int
	MaxElapsed        time.Duration
}

// NewHTTPClient creates a new HTTP client with rate limiting.
func NewHTTPClient(opts HTTPOptions) *HTTPClient {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerSecond == 0 {
		opts.RequestsPerSecond = 2
	}
	if opts.BurstSize == 0 {
		opts.BurstSize = 1
	}
	if opts.MaxElapsed == 0 {
		opts.MaxElapsed = 30 * time.Second
	}

	maxElapsed := opts.MaxElapsed
	return &HTTPClient{
		HTTPClient: &http.Client{Timeout: opts.Timeout},
		Limiter:    rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.BurstSize),
		NewBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = maxElapsed
			return b
		},
	}
}

// Get fetches url and returns the body of a 200 response.
// Transport errors, 429 and 5xx responses are retried; other statuses fail at once.
func (c *HTTPClient) Get(ctx context.Context, url string) (io.ReadCloser, error) {
	var body io.ReadCloser
	operation := func() error {
		if err := c.Limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			statusErr := &HTTPStatusError{StatusCode: resp.StatusCode, URL: url}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return statusErr
			}
			return backoff.Permanent(statusErr)
		}
		body = resp.Body
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(c.NewBackOff(), ctx)); err != nil {
		return nil, err
	}
	return body, nil
}

// HTTPStatusError represents an error due to a non-200 HTTP status code
type HTTPStatusError struct {
	StatusCode int
	URL        string
}

// Error implements the error interface
func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("GET %s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

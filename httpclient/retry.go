package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ErrRetryExhausted is returned after the last retry attempt fails.
var ErrRetryExhausted = errors.New("retry attempts exhausted")

// StatusError is a non-2xx response surfaced as an error.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Transient reports whether a status code is worth retrying: 429 and 5xx.
// Other 4xx responses are terminal per-attempt failures.
func Transient(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= 500
}

// Config tunes the retry behavior.
type Config struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int
	// BaseDelay scales the exponential backoff: the delay before retry n
	// (1-indexed) is BaseDelay * 2^n.
	BaseDelay time.Duration
	// Timeout applies per attempt.
	Timeout time.Duration
}

// DefaultConfig returns the production retry settings.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		Timeout:    30 * time.Second,
	}
}

// Client wraps a single logical HTTP request with bounded
// exponential-backoff retry on transient failures. It carries no knowledge
// of any particular upstream.
type Client struct {
	http       *http.Client
	maxRetries int
	baseDelay  time.Duration
	logger     *zap.Logger
}

// New creates a Client with the default retry settings.
func New(logger *zap.Logger) *Client {
	return NewWithConfig(DefaultConfig(), logger)
}

// NewWithConfig creates a Client with explicit retry settings.
func NewWithConfig(cfg Config, logger *zap.Logger) *Client {
	return &Client{
		http:       &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.BaseDelay,
		logger:     logger,
	}
}

// Do performs the request produced by build, retrying on 429, 5xx and
// transport errors. build is invoked once per attempt so request bodies can
// be recreated. On success the response body is returned; a terminal 4xx is
// returned immediately as a *StatusError.
func (c *Client) Do(ctx context.Context, build func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.baseDelay * time.Duration(1<<attempt)
			c.logger.Debug("Retrying request after backoff",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", delay),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("request cancelled during backoff: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		req, err := build(ctx)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("read response: %w", readErr)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if attempt > 0 {
				c.logger.Info("Request succeeded after retry", zap.Int("attempt", attempt))
			}
			return body, nil
		}

		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: truncate(body, 512)}
		if !Transient(resp.StatusCode) {
			return nil, statusErr
		}
		lastErr = statusErr
	}

	return nil, fmt.Errorf("%w after %d attempts: %v", ErrRetryExhausted, c.maxRetries+1, lastErr)
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}

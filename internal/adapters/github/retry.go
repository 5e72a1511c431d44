package github

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	gogithub "github.com/google/go-github/v79/github"
)

// RetryOptions configures retry behavior
type RetryOptions struct {
	MaxRetries int           // Maximum number of retries
	BaseDelay  time.Duration // Initial delay between retries
	MaxDelay   time.Duration // Longest single wait; longer server-requested waits are not retried
}

// DefaultRetryOptions returns defaults sized for interactive replies: a user
// is waiting on the answer, so give up quickly and omit the entity instead.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxRetries: 2,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   5 * time.Second,
	}
}

// WithRetry executes an operation with exponential backoff retry.
// It respects context cancellation and GitHub's Retry-After hints.
func WithRetry[T any](ctx context.Context, op func() (T, error), opts RetryOptions) (T, error) {
	var result T
	var lastErr error

	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		result, lastErr = op()
		if lastErr == nil {
			return result, nil
		}

		if !isRetryableError(lastErr) || attempt >= opts.MaxRetries {
			return result, lastErr
		}

		// 500ms, 1s, 2s, ...
		delay := opts.BaseDelay * time.Duration(1<<uint(attempt))
		if delay > opts.MaxDelay {
			delay = opts.MaxDelay
		}

		if retryAfter := extractRetryAfter(lastErr); retryAfter > 0 {
			if retryAfter > opts.MaxDelay {
				return result, lastErr
			}
			delay = retryAfter
		}

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(delay):
		}
	}

	return result, lastErr
}

// isRetryableError determines if an error is transient and should be retried.
// Retried: secondary (abuse) rate limits, 5xx responses, network errors.
// Not retried: primary rate limit exhaustion (resets take minutes), 4xx.
func isRetryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var abuseErr *gogithub.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return true
	}

	var rateErr *gogithub.RateLimitError
	if errors.As(err, &rateErr) {
		return false
	}

	var errResp *gogithub.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		switch errResp.Response.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// GraphQL transport errors arrive as plain strings.
	errLower := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection refused",
		"connection reset",
		"i/o timeout",
		"non-200 ok status code: 502",
		"non-200 ok status code: 503",
	} {
		if strings.Contains(errLower, pattern) {
			return true
		}
	}

	return false
}

// extractRetryAfter returns how long GitHub asked us to wait, or 0.
func extractRetryAfter(err error) time.Duration {
	var abuseErr *gogithub.AbuseRateLimitError
	if errors.As(err, &abuseErr) && abuseErr.RetryAfter != nil {
		return *abuseErr.RetryAfter
	}
	return 0
}

// Package httpretry wraps an HTTP client with a bounded retry policy for
// calls against flaky external APIs. Retries apply to transport errors and
// retryable status codes only; client errors return immediately.
package httpretry

import (
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPDoer is the interface for executing HTTP requests.
// Both *http.Client and *RetryClient satisfy it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Policy describes a bounded retry schedule. The zero value is not usable;
// use DefaultPolicy or construct one explicitly.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// BaseDelay is the backoff unit; the wait before attempt n+1 is
	// BaseDelay·2^n plus a linear jitter term of n·JitterStep.
	BaseDelay  time.Duration
	JitterStep time.Duration
}

// DefaultPolicy returns the standard schedule: three attempts, one second
// base delay, 100ms jitter step.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: time.Second, JitterStep: 100 * time.Millisecond}
}

// Delay returns the wait after a failed attempt (zero-based index).
func (p Policy) Delay(attempt int) time.Duration {
	return p.BaseDelay<<uint(attempt) + time.Duration(attempt)*p.JitterStep
}

// RetryClient applies a Policy around an HTTPDoer.
type RetryClient struct {
	client HTTPDoer
	policy Policy
	sleep  func(time.Duration)
}

// NewRetryClient wraps client with the given policy. A nil client gets a
// default http.Client with a 30s timeout.
func NewRetryClient(client HTTPDoer, policy Policy) *RetryClient {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if policy.MaxAttempts <= 0 {
		policy = DefaultPolicy()
	}
	return &RetryClient{client: client, policy: policy, sleep: time.Sleep}
}

// SetSleep overrides the inter-attempt sleep, for tests.
func (rc *RetryClient) SetSleep(sleep func(time.Duration)) { rc.sleep = sleep }

// Do executes the request, retrying transport errors and retryable status
// codes (429, 5xx). The last attempt's response or error is returned as-is
// so the caller can inspect it.
func (rc *RetryClient) Do(req *http.Request) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt < rc.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, fmt.Errorf("httpretry: reset request body: %w", err)
				}
				req.Body = body
			}
			rc.sleep(rc.policy.Delay(attempt - 1))
		}

		if err := req.Context().Err(); err != nil {
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, err
		}

		resp, err := rc.client.Do(req)
		if err != nil {
			lastErr = err
			if req.Context().Err() != nil {
				return nil, err
			}
			continue
		}

		if !retryableStatus(resp.StatusCode) {
			return resp, nil
		}
		if attempt == rc.policy.MaxAttempts-1 {
			return resp, nil
		}

		// Drain so the connection can be reused.
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		lastErr = fmt.Errorf("httpretry: server returned retryable status %d", resp.StatusCode)
	}

	return nil, lastErr
}

// retryableStatus reports whether a status code indicates a transient
// server-side failure. Client errors (4xx other than 429) never retry.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

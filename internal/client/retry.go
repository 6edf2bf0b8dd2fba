package client

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
)

// RetryPolicy controls how idempotent requests are retried after transient failures.
// Requests that change state (POST, PUT, PATCH, DELETE) are never retried, so login
// stays at-most-once.
type RetryPolicy struct {
	// MaxAttempts counts every attempt including the first; 0 or 1 disables retries.
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
	}
}

// Enabled reports whether the policy performs any retries.
func (p RetryPolicy) Enabled() bool {
	return p.MaxAttempts > 1
}

// ShouldRetry reports whether a request may be retried given its outcome.
func (p RetryPolicy) ShouldRetry(req *http.Request, resp *http.Response, err error) bool {
	if !p.Enabled() || !isIdempotent(req.Method) {
		return false
	}
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return false
	}
	if err != nil {
		return req.Context().Err() == nil
	}
	return isRetryableStatus(resp.StatusCode)
}

func (p RetryPolicy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	return b
}

// Transport wraps next with the retry policy.
func (p RetryPolicy) Transport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &retryTransport{policy: p, next: next}
}

type retryTransport struct {
	policy RetryPolicy
	next   http.RoundTripper
}

var errRetryableStatus = errors.New("retryable status")

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.policy.Enabled() || !isIdempotent(req.Method) {
		return t.next.RoundTrip(req)
	}

	var attempt uint
	operation := func() (*http.Response, error) {
		attempt++

		attemptReq := req
		if attempt > 1 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, backoff.Permanent(err)
			}
			attemptReq = req.Clone(req.Context())
			attemptReq.Body = body
		}

		resp, err := t.next.RoundTrip(attemptReq)
		last := attempt >= t.policy.MaxAttempts

		if !t.policy.ShouldRetry(attemptReq, resp, err) {
			if err != nil {
				return nil, backoff.Permanent(err)
			}
			return resp, nil
		}

		if err != nil {
			return nil, err
		}

		// hand the final response back to the caller instead of an error
		if last {
			return resp, nil
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %d", errRetryableStatus, resp.StatusCode)
	}

	return backoff.Retry(req.Context(), operation,
		backoff.WithBackOff(t.policy.backOff()),
		backoff.WithMaxTries(t.policy.MaxAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Debug().
				Err(err).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Uint("attempt", attempt).
				Dur("next_retry", next).
				Msg("request failed, will retry")
		}),
	)
}

func isIdempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// Package httpclient builds the http.Client used for dashboard API calls:
// bounded retries with exponential backoff for transient failures and a
// failure-counting breaker so a dead backend does not queue work.
package httpclient

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// ErrBodyNotReplayable indicates a request body cannot be retried.
var ErrBodyNotReplayable = errors.New("request body is not replayable")

// BackoffFunc returns the backoff duration for a retry attempt.
type BackoffFunc func(attempt int) time.Duration

// RetryDecider decides whether a request should be retried.
type RetryDecider func(req *http.Request, resp *http.Response, err error) bool

// RetryOptions configures retry behavior.
type RetryOptions struct {
	MaxRetries int
	Backoff    BackoffFunc
	RetryIf    RetryDecider
	OnRetry    func(attempt int, err error, resp *http.Response)
}

// RetryTransport retries requests based on RetryOptions.
type RetryTransport struct {
	Base    http.RoundTripper
	Options RetryOptions
	Sleep   func(time.Duration)
}

// RoundTrip executes the request with retry behavior.
func (r *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := r.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if req == nil {
		return nil, errors.New("request is nil")
	}

	opts := r.Options
	if opts.Backoff == nil {
		opts.Backoff = ExponentialBackoff(100*time.Millisecond, 2*time.Second)
	}
	if opts.RetryIf == nil {
		opts.RetryIf = DefaultRetryDecider
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	attempt := 0
	var resp *http.Response
	var err error
	for {
		currentReq, cloneErr := cloneRequest(req, attempt)
		if cloneErr != nil {
			if errors.Is(cloneErr, ErrBodyNotReplayable) && attempt > 0 {
				return resp, err
			}
			return nil, cloneErr
		}

		resp, err = base.RoundTrip(currentReq)
		if attempt >= opts.MaxRetries || !opts.RetryIf(req, resp, err) {
			return resp, err
		}

		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}

		attempt++
		if opts.OnRetry != nil {
			opts.OnRetry(attempt, err, resp)
		}

		if wait := opts.Backoff(attempt); wait > 0 {
			if err := sleepWithContext(req.Context(), wait, sleep); err != nil {
				return nil, err
			}
		}
	}
}

// ExponentialBackoff returns a backoff function with exponential growth.
func ExponentialBackoff(base, max time.Duration) BackoffFunc {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	if max <= 0 {
		max = 2 * time.Second
	}
	return func(attempt int) time.Duration {
		if attempt <= 0 {
			return base
		}
		delay := base << (attempt - 1)
		if delay > max {
			return max
		}
		return delay
	}
}

// DefaultRetryDecider retries idempotent methods on network errors or 5xx/429
// responses. 401 and 403 are never retried: they are authorization outcomes,
// not transport failures.
func DefaultRetryDecider(req *http.Request, resp *http.Response, err error) bool {
	if req == nil {
		return false
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}
		return isIdempotent(req.Method)
	}
	if resp == nil {
		return false
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return isIdempotent(req.Method)
	}
	return false
}

// ClientOptions configures a default HTTP client.
type ClientOptions struct {
	Timeout    time.Duration
	Transport  http.RoundTripper
	Retry      RetryOptions
	Breaker    *Breaker
	ShouldTrip BreakerDecider
	Jar        http.CookieJar
}

// DefaultClientOptions returns a baseline client configuration.
func DefaultClientOptions() ClientOptions {
	return ClientOptions{Timeout: 15 * time.Second}
}

// New builds an http.Client with retries and breaker support. The cookie jar,
// when provided, carries the ambient tenant session.
func New(options ClientOptions) *http.Client {
	transport := options.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	if options.Retry.MaxRetries > 0 {
		transport = &RetryTransport{Base: transport, Options: options.Retry}
	}
	if options.Breaker != nil {
		transport = &BreakerTransport{Base: transport, Breaker: options.Breaker, ShouldTrip: options.ShouldTrip}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   options.Timeout,
		Jar:       options.Jar,
	}
}

func cloneRequest(req *http.Request, attempt int) (*http.Request, error) {
	if attempt == 0 {
		return req, nil
	}

	if req.Body == nil {
		return req.Clone(req.Context()), nil
	}
	if req.GetBody == nil {
		return nil, ErrBodyNotReplayable
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	clone := req.Clone(req.Context())
	clone.Body = body
	return clone, nil
}

func sleepWithContext(ctx context.Context, delay time.Duration, sleep func(time.Duration)) error {
	if delay <= 0 {
		return nil
	}
	if ctx == nil {
		sleep(delay)
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func isIdempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}

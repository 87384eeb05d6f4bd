package httpclient

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"
)

// ErrCircuitOpen indicates the breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker open")

// BreakerDecider decides whether a response/error should trip the breaker.
type BreakerDecider func(req *http.Request, resp *http.Response, err error) bool

// Breaker implements a simple failure-based circuit breaker.
type Breaker struct {
	mu               sync.Mutex
	state            breakerState
	failures         int
	openedAt         time.Time
	halfOpenInFlight bool
	maxFailures      int
	resetTimeout     time.Duration
	now              func() time.Time
	onStateChange    func(state string)
}

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// BreakerOptions configures a Breaker.
type BreakerOptions struct {
	MaxFailures   int
	ResetTimeout  time.Duration
	Now           func() time.Time
	OnStateChange func(state string)
}

// NewBreaker builds a Breaker with defaults.
func NewBreaker(options BreakerOptions) *Breaker {
	maxFailures := options.MaxFailures
	if maxFailures <= 0 {
		maxFailures = 5
	}
	reset := options.ResetTimeout
	if reset <= 0 {
		reset = 30 * time.Second
	}
	now := options.Now
	if now == nil {
		now = time.Now
	}
	return &Breaker{
		maxFailures:   maxFailures,
		resetTimeout:  reset,
		now:           now,
		onStateChange: options.OnStateChange,
	}
}

// Allow returns ErrCircuitOpen when the breaker is open.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()

	switch b.state {
	case stateOpen:
		if now.Sub(b.openedAt) >= b.resetTimeout {
			b.state = stateHalfOpen
			b.halfOpenInFlight = false
			b.changeState("half-open")
		} else {
			return ErrCircuitOpen
		}
	case stateHalfOpen:
		if b.halfOpenInFlight {
			return ErrCircuitOpen
		}
	}

	if b.state == stateHalfOpen {
		b.halfOpenInFlight = true
	}
	return nil
}

// Record reports the success/failure of a request.
func (b *Breaker) Record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()

	switch b.state {
	case stateHalfOpen:
		b.halfOpenInFlight = false
		if success {
			b.state = stateClosed
			b.failures = 0
			b.changeState("closed")
			return
		}
		b.state = stateOpen
		b.failures = 0
		b.openedAt = now
		b.changeState("open")
		return
	case stateOpen:
		return
	}

	if success {
		b.failures = 0
		return
	}

	b.failures++
	if b.failures >= b.maxFailures {
		b.state = stateOpen
		b.failures = 0
		b.openedAt = now
		b.changeState("open")
	}
}

func (b *Breaker) changeState(state string) {
	if b.onStateChange != nil {
		b.onStateChange(state)
	}
}

// BreakerTransport wraps a base transport with a Breaker.
type BreakerTransport struct {
	Base       http.RoundTripper
	Breaker    *Breaker
	ShouldTrip BreakerDecider
}

// RoundTrip executes the request with circuit breaker protection.
func (t *BreakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.Breaker == nil {
		return base.RoundTrip(req)
	}

	if err := t.Breaker.Allow(); err != nil {
		return nil, err
	}

	resp, err := base.RoundTrip(req)
	trip := t.ShouldTrip
	if trip == nil {
		trip = DefaultBreakerDecider
	}

	t.Breaker.Record(!trip(req, resp, err))
	return resp, err
}

// DefaultBreakerDecider trips on network errors or 5xx responses. Auth
// failures (401/403) never trip the breaker.
func DefaultBreakerDecider(req *http.Request, resp *http.Response, err error) bool {
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}
		return true
	}
	if resp == nil {
		return false
	}
	return resp.StatusCode >= http.StatusInternalServerError
}

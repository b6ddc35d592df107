package gateway

import (
	"fmt"
	"sync"
	"time"
)

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// circuitBreaker isolates a failing provider: after threshold consecutive
// failures it rejects calls outright until the cooldown elapses, then lets
// exactly one probe through. A successful probe closes the breaker and
// resets the failure count; a failed probe reopens it and restarts the
// timer.
type circuitBreaker struct {
	mu          sync.Mutex
	threshold   int
	cooldown    time.Duration
	state       breakerState
	failures    int
	lastFailure time.Time
	lastSuccess time.Time

	now func() time.Time
}

func newCircuitBreaker(threshold int, cooldown time.Duration) *circuitBreaker {
	return &circuitBreaker{
		threshold: threshold,
		cooldown:  cooldown,
		state:     breakerClosed,
		now:       time.Now,
	}
}

// allow decides whether a fresh provider call may proceed. While open it
// returns a CircuitBreakerOpen error; once the cooldown has elapsed the
// calling goroutine becomes the single half-open probe.
func (b *circuitBreaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerClosed:
		return nil
	case breakerHalfOpen:
		// A probe is already in flight.
		return NewError(ErrorTypeCircuitOpen, "circuit breaker is half-open, probe in flight", nil)
	default:
		elapsed := b.now().Sub(b.lastFailure)
		if elapsed >= b.cooldown {
			b.state = breakerHalfOpen
			b.failures = 0
			return nil
		}
		remaining := b.cooldown - elapsed
		return NewError(ErrorTypeCircuitOpen,
			fmt.Sprintf("circuit breaker is open, retry in %s", remaining.Round(time.Second)), nil)
	}
}

func (b *circuitBreaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = breakerClosed
	b.failures = 0
	b.lastSuccess = b.now()
}

func (b *circuitBreaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailure = b.now()
	if b.state == breakerHalfOpen {
		b.state = breakerOpen
		return
	}

	b.failures++
	if b.failures >= b.threshold {
		b.state = breakerOpen
	}
}

func (b *circuitBreaker) currentState() breakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

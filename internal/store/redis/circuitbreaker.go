package redis

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	StateClosed   State = 0 // Normal operation — publishes pass through
	StateOpen     State = 1 // Tripped — publishes rejected until the cooldown elapses
	StateHalfOpen State = 2 // Cooldown over — a single probe publish is allowed
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when the circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker guards the Redis publish path. After maxFailures
// consecutive publish errors it opens and rejects writes for the cooldown;
// the first write after the cooldown runs as a lone probe that closes the
// breaker on success and reopens it on failure.
//
// A context.Canceled error is not counted: it means the engine is shutting
// down with a publish in flight, not that Redis is in trouble. Deadline
// overruns DO count — a Redis that cannot answer in time is the exact
// condition the breaker exists for.
//
// Publishing is fire-and-forget, so a tripped breaker only costs
// observability; the bar loop never blocks on Redis.
type CircuitBreaker struct {
	mu          sync.Mutex
	state       State
	consecutive int
	maxFailures int
	cooldown    time.Duration
	openedAt    time.Time
	probing     bool

	// OnStateChange, if set, is called on every state transition.
	OnStateChange func(from, to State)
}

// NewCircuitBreaker creates a circuit breaker.
// maxFailures: consecutive failures before opening (e.g., 5)
// cooldown: time to wait before the half-open probe (e.g., 10s)
func NewCircuitBreaker(maxFailures int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		maxFailures: maxFailures,
		cooldown:    cooldown,
		state:       StateClosed,
	}
}

// Execute runs fn through the breaker, returning ErrCircuitOpen without
// calling fn when the breaker is rejecting writes.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.allow() {
		return ErrCircuitOpen
	}
	err := fn()
	cb.record(err)
	return err
}

// CurrentState returns the current circuit breaker state.
func (cb *CircuitBreaker) CurrentState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(cb.openedAt) <= cb.cooldown {
			return false
		}
		cb.transition(StateHalfOpen)
		cb.probing = true
		return true
	default: // half-open: exactly one probe at a time
		if cb.probing {
			return false
		}
		cb.probing = true
		return true
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.probing = false

	if errors.Is(err, context.Canceled) {
		// Shutdown mid-publish; neither a failure nor a success.
		return
	}

	if err != nil {
		cb.consecutive++
		if cb.state == StateHalfOpen || cb.consecutive >= cb.maxFailures {
			cb.openedAt = time.Now()
			cb.transition(StateOpen)
		}
		return
	}

	cb.consecutive = 0
	if cb.state == StateHalfOpen {
		cb.transition(StateClosed)
	}
}

func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if to == StateClosed {
		cb.consecutive = 0
	}
	if cb.OnStateChange != nil {
		cb.OnStateChange(from, to)
	}
}

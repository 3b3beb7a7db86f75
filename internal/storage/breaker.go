// breaker.go - Circuit breaker guarding calls to the object store.
//
// When the S3 endpoint keeps failing, requests fail fast instead of piling up
// behind network timeouts.
package storage

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CircuitState represents the current state of a circuit breaker.
type CircuitState int

const (
	// StateClosed lets calls through.
	StateClosed CircuitState = iota
	// StateOpen rejects calls until the timeout has elapsed.
	StateOpen
	// StateHalfOpen lets a single probe call through.
	StateHalfOpen
)

func (s CircuitState) String() string {
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

var (
	// ErrCircuitOpen is returned while the breaker is open.
	ErrCircuitOpen = errors.New("storage circuit breaker is open")

	// ErrTooManyRequests is returned when a probe is already in flight.
	ErrTooManyRequests = errors.New("too many requests while circuit is half-open")
)

// CircuitBreaker implements the circuit breaker pattern.
type CircuitBreaker struct {
	mu sync.Mutex

	maxFailures uint32
	timeout     time.Duration
	maxHalfOpen uint32

	state            CircuitState
	failures         uint32
	lastFailureTime  time.Time
	halfOpenRequests uint32

	log *zap.Logger
	now func() time.Time
}

// NewCircuitBreaker opens after maxFailures consecutive failures and probes
// again once timeout has passed.
func NewCircuitBreaker(maxFailures uint32, timeout time.Duration, log *zap.Logger) *CircuitBreaker {
	if log == nil {
		log = zap.NewNop()
	}
	return &CircuitBreaker{
		maxFailures: maxFailures,
		timeout:     timeout,
		maxHalfOpen: 1,
		state:       StateClosed,
		log:         log,
		now:         time.Now,
	}
}

// Execute runs fn unless the circuit is open.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.lastFailureTime) <= cb.timeout {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.halfOpenRequests = 0
		cb.log.Info("circuit breaker half-open", zap.Duration("timeout", cb.timeout))
		fallthrough
	case StateHalfOpen:
		if cb.halfOpenRequests >= cb.maxHalfOpen {
			cb.mu.Unlock()
			return ErrTooManyRequests
		}
		cb.halfOpenRequests++
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil {
		cb.onFailure()
		return err
	}
	cb.onSuccess()
	return nil
}

func (cb *CircuitBreaker) onSuccess() {
	cb.failures = 0
	if cb.state == StateHalfOpen {
		cb.state = StateClosed
		cb.halfOpenRequests = 0
		cb.log.Info("circuit breaker closed")
	}
}

func (cb *CircuitBreaker) onFailure() {
	cb.failures++
	cb.lastFailureTime = cb.now()

	if cb.state == StateHalfOpen || cb.failures >= cb.maxFailures {
		if cb.state != StateOpen {
			cb.log.Warn("circuit breaker opened",
				zap.Uint32("failures", cb.failures),
				zap.Uint32("max_failures", cb.maxFailures),
				zap.Duration("timeout", cb.timeout))
		}
		cb.state = StateOpen
		cb.halfOpenRequests = 0
	}
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

package http

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed is the normal state where requests are allowed.
	CircuitClosed CircuitState = iota
	// CircuitOpen is the state where requests fail fast.
	CircuitOpen
	// CircuitHalfOpen lets a limited number of probe requests through.
	CircuitHalfOpen
)

// String returns the string representation of a circuit state.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

const (
	// DefaultFailureThreshold is the number of consecutive failures to open the circuit.
	DefaultFailureThreshold = 5
	// DefaultRecoveryTimeout is how long the circuit stays open before probing.
	DefaultRecoveryTimeout = 30 * time.Second
	// DefaultHalfOpenMaxRequests is the number of probes allowed in half-open state.
	DefaultHalfOpenMaxRequests = 1
)

// ErrCircuitOpen is matched by every *CircuitOpenError via errors.Is.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitOpenError is returned when requests to a host are being short-circuited.
type CircuitOpenError struct {
	Host    string
	RetryAt time.Time
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker is open for %s until %s", e.Host, e.RetryAt.Format(time.RFC3339))
}

func (e *CircuitOpenError) Is(target error) bool { return target == ErrCircuitOpen }

// Transient reports false: the recovery window is longer than any retry
// backoff, so retrying inside it only burns attempts.
func (e *CircuitOpenError) Transient() bool { return false }

// CircuitBreakerConfig configures circuit breaker behavior.
type CircuitBreakerConfig struct {
	FailureThreshold    int
	RecoveryTimeout     time.Duration
	HalfOpenMaxRequests int
	// IsTransientError decides which failures count against the circuit.
	// A 400 from a bad caption says nothing about host health. If nil,
	// every failure counts.
	IsTransientError func(error) bool
}

// DefaultCircuitBreakerConfig returns sensible defaults for circuit breaker configuration.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold:    DefaultFailureThreshold,
		RecoveryTimeout:     DefaultRecoveryTimeout,
		HalfOpenMaxRequests: DefaultHalfOpenMaxRequests,
	}
}

type circuit struct {
	state             CircuitState
	consecutiveErrors int
	lastError         time.Time
	lastStateChange   time.Time
	halfOpenRequests  int
}

// CircuitBreaker tracks failures per host and fails fast once a host has
// produced too many consecutive transient failures.
type CircuitBreaker struct {
	circuits map[string]*circuit
	mu       sync.RWMutex
	config   CircuitBreakerConfig
}

// NewCircuitBreaker creates a new circuit breaker with the given configuration.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = DefaultRecoveryTimeout
	}
	if cfg.HalfOpenMaxRequests <= 0 {
		cfg.HalfOpenMaxRequests = DefaultHalfOpenMaxRequests
	}

	return &CircuitBreaker{
		circuits: make(map[string]*circuit),
		config:   cfg,
	}
}

// Allow returns nil if a request to host may proceed, or a *CircuitOpenError.
func (cb *CircuitBreaker) Allow(host string) error {
	if cb == nil {
		return nil
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.circuitFor(host)

	switch c.state {
	case CircuitOpen:
		if time.Since(c.lastStateChange) >= cb.config.RecoveryTimeout {
			// this request is the first probe
			c.state = CircuitHalfOpen
			c.lastStateChange = time.Now()
			c.halfOpenRequests = 1
			return nil
		}
		return &CircuitOpenError{Host: host, RetryAt: c.lastStateChange.Add(cb.config.RecoveryTimeout)}

	case CircuitHalfOpen:
		if c.halfOpenRequests < cb.config.HalfOpenMaxRequests {
			c.halfOpenRequests++
			return nil
		}
		return &CircuitOpenError{Host: host, RetryAt: c.lastStateChange.Add(cb.config.RecoveryTimeout)}
	}

	return nil
}

// RecordSuccess records a successful request. A success while half-open
// closes the circuit.
func (cb *CircuitBreaker) RecordSuccess(host string) {
	if cb == nil {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.circuitFor(host)
	if c.state == CircuitHalfOpen {
		c.state = CircuitClosed
		c.lastStateChange = time.Now()
		c.halfOpenRequests = 0
	}
	c.consecutiveErrors = 0
}

// RecordFailure records a failed request. Errors that IsTransientError
// rejects leave the circuit untouched.
func (cb *CircuitBreaker) RecordFailure(host string, err error) {
	if cb == nil {
		return
	}
	if cb.config.IsTransientError != nil && !cb.config.IsTransientError(err) {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	c := cb.circuitFor(host)
	c.consecutiveErrors++
	c.lastError = time.Now()

	switch c.state {
	case CircuitClosed:
		if c.consecutiveErrors >= cb.config.FailureThreshold {
			c.state = CircuitOpen
			c.lastStateChange = time.Now()
		}
	case CircuitHalfOpen:
		c.state = CircuitOpen
		c.lastStateChange = time.Now()
	}
}

// CircuitStats contains statistics about a circuit's state.
type CircuitStats struct {
	State             CircuitState
	ConsecutiveErrors int
	LastError         time.Time
	LastStateChange   time.Time
}

// Stats returns a snapshot of the circuit for host. An open circuit whose
// recovery timeout has elapsed reports half-open.
func (cb *CircuitBreaker) Stats(host string) CircuitStats {
	if cb == nil {
		return CircuitStats{State: CircuitClosed}
	}

	cb.mu.RLock()
	defer cb.mu.RUnlock()

	c, ok := cb.circuits[host]
	if !ok {
		return CircuitStats{State: CircuitClosed}
	}

	state := c.state
	if state == CircuitOpen && time.Since(c.lastStateChange) >= cb.config.RecoveryTimeout {
		state = CircuitHalfOpen
	}

	return CircuitStats{
		State:             state,
		ConsecutiveErrors: c.consecutiveErrors,
		LastError:         c.lastError,
		LastStateChange:   c.lastStateChange,
	}
}

// State returns the current state of the circuit for host.
func (cb *CircuitBreaker) State(host string) CircuitState {
	return cb.Stats(host).State
}

// Reset closes the circuit for host.
func (cb *CircuitBreaker) Reset(host string) {
	if cb == nil {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()
	delete(cb.circuits, host)
}

// circuitFor must be called with mu held.
func (cb *CircuitBreaker) circuitFor(host string) *circuit {
	c, ok := cb.circuits[host]
	if !ok {
		c = &circuit{state: CircuitClosed, lastStateChange: time.Now()}
		cb.circuits[host] = c
	}
	return c
}

// IsTransientHTTPError reports whether err says something about host health.
// Rate limits, 5xx responses and network failures count; other 4xx
// responses do not.
func IsTransientHTTPError(err error) bool {
	if err == nil {
		return false
	}

	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return true
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Transient()
	}

	return true
}

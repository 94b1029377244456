package http

import (
	"errors"
	"testing"
	"time"
)

const testHost = "graph.facebook.com"

func TestCircuitBreakerInitialState(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig())

	if state := cb.State(testHost); state != CircuitClosed {
		t.Errorf("initial state = %v, want closed", state)
	}
	if err := cb.Allow(testHost); err != nil {
		t.Errorf("Allow() in closed state returned error: %v", err)
	}
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  30 * time.Second,
	})

	testErr := errors.New("connection reset")
	cb.RecordFailure(testHost, testErr)
	cb.RecordFailure(testHost, testErr)
	if cb.State(testHost) != CircuitClosed {
		t.Fatal("circuit should still be closed after 2 failures")
	}

	cb.RecordFailure(testHost, testErr)
	if cb.State(testHost) != CircuitOpen {
		t.Fatal("circuit should be open after 3 failures")
	}

	err := cb.Allow(testHost)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Allow() = %v, want ErrCircuitOpen", err)
	}
	var openErr *CircuitOpenError
	if !errors.As(err, &openErr) || openErr.Host != testHost {
		t.Errorf("Allow() = %v, want *CircuitOpenError for %s", err, testHost)
	}
	if openErr.Transient() {
		t.Error("open circuit must not be retried")
	}
}

func TestCircuitBreakerHostsAreIndependent(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1})

	cb.RecordFailure(testHost, errors.New("boom"))

	if err := cb.Allow("open.tiktokapis.com"); err != nil {
		t.Errorf("Allow() for unrelated host = %v, want nil", err)
	}
}

func TestCircuitBreakerHalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 2,
		RecoveryTimeout:  20 * time.Millisecond,
	})

	testErr := errors.New("timeout")
	cb.RecordFailure(testHost, testErr)
	cb.RecordFailure(testHost, testErr)

	time.Sleep(30 * time.Millisecond)

	if cb.State(testHost) != CircuitHalfOpen {
		t.Fatalf("state = %v, want half-open", cb.State(testHost))
	}
	if err := cb.Allow(testHost); err != nil {
		t.Fatalf("first probe should be allowed: %v", err)
	}
	if err := cb.Allow(testHost); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("second probe = %v, want ErrCircuitOpen", err)
	}

	cb.RecordSuccess(testHost)
	if cb.State(testHost) != CircuitClosed {
		t.Errorf("state after successful probe = %v, want closed", cb.State(testHost))
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  20 * time.Millisecond,
	})

	cb.RecordFailure(testHost, errors.New("timeout"))
	time.Sleep(30 * time.Millisecond)

	if err := cb.Allow(testHost); err != nil {
		t.Fatalf("probe should be allowed: %v", err)
	}
	cb.RecordFailure(testHost, errors.New("timeout again"))

	if err := cb.Allow(testHost); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Allow() after failed probe = %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitBreakerIgnoresPermanentErrors(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 2,
		IsTransientError: IsTransientHTTPError,
	})

	for i := 0; i < 5; i++ {
		cb.RecordFailure(testHost, &HTTPError{StatusCode: 400})
	}

	if cb.State(testHost) != CircuitClosed {
		t.Error("4xx responses must not open the circuit")
	}
	if got := cb.Stats(testHost).ConsecutiveErrors; got != 0 {
		t.Errorf("ConsecutiveErrors = %d, want 0", got)
	}
}

func TestCircuitBreakerSuccessResetsCount(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3})

	cb.RecordFailure(testHost, errors.New("a"))
	cb.RecordFailure(testHost, errors.New("b"))
	cb.RecordSuccess(testHost)
	cb.RecordFailure(testHost, errors.New("c"))

	if cb.State(testHost) != CircuitClosed {
		t.Error("success should reset the failure count")
	}
}

func TestCircuitBreakerReset(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1})
	cb.RecordFailure(testHost, errors.New("boom"))

	cb.Reset(testHost)

	if err := cb.Allow(testHost); err != nil {
		t.Errorf("Allow() after Reset = %v, want nil", err)
	}
}

func TestCircuitBreakerNil(t *testing.T) {
	var cb *CircuitBreaker
	if err := cb.Allow(testHost); err != nil {
		t.Errorf("nil breaker Allow() = %v", err)
	}
	cb.RecordFailure(testHost, errors.New("x"))
	cb.RecordSuccess(testHost)
	if cb.State(testHost) != CircuitClosed {
		t.Error("nil breaker should report closed")
	}
}

func TestIsTransientHTTPError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", &RateLimitError{StatusCode: 429}, true},
		{"server error", &HTTPError{StatusCode: 502}, true},
		{"request timeout", &HTTPError{StatusCode: 408}, true},
		{"bad request", &HTTPError{StatusCode: 400}, false},
		{"unauthorized", &HTTPError{StatusCode: 401}, false},
		{"network", errors.New("dial tcp: connection refused"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransientHTTPError(tt.err); got != tt.want {
				t.Errorf("IsTransientHTTPError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestCircuitStateString(t *testing.T) {
	tests := map[CircuitState]string{
		CircuitClosed:    "closed",
		CircuitOpen:      "open",
		CircuitHalfOpen:  "half-open",
		CircuitState(42): "unknown",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", state, got, want)
		}
	}
}

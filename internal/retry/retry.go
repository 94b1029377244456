// Package retry provides exponential backoff retry logic with jitter.
//
// Every external call made by the upload pipeline goes through Do or DoValue.
// The policy is stateless: one Config value is shared by all call sites and
// each invocation keeps its own attempt counter and backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"time"
)

// Config holds retry configuration.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first one.
	MaxAttempts int
	// InitialBackoff is the delay before the second attempt.
	InitialBackoff time.Duration
	// MaxBackoff is the maximum delay between attempts.
	MaxBackoff time.Duration
	// Multiplier is the exponential backoff multiplier.
	Multiplier float64
	// JitterFraction is the fraction of backoff used for jitter (0.0-1.0).
	JitterFraction float64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.2, // +/- 20% jitter
	}
}

// ErrorClassifier reports whether an error is transient and worth retrying.
type ErrorClassifier func(error) bool

// transienter is implemented by errors that know their own classification.
type transienter interface {
	Transient() bool
}

// IsTransient is the default classifier.
//
// Errors carrying a Transient() method decide for themselves. Cancellation is
// permanent, timeouts are transient, and anything unclassified (plain network
// failures, mostly) is treated as transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var t transienter
	if errors.As(err, &t) {
		return t.Transient()
	}

	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return true
}

// Permanent marks err as not retryable regardless of its underlying type.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string   { return e.err.Error() }
func (e *permanentError) Unwrap() error   { return e.err }
func (e *permanentError) Transient() bool { return false }

// ExhaustedError is returned when every attempt failed with a transient error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Do executes fn with retry logic and returns the number of attempts made.
//
// A permanent error stops immediately and is returned as is. When all
// attempts fail transiently the last error is wrapped in *ExhaustedError.
// ctx is checked before every attempt and interrupts backoff sleeps.
func Do(ctx context.Context, cfg Config, classifier ErrorClassifier, fn func(context.Context) error) (int, error) {
	_, attempts, err := DoValue(ctx, cfg, classifier, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return attempts, err
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, cfg Config, classifier ErrorClassifier, fn func(context.Context) (T, error)) (T, int, error) {
	var zero T
	if classifier == nil {
		classifier = IsTransient
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	backoff := cfg.InitialBackoff

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, attempt - 1, fmt.Errorf("%w (last error: %v)", err, lastErr)
			}
			return zero, attempt - 1, err
		}

		v, err := fn(ctx)
		if err == nil {
			return v, attempt, nil
		}
		lastErr = err
		if !classifier(err) {
			return zero, attempt, err
		}

		// Last attempt, don't sleep
		if attempt == maxAttempts {
			break
		}

		sleep := backoff + jitter(backoff, cfg.JitterFraction)
		if cfg.MaxBackoff > 0 && sleep > cfg.MaxBackoff {
			sleep = cfg.MaxBackoff
		}

		timer := time.NewTimer(sleep)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return zero, attempt, fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
		}

		backoff = time.Duration(float64(backoff) * cfg.Multiplier)
		if cfg.MaxBackoff > 0 && backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}

	return zero, maxAttempts, &ExhaustedError{Attempts: maxAttempts, Err: lastErr}
}

// jitter returns a random duration in range [-fraction*d, +fraction*d].
func jitter(d time.Duration, fraction float64) time.Duration {
	if fraction <= 0 {
		return 0
	}
	jitterRange := float64(d) * fraction
	jitterValue := (rand.Float64() - 0.5) * 2 * jitterRange
	return time.Duration(jitterValue)
}

package http

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter manages per-host request rate limiting using token bucket algorithm.
// It supports configurable rates for different hosts and dynamic rate adjustment.
type RateLimiter struct {
	limiters     map[string]*rate.Limiter
	backoffState map[string]*BackoffState
	mu           sync.RWMutex
	config       RateLimiterConfig
}

// BackoffState tracks rate limit backoff for a host.
type BackoffState struct {
	// CurrentBackoff is the current backoff duration
	CurrentBackoff time.Duration
	// LastError is when the last rate limit error occurred
	LastError time.Time
	// ConsecutiveErrors is the count of consecutive rate limit errors
	ConsecutiveErrors int
	// OriginalRPS is the original configured rate to restore after cooldown
	OriginalRPS float64
	// ReducedRPS is the current reduced rate (0 means using original)
	ReducedRPS float64
}

const (
	// InitialRateLimitBackoff is the first backoff after a rate limit response.
	InitialRateLimitBackoff = 1 * time.Second
	// MaxRateLimitBackoff caps the backoff.
	MaxRateLimitBackoff = 60 * time.Second
	// RateLimitBackoffMultiplier is the multiplier for exponential backoff
	RateLimitBackoffMultiplier = 2.0
	// BackoffCooldownPeriod is how long after last error before resetting backoff
	BackoffCooldownPeriod = 5 * time.Minute
	// MinRPSMultiplier is the minimum rate reduction (0.25 = 25% of original)
	MinRPSMultiplier = 0.25
)

// Well-known API hosts.
const (
	HostOpenAI    = "api.openai.com"
	HostGraph     = "graph.facebook.com"
	HostTikTokAPI = "open.tiktokapis.com"
)

// RateLimiterConfig defines rate limiting behavior.
type RateLimiterConfig struct {
	// DefaultRPS applies to hosts without a specific rate (0 = unlimited).
	DefaultRPS float64
	// HostRates maps host names to RPS values.
	HostRates map[string]float64
	// EnableDynamicBackoff enables automatic rate reduction on errors
	EnableDynamicBackoff bool
}

// DefaultRateLimiterConfig returns conservative per-API defaults.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		DefaultRPS: 0,
		HostRates: map[string]float64{
			HostOpenAI:    2.0,
			HostGraph:     1.0,
			HostTikTokAPI: 1.0,
		},
		EnableDynamicBackoff: true,
	}
}

// NewRateLimiter creates a new rate limiter with the given configuration.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	if cfg.HostRates == nil {
		cfg.HostRates = make(map[string]float64)
	}

	return &RateLimiter{
		limiters:     make(map[string]*rate.Limiter),
		backoffState: make(map[string]*BackoffState),
		config:       cfg,
	}
}

// Wait waits until the rate limit allows a request for the given URL.
// Returns an error if the context is canceled or exceeded deadline.
func (rl *RateLimiter) Wait(ctx context.Context, urlStr string) error {
	if rl == nil {
		return nil
	}

	limiter := rl.getLimiter(urlStr)
	if limiter == nil {
		return nil
	}

	if !limiter.Allow() {
		reservation := limiter.Reserve()
		if !reservation.OK() {
			return fmt.Errorf("rate limit: cannot reserve token")
		}

		timer := time.NewTimer(reservation.Delay())
		defer timer.Stop()
		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			reservation.Cancel()
			return ctx.Err()
		}
	}

	return nil
}

// getLimiter returns the rate limiter for a given URL, creating one if necessary.
func (rl *RateLimiter) getLimiter(urlStr string) *rate.Limiter {
	host := rl.extractDomain(urlStr)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rps := rl.getRPS(host)
	if rps == 0 {
		return nil
	}

	if limiter, ok := rl.limiters[host]; ok {
		return limiter
	}

	limiter := rate.NewLimiter(rate.Limit(rps), 1)
	rl.limiters[host] = limiter
	return limiter
}

// getRPS returns the requests per second for a given host.
// Must be called with mutex held.
func (rl *RateLimiter) getRPS(host string) float64 {
	if rps, ok := rl.config.HostRates[host]; ok {
		return rps
	}
	return rl.config.DefaultRPS
}

// extractDomain extracts the host from a URL string, without port.
func (rl *RateLimiter) extractDomain(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return u.Hostname()
}

// SetHostRate sets a custom rate limit for a specific host.
func (rl *RateLimiter) SetHostRate(host string, rps float64) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.config.HostRates[host] = rps
	delete(rl.limiters, host)
}

// RecordRateLimitError records a rate limit error for a host and updates backoff state.
// Returns the recommended backoff duration before retrying.
func (rl *RateLimiter) RecordRateLimitError(urlStr string, retryAfter time.Duration) time.Duration {
	if rl == nil || !rl.config.EnableDynamicBackoff {
		if retryAfter > 0 {
			return retryAfter
		}
		return InitialRateLimitBackoff
	}

	host := rl.extractDomain(urlStr)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	state, exists := rl.backoffState[host]
	if !exists {
		state = &BackoffState{
			CurrentBackoff: InitialRateLimitBackoff,
			OriginalRPS:    rl.getRPS(host),
		}
		rl.backoffState[host] = state
	}

	state.LastError = time.Now()
	state.ConsecutiveErrors++

	// 1s -> 2s -> 4s -> ... -> max
	if state.ConsecutiveErrors > 1 {
		state.CurrentBackoff = time.Duration(float64(state.CurrentBackoff) * RateLimitBackoffMultiplier)
		if state.CurrentBackoff > MaxRateLimitBackoff {
			state.CurrentBackoff = MaxRateLimitBackoff
		}
	}

	effective := state.CurrentBackoff
	if retryAfter > effective {
		effective = retryAfter
		state.CurrentBackoff = retryAfter
	}

	rl.reduceRate(host, state)

	return effective
}

// reduceRate reduces the rate limit for a host based on backoff state.
// Must be called with mutex held.
func (rl *RateLimiter) reduceRate(host string, state *BackoffState) {
	if state.OriginalRPS == 0 {
		return
	}

	// 1 error: 75%, 2 errors: 50%, 3+ errors: 25%
	factor := 1.0
	switch {
	case state.ConsecutiveErrors >= 3:
		factor = MinRPSMultiplier
	case state.ConsecutiveErrors == 2:
		factor = 0.5
	case state.ConsecutiveErrors == 1:
		factor = 0.75
	}

	state.ReducedRPS = state.OriginalRPS * factor
	if limiter, ok := rl.limiters[host]; ok {
		limiter.SetLimit(rate.Limit(state.ReducedRPS))
	}
}

// RecordSuccess records a successful request, potentially resetting backoff state.
func (rl *RateLimiter) RecordSuccess(urlStr string) {
	if rl == nil || !rl.config.EnableDynamicBackoff {
		return
	}

	host := rl.extractDomain(urlStr)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	state, exists := rl.backoffState[host]
	if !exists {
		return
	}

	if time.Since(state.LastError) > BackoffCooldownPeriod {
		if limiter, ok := rl.limiters[host]; ok && state.ReducedRPS > 0 {
			limiter.SetLimit(rate.Limit(state.OriginalRPS))
		}
		delete(rl.backoffState, host)
		return
	}

	if state.ConsecutiveErrors > 0 {
		state.ConsecutiveErrors--
	}
}

// GetBackoffState returns a copy of the current backoff state for a host, or nil.
func (rl *RateLimiter) GetBackoffState(urlStr string) *BackoffState {
	if rl == nil {
		return nil
	}

	host := rl.extractDomain(urlStr)

	rl.mu.RLock()
	defer rl.mu.RUnlock()

	if state, ok := rl.backoffState[host]; ok {
		cp := *state
		return &cp
	}
	return nil
}

// WaitForBackoff waits for the current backoff period to expire.
// Returns immediately if not in backoff state.
func (rl *RateLimiter) WaitForBackoff(ctx context.Context, urlStr string) error {
	state := rl.GetBackoffState(urlStr)
	if state == nil {
		return nil
	}

	remaining := state.CurrentBackoff - time.Since(state.LastError)
	if remaining <= 0 {
		return nil
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

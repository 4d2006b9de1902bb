package clients

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RetryConfig defines retry behavior for marketplace requests
type RetryConfig struct {
	MaxRetries      int           // Maximum number of retry attempts
	InitialBackoff  time.Duration // Initial backoff duration
	MaxBackoff      time.Duration // Maximum backoff duration
	BackoffFactor   float64       // Multiplier for exponential backoff
	Jitter          float64       // Random jitter factor (0-1)
	RetryableErrors []int         // HTTP status codes to retry
}

// DefaultRetryConfig returns the retry configuration used against the
// Wildberries pricing API. 429 carries a Retry-After which takes precedence
// over the computed backoff.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2.0,
		Jitter:         0.1,
		RetryableErrors: []int{
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		},
	}
}

// Retrier handles retry decisions and backoff for marketplace requests
type Retrier struct {
	config *RetryConfig
}

// NewRetrier creates a new retrier with the given config
func NewRetrier(config *RetryConfig) *Retrier {
	if config == nil {
		config = DefaultRetryConfig()
	}
	return &Retrier{config: config}
}

// MaxRetries returns the configured retry ceiling
func (r *Retrier) MaxRetries() int {
	return r.config.MaxRetries
}

// ShouldRetry determines if a response should be retried. Status code 0
// stands for a network-level error and is always retried.
func (r *Retrier) ShouldRetry(statusCode int, err error) bool {
	if err != nil && statusCode == 0 {
		return true
	}
	for _, code := range r.config.RetryableErrors {
		if statusCode == code {
			return true
		}
	}
	return false
}

// CalculateBackoff calculates the backoff duration for a given attempt. A
// server-provided Retry-After always wins.
func (r *Retrier) CalculateBackoff(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		return retryAfter
	}

	backoff := float64(r.config.InitialBackoff) * math.Pow(r.config.BackoffFactor, float64(attempt))
	if r.config.Jitter > 0 {
		backoff += backoff * r.config.Jitter * (rand.Float64()*2 - 1)
	}
	if backoff > float64(r.config.MaxBackoff) {
		backoff = float64(r.config.MaxBackoff)
	}
	return time.Duration(backoff)
}

// ParseRetryAfter extracts the Retry-After duration from an HTTP response
func ParseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(retryAfter); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(retryAfter); err == nil {
		return time.Until(t)
	}
	return 0
}

// RetryResult contains the result of a retry operation
type RetryResult struct {
	Attempts      int
	LastError     error
	TotalDuration time.Duration
	RetryAfter    time.Duration // From Retry-After header if present
}

// RetryableResponseFunc is an HTTP operation that can be retried
type RetryableResponseFunc func(ctx context.Context) (*http.Response, error)

// DoHTTP executes an HTTP operation with retry logic. The last response is
// returned even on failure so callers can inspect the status and body.
func (r *Retrier) DoHTTP(ctx context.Context, operation string, fn RetryableResponseFunc) (*http.Response, *RetryResult) {
	result := &RetryResult{}
	startTime := time.Now()
	var lastResp *http.Response

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		result.Attempts = attempt + 1

		resp, err := fn(ctx)
		lastResp = resp
		result.LastError = err

		if err != nil {
			if !r.ShouldRetry(0, err) || attempt >= r.config.MaxRetries {
				result.TotalDuration = time.Since(startTime)
				return resp, result
			}
		} else {
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				result.TotalDuration = time.Since(startTime)
				return resp, result
			}

			result.RetryAfter = ParseRetryAfter(resp)

			if !r.ShouldRetry(resp.StatusCode, nil) || attempt >= r.config.MaxRetries {
				result.TotalDuration = time.Since(startTime)
				return resp, result
			}

			// Exhausted responses must be drained before the retry reuses
			// the connection.
			resp.Body.Close()
		}

		backoff := r.CalculateBackoff(attempt, result.RetryAfter)

		select {
		case <-ctx.Done():
			result.LastError = ctx.Err()
			result.TotalDuration = time.Since(startTime)
			return lastResp, result
		case <-time.After(backoff):
		}
	}

	if result.LastError == nil {
		result.LastError = fmt.Errorf("max retries exceeded for %s", operation)
	}
	result.TotalDuration = time.Since(startTime)
	return lastResp, result
}

// CircuitBreaker implements a simple circuit breaker pattern across chunk
// submissions so a dead marketplace endpoint is not hammered chunk by chunk.
type CircuitBreaker struct {
	mu           sync.Mutex
	failures     int
	successes    int
	state        CircuitState
	lastFailure  time.Time
	threshold    int
	resetTimeout time.Duration
	halfOpenMax  int
}

type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(threshold int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		threshold:    threshold,
		resetTimeout: resetTimeout,
		halfOpenMax:  3,
		state:        CircuitClosed,
	}
}

// Allow checks if a request should be allowed
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if time.Since(cb.lastFailure) >= cb.resetTimeout {
			cb.state = CircuitHalfOpen
			cb.successes = 0
			return true
		}
		return false
	case CircuitHalfOpen:
		return cb.successes < cb.halfOpenMax
	}
	return false
}

// RecordSuccess records a successful operation
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitHalfOpen {
		cb.successes++
		if cb.successes >= cb.halfOpenMax {
			cb.state = CircuitClosed
			cb.failures = 0
		}
	} else {
		cb.failures = 0
	}
}

// RecordFailure records a failed operation
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = time.Now()

	if cb.failures >= cb.threshold {
		cb.state = CircuitOpen
	}
}

// State returns the current circuit state
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

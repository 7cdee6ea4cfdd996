// Package resilience provides resilient collaborator calls using fortify.
package resilience

import (
	"context"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/circuitbreaker"
)

// Call is one collaborator invocation wrapped with resilience patterns.
type Call func(ctx context.Context) error

// Executor wraps collaborator calls with bulkhead, timeout and circuit
// breaker. It makes exactly one attempt per Do; retry pacing lives in
// the scheduler's durable job queue so backoff waits never hold the
// per-candidate serialization.
type Executor struct {
	bulkhead     bulkhead.Bulkhead[struct{}]
	breaker      circuitbreaker.CircuitBreaker[struct{}]
	timeout      time.Duration
	attempts     int
	initialDelay time.Duration
	multiplier   float64
}

// Config configures the resilient executor.
type Config struct {
	// MaxConcurrent limits concurrent collaborator calls.
	MaxConcurrent int

	// CircuitBreakerThreshold is the number of failures before opening.
	CircuitBreakerThreshold int

	// CircuitBreakerTimeout is how long the circuit stays open.
	CircuitBreakerTimeout time.Duration

	// RetryMaxAttempts is the attempt ceiling per invocation, counting
	// the initial attempt.
	RetryMaxAttempts int

	// RetryInitialDelay is the delay before the first retry.
	RetryInitialDelay time.Duration

	// RetryBackoffMultiplier is the exponential backoff multiplier.
	RetryBackoffMultiplier float64

	// CallTimeout bounds each collaborator call.
	CallTimeout time.Duration
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent:           10,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   30 * time.Second,
		RetryMaxAttempts:        3,
		RetryInitialDelay:       100 * time.Millisecond,
		RetryBackoffMultiplier:  2.0,
		CallTimeout:             10 * time.Second,
	}
}

// New creates a new resilient executor.
func New(config Config) *Executor {
	maxConcurrent := config.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	threshold := config.CircuitBreakerThreshold
	if threshold <= 0 {
		threshold = 5
	}
	attempts := config.RetryMaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	multiplier := config.RetryBackoffMultiplier
	if multiplier < 1 {
		multiplier = 1
	}

	return &Executor{
		bulkhead: bulkhead.New[struct{}](bulkhead.Config{
			MaxConcurrent: maxConcurrent,
		}),
		breaker: circuitbreaker.New[struct{}](circuitbreaker.Config{
			MaxRequests: uint32(maxConcurrent), // #nosec G115 -- bounds checked above
			Interval:    config.CircuitBreakerTimeout,
			Timeout:     config.CircuitBreakerTimeout,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return counts.ConsecutiveFailures >= uint32(threshold) // #nosec G115 -- bounds checked above
			},
		}),
		timeout:      config.CallTimeout,
		attempts:     attempts,
		initialDelay: config.RetryInitialDelay,
		multiplier:   multiplier,
	}
}

// NewDefault creates an executor with default configuration.
func NewDefault() *Executor {
	return New(DefaultConfig())
}

// Do runs a single collaborator call attempt.
// Composition order: Bulkhead -> Timeout -> Circuit Breaker.
func (e *Executor) Do(ctx context.Context, call Call) error {
	_, err := e.bulkhead.Execute(ctx, func(ctx context.Context) (struct{}, error) {
		ctx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		return e.breaker.Execute(ctx, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, call(ctx)
		})
	})
	return err
}

// MaxAttempts returns the configured attempt ceiling.
func (e *Executor) MaxAttempts() int {
	return e.attempts
}

// RetryDelay returns the exponential backoff delay after the given
// zero-based failed attempt.
func (e *Executor) RetryDelay(attempt int) time.Duration {
	delay := e.initialDelay
	for i := 0; i < attempt; i++ {
		delay = time.Duration(float64(delay) * e.multiplier)
	}
	return delay
}

// Package resilience wraps outbound calls with retry and circuit-breaker
// protection. Provider adapters describe how to interpret their errors via an
// ErrorClassifier; the Executor owns the retry schedule and one breaker per
// named operation.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"resume-optimizer/internal/shared/telemetry"
)

// ErrorClassification says how the executor should react to a failure.
type ErrorClassification struct {
	// Retryable failures are attempted again after a backoff.
	Retryable bool
	// RecordFailure failures count toward the circuit breaker trip ratio.
	RecordFailure bool
}

// ErrorClassifier maps an error from the wrapped call to a classification.
// A nil classifier treats every failure as retryable and breaker-visible
// except context cancellation.
type ErrorClassifier func(err error) ErrorClassification

// Executor runs functions under the configured retry and breaker policy.
type Executor struct {
	cfg Config

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
}

// NewExecutor builds an Executor, filling unset config fields with defaults.
func NewExecutor(cfg Config) *Executor {
	return &Executor{
		cfg:      cfg.normalize(),
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
	}
}

// Execute runs fn under the policy for the named operation. Each operation
// gets its own circuit breaker so one failing provider endpoint does not
// block the others.
func (e *Executor) Execute(ctx context.Context, operation string, fn func(context.Context) error, classify ErrorClassifier) error {
	if classify == nil {
		classify = DefaultClassifier
	}
	if !e.cfg.BreakerEnabled {
		return e.executeWithRetry(ctx, operation, fn, classify)
	}

	breaker := e.breakerFor(operation, classify)
	_, err := breaker.Execute(func() (any, error) {
		return nil, e.executeWithRetry(ctx, operation, fn, classify)
	})
	return err
}

func (e *Executor) executeWithRetry(ctx context.Context, operation string, fn func(context.Context) error, classify ErrorClassifier) error {
	backoff := e.cfg.RetryInitialBackoff
	var lastErr error

	for attempt := 1; attempt <= e.cfg.RetryMaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		verdict := classify(lastErr)
		if !verdict.Retryable || attempt == e.cfg.RetryMaxAttempts {
			return lastErr
		}

		telemetry.Warn("resilience.retry", map[string]any{
			"operation": operation,
			"attempt":   attempt,
			"backoff":   backoff.String(),
			"error":     lastErr.Error(),
		})

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		backoff = time.Duration(float64(backoff) * e.cfg.RetryMultiplier)
		if backoff > e.cfg.RetryMaxBackoff {
			backoff = e.cfg.RetryMaxBackoff
		}
	}

	return lastErr
}

// breakerFor returns the breaker for the operation, creating it on first
// use. The classifier seen on first use decides which errors the breaker
// counts; callers keep one classifier per operation.
func (e *Executor) breakerFor(operation string, classify ErrorClassifier) *gobreaker.CircuitBreaker[any] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if breaker, ok := e.breakers[operation]; ok {
		return breaker
	}

	cfg := e.cfg
	settings := gobreaker.Settings{
		Name:        operation,
		MaxRequests: cfg.BreakerHalfOpenMaxCalls,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.BreakerMinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			return !classify(err).RecordFailure
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			telemetry.Warn("resilience.breaker_state", map[string]any{
				"operation": name,
				"from":      from.String(),
				"to":        to.String(),
			})
		},
	}

	breaker := gobreaker.NewCircuitBreaker[any](settings)
	e.breakers[operation] = breaker
	return breaker
}

// IsCircuitOpen reports whether err means the breaker refused the call
// outright rather than the call itself failing.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// DefaultClassifier retries everything except context cancellation and
// deadline expiry, and reports those same failures to the breaker.
func DefaultClassifier(err error) ErrorClassification {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassification{Retryable: false, RecordFailure: false}
	}
	return ErrorClassification{Retryable: true, RecordFailure: true}
}

package source

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stwalsh4118/airwave/internal/logger"
	"github.com/stwalsh4118/airwave/internal/metrics"
	"github.com/stwalsh4118/airwave/internal/models"
)

const (
	// DefaultMaxAttempts is the number of tries per resolution
	DefaultMaxAttempts = 3
	// InitialBackoff is the initial backoff duration for retries
	InitialBackoff = 500 * time.Millisecond
	// MaxBackoff is the maximum backoff duration
	MaxBackoff = 8 * time.Second
)

// ResilientOptions tunes retries and the per-kind circuit breakers
type ResilientOptions struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// BreakerThreshold is the consecutive failures that open a breaker
	BreakerThreshold uint32
	// BreakerTimeout is how long a breaker stays open before probing
	BreakerTimeout time.Duration
}

func (o ResilientOptions) withDefaults() ResilientOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = InitialBackoff
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = MaxBackoff
	}
	if o.BreakerThreshold == 0 {
		o.BreakerThreshold = 5
	}
	if o.BreakerTimeout <= 0 {
		o.BreakerTimeout = time.Minute
	}
	return o
}

// Resilient retries transient failures with exponential backoff and stops
// calling an upstream kind entirely while its circuit breaker is open
type Resilient struct {
	next Resolver
	opts ResilientOptions

	mu       sync.Mutex
	breakers map[models.SourceKind]*gobreaker.CircuitBreaker[*Resolved]
}

// NewResilient wraps next with retries and circuit breakers
func NewResilient(next Resolver, opts ResilientOptions) *Resilient {
	return &Resilient{
		next:     next,
		opts:     opts.withDefaults(),
		breakers: make(map[models.SourceKind]*gobreaker.CircuitBreaker[*Resolved]),
	}
}

func (r *Resilient) breaker(kind models.SourceKind) *gobreaker.CircuitBreaker[*Resolved] {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[kind]; ok {
		return cb
	}

	name := "source-" + string(kind)
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	threshold := r.opts.BreakerThreshold
	cb := gobreaker.NewCircuitBreaker[*Resolved](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     r.opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// Permanent errors say nothing about upstream health.
		IsSuccessful: func(err error) bool {
			return err == nil || IsPermanent(err) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Source circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})
	r.breakers[kind] = cb
	return cb
}

// State returns the breaker state for kind
func (r *Resilient) State(kind models.SourceKind) gobreaker.State {
	return r.breaker(kind).State()
}

// Resolve implements Resolver
func (r *Resilient) Resolve(ctx context.Context, kind models.SourceKind, sourceURL string) (*Resolved, error) {
	cb := r.breaker(kind)
	start := time.Now()

	var lastErr error
	for attempt := 0; attempt < r.opts.MaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := calculateBackoffDuration(r.opts.InitialBackoff, r.opts.MaxBackoff, attempt-1)
			logger.Log.Debug().
				Str("kind", string(kind)).
				Str("source_url", sourceURL).
				Int("attempt", attempt+1).
				Dur("backoff", backoff).
				Err(lastErr).
				Msg("Retrying source resolution")

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		res, err := cb.Execute(func() (*Resolved, error) {
			return r.next.Resolve(ctx, kind, sourceURL)
		})
		if err == nil {
			metrics.RecordSourceResolution(string(kind), "success", time.Since(start))
			return res, nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.RecordSourceResolution(string(kind), "rejected", 0)
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if IsPermanent(err) || ctx.Err() != nil {
			metrics.RecordSourceResolution(string(kind), "failure", time.Since(start))
			return nil, err
		}
		lastErr = err
	}

	metrics.RecordSourceResolution(string(kind), "failure", time.Since(start))
	return nil, fmt.Errorf("source resolution failed after %d attempts: %w", r.opts.MaxAttempts, lastErr)
}

// calculateBackoffDuration calculates exponential backoff duration based on attempt count
func calculateBackoffDuration(initial, maxBackoff time.Duration, attemptCount int) time.Duration {
	backoff := initial
	for i := 0; i < attemptCount && backoff < maxBackoff; i++ {
		backoff *= 2
	}
	if backoff > maxBackoff {
		return maxBackoff
	}
	return backoff
}

// stateToFloat converts circuit breaker state to numeric value for metrics
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

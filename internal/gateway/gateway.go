// Package gateway is the single chokepoint through which the batch processor
// and network scanner reach the external registry. It applies the shared
// request budget, retries transient failures with backoff, and classifies
// every failure into an ApiError.
package gateway

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/signal-watch/signalwatch/internal/model"
	"github.com/signal-watch/signalwatch/internal/ratelimit"
	"github.com/signal-watch/signalwatch/internal/resilience"
)

// RegistrySource is the read surface of the external corporate registry.
// All implementations must be safe for concurrent use.
type RegistrySource interface {
	GetProfile(ctx context.Context, number string) (*model.Entity, error)
	GetFilings(ctx context.Context, number string) ([]model.Document, error)
	GetOfficers(ctx context.Context, number string) ([]model.Officer, error)
	GetOfficerAppointments(ctx context.Context, officerID string) ([]model.Appointment, error)
}

// Options configures the gateway wrapper.
type Options struct {
	Retry   resilience.Policy
	Breaker resilience.BreakerConfig
}

// Gateway wraps a RegistrySource with the shared rate budget, retry with
// backoff and jitter, and a circuit breaker. No other component performs
// registry calls.
type Gateway struct {
	source  RegistrySource
	budget  *ratelimit.Window
	retry   resilience.Policy
	breaker *resilience.Breaker

	requests atomic.Int64
}

// New creates a Gateway over source with the given shared budget.
func New(source RegistrySource, budget *ratelimit.Window, opts Options) *Gateway {
	retry := opts.Retry
	if retry.MaxAttempts == 0 {
		retry = resilience.DefaultPolicy()
	}
	retry.ShouldRetry = func(err error) bool {
		ae, ok := AsApiError(err)
		return ok && ae.Retryable()
	}
	retry.WaitOverride = func(err error) time.Duration {
		if ae, ok := AsApiError(err); ok {
			return ae.RetryAfter
		}
		return 0
	}

	breakerCfg := opts.Breaker
	breakerCfg.ShouldTrip = func(err error) bool {
		// Rate-limit signals pause the budget; they are load, not failure.
		ae, ok := AsApiError(err)
		return ok && ae.Kind == KindTransient
	}

	return &Gateway{
		source:  source,
		budget:  budget,
		retry:   retry,
		breaker: resilience.NewBreaker(breakerCfg),
	}
}

// RequestsConsumed returns the number of registry calls issued so far,
// including retries.
func (g *Gateway) RequestsConsumed() int64 {
	return g.requests.Load()
}

// BudgetStatus exposes the shared budget state for status reporting.
func (g *Gateway) BudgetStatus() ratelimit.Status {
	return g.budget.Status()
}

// GetProfile fetches a company profile through the budget and retry layers.
func (g *Gateway) GetProfile(ctx context.Context, number string) (*model.Entity, error) {
	return call(ctx, g, "get_profile", func(ctx context.Context) (*model.Entity, error) {
		return g.source.GetProfile(ctx, number)
	})
}

// GetFilings fetches filing metadata through the budget and retry layers.
func (g *Gateway) GetFilings(ctx context.Context, number string) ([]model.Document, error) {
	return call(ctx, g, "get_filings", func(ctx context.Context) ([]model.Document, error) {
		return g.source.GetFilings(ctx, number)
	})
}

// GetOfficers fetches a company's officer list through the budget and retry layers.
func (g *Gateway) GetOfficers(ctx context.Context, number string) ([]model.Officer, error) {
	return call(ctx, g, "get_officers", func(ctx context.Context) ([]model.Officer, error) {
		return g.source.GetOfficers(ctx, number)
	})
}

// GetOfficerAppointments fetches an officer's appointments through the budget
// and retry layers.
func (g *Gateway) GetOfficerAppointments(ctx context.Context, officerID string) ([]model.Appointment, error) {
	return call(ctx, g, "get_officer_appointments", func(ctx context.Context) ([]model.Appointment, error) {
		return g.source.GetOfficerAppointments(ctx, officerID)
	})
}

// call runs one logical fetch: budget acquire, breaker check, the underlying
// request, then classification feedback. Retries happen around the whole
// sequence so each attempt pays for its own budget slot.
func call[T any](ctx context.Context, g *Gateway, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	return resilience.Retry(ctx, g.retry, op, func(ctx context.Context) (T, error) {
		var zero T

		if err := g.breaker.Allow(); err != nil {
			return zero, err
		}
		if err := g.budget.Acquire(ctx, 1); err != nil {
			return zero, err
		}
		g.requests.Add(1)

		val, err := fn(ctx)
		g.breaker.Record(err)

		if err != nil {
			if ae, ok := AsApiError(err); ok && ae.Kind == KindRateLimited {
				pause := ae.RetryAfter
				if pause <= 0 {
					pause = 10 * time.Second
				}
				until := time.Now().Add(pause)
				g.budget.PauseUntil(until)
				zap.L().Warn("registry rate limit signalled, pausing shared budget",
					zap.String("operation", op),
					zap.Duration("pause", pause),
				)
			}
			return zero, err
		}
		return val, nil
	})
}

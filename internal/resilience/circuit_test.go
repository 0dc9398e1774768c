package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})

	for i := 0; i < 3; i++ {
		if err := b.Allow(); err != nil {
			t.Fatalf("unexpected rejection on attempt %d: %v", i, err)
		}
		b.Record(errors.New("boom"))
	}

	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute})

	b.Record(errors.New("boom"))
	b.Record(nil)
	b.Record(errors.New("boom"))

	if err := b.Allow(); err != nil {
		t.Fatalf("breaker should still be closed: %v", err)
	}
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute})
	now := time.Now()
	b.nowFunc = func() time.Time { return now }

	b.Record(errors.New("boom"))
	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatal("breaker should be open")
	}

	now = now.Add(2 * time.Minute)
	if err := b.Allow(); err != nil {
		t.Fatalf("half-open probe should be admitted: %v", err)
	}
	if got := b.State(); got != BreakerHalfOpen {
		t.Errorf("expected half-open, got %v", got)
	}

	// Failed probe reopens immediately.
	b.Record(errors.New("boom again"))
	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatal("breaker should have reopened after failed probe")
	}
}

func TestBreaker_RecoversOnProbeSuccess(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute})
	now := time.Now()
	b.nowFunc = func() time.Time { return now }

	b.Record(errors.New("boom"))
	now = now.Add(2 * time.Minute)
	if err := b.Allow(); err != nil {
		t.Fatalf("probe rejected: %v", err)
	}
	b.Record(nil)

	if got := b.State(); got != BreakerClosed {
		t.Errorf("expected closed after successful probe, got %v", got)
	}
}

func TestBreaker_ShouldTripFilter(t *testing.T) {
	sentinel := errors.New("counts")
	b := NewBreaker(BreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Minute,
		ShouldTrip:       func(err error) bool { return errors.Is(err, sentinel) },
	})

	b.Record(errors.New("ignored"))
	if err := b.Allow(); err != nil {
		t.Fatalf("non-tripping error should not open the breaker: %v", err)
	}

	b.Record(sentinel)
	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatal("tripping error should open the breaker")
	}
}

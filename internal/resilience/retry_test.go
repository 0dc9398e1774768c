package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestRetry_SuccessOnFirstAttempt(t *testing.T) {
	var calls int
	val, err := Retry(context.Background(), DefaultPolicy(), "op", func(_ context.Context) (int, error) {
		calls++
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != 42 {
		t.Errorf("expected 42, got %d", val)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestRetry_SuccessAfterRetry(t *testing.T) {
	var calls int
	val, err := Retry(context.Background(), fastPolicy(), "op", func(_ context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("temporary")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "ok" {
		t.Errorf("expected ok, got %q", val)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	var calls int
	_, err := Retry(context.Background(), fastPolicy(), "op", func(_ context.Context) (int, error) {
		calls++
		return 0, errors.New("always fails")
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetry_ShouldRetryStopsEarly(t *testing.T) {
	var calls int
	p := fastPolicy()
	p.ShouldRetry = func(err error) bool { return false }

	_, err := Retry(context.Background(), p, "op", func(_ context.Context) (int, error) {
		calls++
		return 0, errors.New("permanent")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestRetry_WaitOverride(t *testing.T) {
	var calls int
	p := fastPolicy()
	p.InitialBackoff = 1 * time.Hour // would hang without the override
	p.WaitOverride = func(err error) time.Duration { return time.Millisecond }

	start := time.Now()
	_, err := Retry(context.Background(), p, "op", func(_ context.Context) (int, error) {
		calls++
		if calls < 2 {
			return 0, errors.New("wait for it")
		}
		return 1, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("override not honored, took %v", elapsed)
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var calls int
	p := fastPolicy()
	p.InitialBackoff = 10 * time.Second

	done := make(chan error, 1)
	go func() {
		_, err := Retry(ctx, p, "op", func(_ context.Context) (int, error) {
			calls++
			return 0, errors.New("fail")
		})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected error after cancellation")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("retry did not stop after cancellation")
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestBackoff_CapsAtMax(t *testing.T) {
	p := Policy{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     1 * time.Second,
		Multiplier:     10.0,
	}.withDefaults()
	p.JitterFraction = 0

	if d := p.backoff(5); d > 1*time.Second {
		t.Errorf("backoff exceeded cap: %v", d)
	}
}

func TestBackoff_Grows(t *testing.T) {
	p := Policy{
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2.0,
	}.withDefaults()
	p.JitterFraction = 0

	if d0, d2 := p.backoff(0), p.backoff(2); d2 <= d0 {
		t.Errorf("backoff did not grow: attempt0=%v attempt2=%v", d0, d2)
	}
}

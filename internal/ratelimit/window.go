// Package ratelimit enforces the registry's rolling-window request budget.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// Config sets the shared request budget.
type Config struct {
	// MaxRequests is the number of requests admitted per rolling window.
	// Default: 600 (the registry contract).
	MaxRequests int

	// Window is the rolling window duration. Default: 5m.
	Window time.Duration
}

// DefaultConfig returns the registry's published budget.
func DefaultConfig() Config {
	return Config{
		MaxRequests: 600,
		Window:      5 * time.Minute,
	}
}

// Status is a point-in-time view of the budget for observability.
type Status struct {
	MaxRequests int           `json:"max_requests"`
	Window      time.Duration `json:"window"`
	InFlight    int           `json:"used"`
	Remaining   int           `json:"remaining_requests"`
	ResetsAt    time.Time     `json:"resets_at,omitempty"`
	PausedUntil time.Time     `json:"paused_until,omitempty"`
}

type waiter struct {
	n         int
	ready     chan struct{}
	grantedAt time.Time
}

// Window is a sliding-window rate limiter shared by every caller that reaches
// the external registry. Concurrent Acquire calls never jointly admit more
// than MaxRequests reservations per rolling window. Admission is FIFO: the
// longest-waiting caller is granted first when slots free up.
type Window struct {
	mu          sync.Mutex
	max         int
	window      time.Duration
	grants      []time.Time
	queue       []*waiter
	pausedUntil time.Time
	nowFunc     func() time.Time
}

// New creates a Window from cfg, applying defaults for zero values.
func New(cfg Config) *Window {
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = 600
	}
	if cfg.Window <= 0 {
		cfg.Window = 5 * time.Minute
	}
	return &Window{
		max:     cfg.MaxRequests,
		window:  cfg.Window,
		nowFunc: time.Now,
	}
}

// Acquire blocks until n request slots are available within the current
// window, then reserves them. It returns early if ctx is cancelled.
func (w *Window) Acquire(ctx context.Context, n int) error {
	if n <= 0 {
		n = 1
	}
	if n > w.max {
		return eris.Errorf("ratelimit: cannot acquire %d slots from a budget of %d", n, w.max)
	}

	wt := &waiter{n: n, ready: make(chan struct{})}

	w.mu.Lock()
	w.queue = append(w.queue, wt)
	w.dispatchLocked()
	w.mu.Unlock()

	for {
		w.mu.Lock()
		select {
		case <-wt.ready:
			w.mu.Unlock()
			return nil
		default:
		}
		wake := w.nextWakeLocked(wt)
		w.mu.Unlock()

		timer := time.NewTimer(time.Until(wake))
		select {
		case <-ctx.Done():
			timer.Stop()
			w.abandon(wt)
			return ctx.Err()
		case <-wt.ready:
			timer.Stop()
			return nil
		case <-timer.C:
			w.mu.Lock()
			w.dispatchLocked()
			w.mu.Unlock()
		}
	}
}

// TryAcquire reserves n slots if they are immediately available and no caller
// is already queued ahead. It never blocks.
func (w *Window) TryAcquire(n int) bool {
	if n <= 0 {
		n = 1
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.queue) > 0 {
		return false
	}
	now := w.nowFunc()
	w.pruneLocked(now)
	if now.Before(w.pausedUntil) || len(w.grants)+n > w.max {
		return false
	}
	w.grantLocked(now, n)
	return true
}

// PauseUntil suspends all admissions until t. Used when the registry signals
// its own rate limit: the shared budget backs off for the remainder of the
// signalled window instead of burning retries.
func (w *Window) PauseUntil(t time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t.After(w.pausedUntil) {
		w.pausedUntil = t
	}
}

// Status reports the budget state without reserving anything.
func (w *Window) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.nowFunc()
	w.pruneLocked(now)

	st := Status{
		MaxRequests: w.max,
		Window:      w.window,
		InFlight:    len(w.grants),
		Remaining:   w.max - len(w.grants),
	}
	if len(w.grants) > 0 {
		st.ResetsAt = w.grants[0].Add(w.window)
	}
	if now.Before(w.pausedUntil) {
		st.PausedUntil = w.pausedUntil
	}
	return st
}

// pruneLocked drops reservations that have aged out of the window.
func (w *Window) pruneLocked(now time.Time) {
	cutoff := now.Add(-w.window)
	i := 0
	for i < len(w.grants) && !w.grants[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.grants = append(w.grants[:0], w.grants[i:]...)
	}
}

func (w *Window) grantLocked(now time.Time, n int) {
	for range n {
		w.grants = append(w.grants, now)
	}
}

// dispatchLocked grants queued waiters in FIFO order for as long as slots fit.
func (w *Window) dispatchLocked() {
	now := w.nowFunc()
	w.pruneLocked(now)
	for len(w.queue) > 0 {
		if now.Before(w.pausedUntil) {
			return
		}
		head := w.queue[0]
		if len(w.grants)+head.n > w.max {
			return
		}
		w.grantLocked(now, head.n)
		head.grantedAt = now
		close(head.ready)
		w.queue = w.queue[1:]
	}
}

// nextWakeLocked computes when the waiter should re-check admission: the
// pause expiry, or the moment enough of the oldest reservations age out.
func (w *Window) nextWakeLocked(wt *waiter) time.Time {
	now := w.nowFunc()
	wake := now.Add(w.window)

	if now.Before(w.pausedUntil) {
		wake = w.pausedUntil
	} else {
		need := len(w.grants) + wt.n - w.max
		if need <= 0 {
			// Slots are free but a waiter ahead of us holds priority; poll soon.
			return now.Add(10 * time.Millisecond)
		}
		if need <= len(w.grants) {
			wake = w.grants[need-1].Add(w.window)
		}
	}
	if wake.Before(now) {
		return now
	}
	return wake
}

// abandon removes a cancelled waiter. A waiter granted concurrently with its
// cancellation gives the reserved slots back instead of holding them for the
// rest of the window.
func (w *Window) abandon(wt *waiter) {
	w.mu.Lock()
	defer w.mu.Unlock()

	select {
	case <-wt.ready:
		removed := 0
		for i := len(w.grants) - 1; i >= 0 && removed < wt.n; i-- {
			if w.grants[i].Equal(wt.grantedAt) {
				w.grants = append(w.grants[:i], w.grants[i+1:]...)
				removed++
			}
		}
	default:
		for i, q := range w.queue {
			if q == wt {
				w.queue = append(w.queue[:i], w.queue[i+1:]...)
				break
			}
		}
	}
	// Freed slots or a removed waiter may unblock the ones behind it.
	w.dispatchLocked()
}

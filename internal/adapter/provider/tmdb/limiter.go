package tmdb

import (
	"context"
	"sync"
	"time"
)

// SlidingWindow admits at most limit calls in any trailing window.
// Admission timestamps are kept in ascending order; waiters sleep until the
// oldest admission leaves the window and then compete again.
type SlidingWindow struct {
	mu           sync.Mutex
	limit        int
	window       time.Duration
	calls        []time.Time
	blockedUntil time.Time

	now func() time.Time
}

// NewSlidingWindow creates a limiter admitting limit calls per window.
func NewSlidingWindow(limit int, window time.Duration) *SlidingWindow {
	return &SlidingWindow{
		limit:  limit,
		window: window,
		calls:  make([]time.Time, 0, limit),
		now:    time.Now,
	}
}

// Wait blocks until a call may be dispatched and records it.
// It returns how long the caller was held back.
func (w *SlidingWindow) Wait(ctx context.Context) (time.Duration, error) {
	var waited time.Duration
	for {
		delay := w.reserve()
		if delay <= 0 {
			return waited, nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return waited, ctx.Err()
		case <-timer.C:
		}
		waited += delay
	}
}

// reserve records a call and returns 0, or returns how long to wait before retrying.
func (w *SlidingWindow) reserve() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if now.Before(w.blockedUntil) {
		return w.blockedUntil.Sub(now)
	}

	w.evict(now)
	if len(w.calls) < w.limit {
		w.calls = append(w.calls, now)
		return 0
	}

	return w.calls[0].Add(w.window).Sub(now)
}

// evict drops admissions that are no longer inside the window ending at now.
func (w *SlidingWindow) evict(now time.Time) {
	cutoff := now.Add(-w.window)
	i := 0
	for i < len(w.calls) && !w.calls[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.calls = append(w.calls[:0], w.calls[i:]...)
	}
}

// Pause holds back every caller for d, e.g. after the server answered 429.
// A shorter pause never cuts an existing one short.
func (w *SlidingWindow) Pause(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	until := w.now().Add(d)
	if until.After(w.blockedUntil) {
		w.blockedUntil = until
	}
}

// InFlight returns how many admissions are inside the current window.
func (w *SlidingWindow) InFlight() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.evict(w.now())
	return len(w.calls)
}

// Window returns the configured window length.
func (w *SlidingWindow) Window() time.Duration {
	return w.window
}

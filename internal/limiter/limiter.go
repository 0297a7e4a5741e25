// package limiter implements sliding-window admission control for outbound service calls
package limiter

import (
	"context"
	"sync"
	"time"
)

// DefaultMargin is added to every computed wait so the oldest call has left the window when the caller wakes.
const DefaultMargin = 100 * time.Millisecond

// Clock abstracts time for the limiter so tests can drive it deterministically.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SlidingWindow admits at most maxCalls calls within any trailing window.
//
// Calls are never dropped, only delayed. The evict-wait-record sequence runs under a single mutex,
// so concurrent callers are admitted one at a time.
type SlidingWindow struct {
	mu       sync.Mutex
	maxCalls int
	window   time.Duration
	margin   time.Duration
	clock    Clock
	calls    []time.Time
	observe  func(time.Time)
}

// Option configures a [SlidingWindow].
type Option func(*SlidingWindow)

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(l *SlidingWindow) { l.clock = c }
}

// WithMargin overrides [DefaultMargin].
func WithMargin(d time.Duration) Option {
	return func(l *SlidingWindow) { l.margin = d }
}

// New creates a limiter allowing maxCalls per window. A non-positive maxCalls or window disables limiting.
func New(maxCalls int, window time.Duration, opts ...Option) *SlidingWindow {
	l := &SlidingWindow{
		maxCalls: maxCalls,
		window:   window,
		margin:   DefaultMargin,
		clock:    systemClock{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Wait blocks until one more call fits in the window, then records it.
//
// Returns the context error if ctx is cancelled while waiting; nothing is recorded in that case.
func (l *SlidingWindow) Wait(ctx context.Context) error {
	if l == nil || l.maxCalls <= 0 || l.window <= 0 {
		return ctx.Err()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	now := l.clock.Now()
	l.evict(now)

	for len(l.calls) >= l.maxCalls {
		wait := l.calls[0].Add(l.window).Sub(now)
		if wait > 0 {
			if err := l.clock.Sleep(ctx, wait+l.margin); err != nil {
				return err
			}
		}
		now = l.clock.Now()
		l.evict(now)
	}

	l.calls = append(l.calls, now)
	if l.observe != nil {
		l.observe(now)
	}
	return nil
}

// WaitIfNeeded is [SlidingWindow.Wait] without cancellation.
func (l *SlidingWindow) WaitIfNeeded() {
	_ = l.Wait(context.Background())
}

// Len returns the number of calls currently inside the window.
func (l *SlidingWindow) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evict(l.clock.Now())
	return len(l.calls)
}

// evict drops timestamps that have left the trailing window. Caller holds mu.
func (l *SlidingWindow) evict(now time.Time) {
	i := 0
	for i < len(l.calls) && now.Sub(l.calls[i]) >= l.window {
		i++
	}
	if i > 0 {
		l.calls = append(l.calls[:0], l.calls[i:]...)
	}
}

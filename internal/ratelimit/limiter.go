package ratelimit

import (
	"sync"
	"time"
)

// Defaults used when the limiter is configured with non-positive values.
const (
	DefaultMax    = 60
	DefaultWindow = time.Minute
)

// Decision is the outcome of one Admit call. RetryAfter is non-zero only
// when the request is rejected and reports the time until the window resets.
type Decision struct {
	Allow      bool
	RetryAfter time.Duration
}

// window is the per-identity fixed-window counter.
type window struct {
	start time.Time
	count int
}

// Limiter is a fixed-window rate limiter keyed by client identity. The fixed
// window deliberately admits brief bursts across a window boundary (up to 2x
// the configured rate); that trade-off buys a counter and a timestamp per
// identity instead of a sliding log. Entries whose window has been expired
// for longer than one full window duration are evicted to keep memory
// bounded against transient or spoofed identities.
type Limiter struct {
	mu        sync.Mutex
	max       int
	window    time.Duration
	windows   map[string]*window
	lastSweep time.Time
}

// NewLimiter returns a limiter allowing max requests per identity per window.
func NewLimiter(max int, windowDur time.Duration) *Limiter {
	if max <= 0 {
		max = DefaultMax
	}
	if windowDur <= 0 {
		windowDur = DefaultWindow
	}
	return &Limiter{
		max:     max,
		window:  windowDur,
		windows: make(map[string]*window),
	}
}

// Admit records one request for identity at the given time and decides
// whether it is within budget. A new window starts when none exists or the
// stored window has ended; otherwise the count is incremented and the
// request rejected once it exceeds the maximum.
func (l *Limiter) Admit(identity string, now time.Time) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweepLocked(now)

	w, ok := l.windows[identity]
	if !ok || now.Sub(w.start) >= l.window {
		l.windows[identity] = &window{start: now, count: 1}
		return Decision{Allow: true}
	}

	w.count++
	if w.count <= l.max {
		return Decision{Allow: true}
	}
	return Decision{RetryAfter: w.start.Add(l.window).Sub(now)}
}

// Size returns the number of tracked identities.
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// sweepLocked evicts identities whose window expired more than one window
// duration ago. Runs at most once per window duration. Caller must hold l.mu.
func (l *Limiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	l.lastSweep = now
	for identity, w := range l.windows {
		if now.Sub(w.start) >= 2*l.window {
			delete(l.windows, identity)
		}
	}
}

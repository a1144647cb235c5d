// Package ratelimit bounds the request rate of each client key with a fixed
// window counter.
//
// A key gets a fresh window on its first request, and again on the first
// request after the window has passed. Requests beyond the maximum are
// rejected until the window ends. Across a window boundary a client can get
// up to twice the maximum through.
package ratelimit

import (
	"sync"
	"time"
)

// AnonymousKey is used when a request carries no client address.
const AnonymousKey = "anonymous"

type counter struct {
	count   int
	resetAt time.Time
}

// Decision is the outcome of one Admit call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetAt is when the current window ends.
	ResetAt time.Time
	// RetryAfter is only set when Allowed is false.
	RetryAfter time.Duration
}

// ResetSeconds is ResetAt as epoch seconds, rounded up.
func (d Decision) ResetSeconds() int64 {
	return (d.ResetAt.UnixMilli() + 999) / 1000
}

// RetryAfterSeconds is RetryAfter rounded up to whole seconds. A rejected
// request is always told to wait at least one second.
func (d Decision) RetryAfterSeconds() int64 {
	if d.Allowed {
		return 0
	}
	return max(1, ceilSeconds(d.RetryAfter))
}

func ceilSeconds(d time.Duration) int64 {
	ms := d.Milliseconds()
	if ms <= 0 {
		return 0
	}
	return (ms + 999) / 1000
}

// Limiter is safe for concurrent use.
type Limiter struct {
	max    int
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	keys map[string]*counter
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func New(limit int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		max:    limit,
		window: window,
		now:    time.Now,
		keys:   make(map[string]*counter),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Limit is the maximum number of requests per window.
func (l *Limiter) Limit() int { return l.max }

// Admit counts one request for key.
func (l *Limiter) Admit(key string) Decision {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.keys[key]
	if !ok || now.After(w.resetAt) {
		w = &counter{count: 1, resetAt: now.Add(l.window)}
		l.keys[key] = w
		return l.decision(w, true, now)
	}

	w.count++
	return l.decision(w, w.count <= l.max, now)
}

func (l *Limiter) decision(w *counter, allowed bool, now time.Time) Decision {
	d := Decision{
		Allowed:   allowed,
		Limit:     l.max,
		Remaining: max(0, l.max-w.count),
		ResetAt:   w.resetAt,
	}
	if !allowed {
		d.RetryAfter = w.resetAt.Sub(now)
	}
	return d
}

// Sweep drops every key whose window has passed and returns how many were
// removed. Keys whose window is still open are never touched.
func (l *Limiter) Sweep() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, w := range l.keys {
		if now.After(w.resetAt) {
			delete(l.keys, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}

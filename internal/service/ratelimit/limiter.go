// Package ratelimit keeps in-process token buckets per caller.
package ratelimit

import (
	"sync"
	"time"
)

type bucket struct {
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	last       time.Time
}

func (b *bucket) refill(now time.Time) {
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens += elapsed * b.refillRate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.last = now
	}
}

// Limiter is a set of token buckets keyed by caller. Buckets start full.
type Limiter struct {
	mu  sync.Mutex
	m   map[string]*bucket
	now func() time.Time
}

func New() *Limiter { return NewWithClock(time.Now) }

func NewWithClock(now func() time.Time) *Limiter {
	return &Limiter{m: make(map[string]*bucket), now: now}
}

// Take consumes one token for key. When the bucket is empty it reports how
// long until a token is available; zero refill never recovers and yields
// a zero wait.
func (l *Limiter) Take(key string, capacity, refillPerSec float64) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.m[key]
	if !ok {
		b = &bucket{tokens: capacity, capacity: capacity, refillRate: refillPerSec, last: now}
		l.m[key] = b
	}
	b.refill(now)
	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	if b.refillRate <= 0 {
		return false, 0
	}
	return false, time.Duration((1 - b.tokens) / b.refillRate * float64(time.Second))
}

// Prune drops buckets that have refilled completely, which is the same as
// never having seen the caller.
func (l *Limiter) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	n := 0
	for k, b := range l.m {
		b.refill(now)
		if b.tokens >= b.capacity {
			delete(l.m, k)
			n++
		}
	}
	return n
}

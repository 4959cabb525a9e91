// Package limits bounds how fast clients may send events and how many
// live connections one client may hold.
package limits

import (
	"errors"
	"sync"
	"time"
)

var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// idleAfter is how long an untouched bucket is kept.
const idleAfter = 10 * time.Minute

// TokenBucket keeps one bucket per key, refilled at rate tokens per second
// and capped at burst.
type TokenBucket struct {
	rate  float64
	burst float64
	now   func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	done     chan struct{}
	doneOnce sync.Once
}

type bucket struct {
	tokens float64
	seen   time.Time
}

func NewTokenBucket(rate float64, burst int) *TokenBucket {
	tb := &TokenBucket{
		rate:    rate,
		burst:   float64(max(burst, 1)),
		now:     time.Now,
		buckets: make(map[string]*bucket),
		done:    make(chan struct{}),
	}
	go tb.janitor(time.Minute)
	return tb
}

func (tb *TokenBucket) Allow(key string) bool {
	return tb.AllowN(key, 1)
}

// AllowN spends n tokens from key's bucket if it holds that many.
func (tb *TokenBucket) AllowN(key string, n int) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	b, ok := tb.buckets[key]
	if !ok {
		b = &bucket{tokens: tb.burst, seen: now}
		tb.buckets[key] = b
	}
	b.refill(now, tb.rate, tb.burst)

	if b.tokens < float64(n) {
		return false
	}
	b.tokens -= float64(n)
	return true
}

func (b *bucket) refill(now time.Time, rate, burst float64) {
	b.tokens = min(burst, b.tokens+now.Sub(b.seen).Seconds()*rate)
	b.seen = now
}

// Forget drops key's bucket; its next event starts with a full burst.
func (tb *TokenBucket) Forget(key string) {
	tb.mu.Lock()
	delete(tb.buckets, key)
	tb.mu.Unlock()
}

func (tb *TokenBucket) Close() {
	tb.doneOnce.Do(func() { close(tb.done) })
}

func (tb *TokenBucket) janitor(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			tb.sweep()
		case <-tb.done:
			return
		}
	}
}

func (tb *TokenBucket) sweep() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	cutoff := tb.now().Add(-idleAfter)
	for k, b := range tb.buckets {
		if b.seen.Before(cutoff) {
			delete(tb.buckets, k)
		}
	}
}

func (tb *TokenBucket) size() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return len(tb.buckets)
}

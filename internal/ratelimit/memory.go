package ratelimit

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// bucket is one client's token bucket and the last time it was consulted.
type bucket struct {
	tokens   *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter is the token bucket alternative to SlidingWindowLimiter,
// selected with rate_limit.algorithm: token_bucket.
//
// Each client gets a bucket holding limit tokens that refills at limit per
// window. Rejected hits cost nothing, so a client that never stops hammering
// still gets a request through every window/limit and only those it loses are
// handed to the escalation path. The sliding log counts every hit and keeps
// such a client limited until it backs off for a full window.
//
// Buckets idle for twice the cleanup interval are evicted in the background.
type MemoryLimiter struct {
	refill          rate.Limit
	limit           int
	cleanupInterval time.Duration
	now             func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
	done    chan struct{}
	closed  bool
}

// NewMemoryLimiter creates a token bucket limiter allowing limit requests per
// window and starts its eviction goroutine.
func NewMemoryLimiter(limit int, window time.Duration, cleanupInterval time.Duration, opts ...Option) *MemoryLimiter {
	o := buildOptions(opts)
	m := &MemoryLimiter{
		refill:          rate.Every(window / time.Duration(limit)),
		limit:           limit,
		cleanupInterval: cleanupInterval,
		now:             o.now,
		buckets:         make(map[string]*bucket),
		done:            make(chan struct{}),
	}
	go m.cleanup()
	return m
}

// Allow takes one token from the client's bucket if one is available.
func (m *MemoryLimiter) Allow(key string) (bool, Info) {
	now := m.now()
	b := m.bucketFor(key, now)

	allowed := b.tokens.AllowN(now, 1)
	info := m.info(b, now)
	if !allowed {
		// Reserve and cancel to learn when the next token lands.
		reservation := b.tokens.ReserveN(now, 1)
		info.RetryAfter = reservation.DelayFrom(now)
		reservation.CancelAt(now)
	}
	return allowed, info
}

func (m *MemoryLimiter) bucketFor(key string, now time.Time) *bucket {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buckets[key]
	if !ok {
		b = &bucket{tokens: rate.NewLimiter(m.refill, m.limit)}
		m.buckets[key] = b
	}
	b.lastSeen = now
	return b
}

// info reports the remaining whole tokens and when the bucket is full again.
func (m *MemoryLimiter) info(b *bucket, now time.Time) Info {
	available := b.tokens.TokensAt(now)
	missing := float64(m.limit) - available

	resetAt := now
	if missing > 0 {
		resetAt = now.Add(time.Duration(missing / float64(m.refill) * float64(time.Second)))
	}

	return Info{
		Limit:     m.limit,
		Remaining: int(math.Max(0, math.Floor(available))),
		ResetAt:   resetAt,
	}
}

// Close stops the eviction goroutine. Safe to call more than once.
func (m *MemoryLimiter) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	close(m.done)
}

func (m *MemoryLimiter) cleanup() {
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.evictIdle()
		}
	}
}

func (m *MemoryLimiter) evictIdle() {
	cutoff := m.now().Add(-2 * m.cleanupInterval)
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, b := range m.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(m.buckets, key)
		}
	}
}

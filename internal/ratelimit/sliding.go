package ratelimit

import (
	"sync"
	"time"
)

// hitLog holds the hit log for one key, oldest first.
type hitLog struct {
	hits     []time.Time
	lastSeen time.Time
}

// SlidingWindowLimiter caps every key at max hits within any rolling window.
// Rejected hits are logged too, so a client that keeps hammering stays limited
// until it slows down below the cap for a full window.
type SlidingWindowLimiter struct {
	max             int
	window          time.Duration
	cleanupInterval time.Duration
	now             func() time.Time

	mu      sync.Mutex
	entries map[string]*hitLog
	done    chan struct{}
	closed  bool
}

// NewSlidingWindowLimiter creates a limiter allowing limit hits per window for
// each key. A background goroutine evicts keys idle for longer than a window.
func NewSlidingWindowLimiter(limit int, window time.Duration, cleanupInterval time.Duration, opts ...Option) *SlidingWindowLimiter {
	o := buildOptions(opts)
	s := &SlidingWindowLimiter{
		max:             limit,
		window:          window,
		cleanupInterval: cleanupInterval,
		now:             o.now,
		entries:         make(map[string]*hitLog),
		done:            make(chan struct{}),
	}
	go s.cleanup()
	return s
}

// Allow logs a hit for key and reports whether it is within the cap.
func (s *SlidingWindowLimiter) Allow(key string) (bool, Info) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	w, exists := s.entries[key]
	if !exists {
		w = &hitLog{}
		s.entries[key] = w
	}
	w.prune(now.Add(-s.window))
	w.hits = append(w.hits, now)
	w.lastSeen = now

	count := len(w.hits)
	allowed := count <= s.max

	remaining := s.max - count
	if remaining < 0 {
		remaining = 0
	}

	info := Info{
		Limit:     s.max,
		Remaining: remaining,
		ResetAt:   w.hits[count-1].Add(s.window),
	}

	if !allowed {
		// The next hit is allowed once all but max-1 of the logged hits expire.
		info.RetryAfter = w.hits[count-s.max].Add(s.window).Sub(now)
	}

	return allowed, info
}

// prune drops hits at or before cutoff.
func (w *hitLog) prune(cutoff time.Time) {
	i := 0
	for i < len(w.hits) && !w.hits[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.hits = append(w.hits[:0], w.hits[i:]...)
	}
}

// Close stops the background cleanup goroutine.
func (s *SlidingWindowLimiter) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
}

func (s *SlidingWindowLimiter) cleanup() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.evictStale()
		}
	}
}

// evictStale removes keys whose last hit is older than one window.
func (s *SlidingWindowLimiter) evictStale() {
	cutoff := s.now().Add(-s.window)
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, w := range s.entries {
		if !w.lastSeen.After(cutoff) {
			delete(s.entries, key)
		}
	}
}

// Package ratelimit provides the per-client micro-window limiter that sits in
// front of escalation. Two algorithms are available: a sliding window log
// (the default, a hard cap on hits in any rolling window) and a token bucket.
// The HTTP middleware sets standard rate limit response headers and hands
// rejected requests to a caller-supplied handler.
package ratelimit

import (
	"fmt"
	"time"

	"ipgate/internal/models"
)

// Limiter defines the rate limiting contract. Implementations must be safe for
// concurrent use.
type Limiter interface {
	// Allow checks whether a request identified by key should be allowed.
	// Returns whether the request is allowed and rate information for
	// populating response headers.
	Allow(key string) (allowed bool, info Info)

	// Close stops background goroutines and releases resources.
	Close()
}

// Info contains rate limit state for populating response headers.
type Info struct {
	Limit      int           // Maximum requests per window
	Remaining  int           // Approximate requests remaining
	ResetAt    time.Time     // When the window is clear again
	RetryAfter time.Duration // How long to wait (meaningful only when denied)
}

// Option configures a limiter.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New builds the limiter selected by cfg.Algorithm.
func New(cfg models.RateLimitConfig, opts ...Option) (Limiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rate limit config: %w", err)
	}

	switch cfg.Algorithm {
	case models.AlgorithmSlidingWindow:
		return NewSlidingWindowLimiter(cfg.MaxRequests, cfg.Window, cfg.CleanupInterval, opts...), nil
	case models.AlgorithmTokenBucket:
		return NewMemoryLimiter(cfg.MaxRequests, cfg.Window, cfg.CleanupInterval, opts...), nil
	default:
		return nil, fmt.Errorf("unsupported rate limit algorithm: %s", cfg.Algorithm)
	}
}

package admission

import (
	"context"
	"fmt"
	"time"

	"ipgate/internal/ban"
	"ipgate/internal/tracker"
)

const (
	// DefaultThreshold bans on the limited-path request that follows five
	// prior entries in the escalation window.
	DefaultThreshold = 4
	// DefaultWindow is the escalation window.
	DefaultWindow = tracker.DefaultWindow
)

// Engine runs the limited path against the ban registry and request tracker.
type Engine struct {
	bans      *ban.Registry
	tracker   *tracker.Tracker
	threshold int
	window    time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithThreshold sets the number of prior entries a client may accumulate before
// the next limited-path request bans it.
func WithThreshold(threshold int) Option {
	return func(e *Engine) {
		if threshold >= 0 {
			e.threshold = threshold
		}
	}
}

// WithWindow sets the escalation window.
func WithWindow(window time.Duration) Option {
	return func(e *Engine) {
		if window > 0 {
			e.window = window
		}
	}
}

// NewEngine creates an engine with the default threshold and window.
func NewEngine(bans *ban.Registry, tr *tracker.Tracker, opts ...Option) *Engine {
	e := &Engine{
		bans:      bans,
		tracker:   tr,
		threshold: DefaultThreshold,
		window:    DefaultWindow,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Threshold returns the configured escalation threshold.
func (e *Engine) Threshold() int { return e.threshold }

// Window returns the configured escalation window.
func (e *Engine) Window() time.Duration { return e.window }

// Limited handles a request rejected by the micro-window limiter. The ban is
// re-checked, the trailing window is counted before this request is recorded,
// and the client is then either banned or recorded and throttled. at is the
// timestamp stored with the request-log entry.
//
// The count and the following write are not atomic: concurrent requests may
// both decide to ban, leaving duplicate ban entries behind.
func (e *Engine) Limited(ctx context.Context, clientID string, at time.Time) (Outcome, error) {
	banned, err := e.bans.IsBanned(ctx, clientID)
	if err != nil {
		return Allowed, fmt.Errorf("check ban: %w", err)
	}
	if banned {
		return Decide(true, 0, e.threshold).Outcome, nil
	}

	count, err := e.tracker.CountRecent(ctx, clientID, e.window)
	if err != nil {
		return Allowed, fmt.Errorf("count recent requests: %w", err)
	}

	verdict := Decide(false, count, e.threshold)
	if verdict.Ban {
		if err := e.bans.Ban(ctx, clientID); err != nil {
			return Allowed, fmt.Errorf("ban client: %w", err)
		}
	}
	if verdict.Record {
		if err := e.tracker.Record(ctx, clientID, at); err != nil {
			return Allowed, fmt.Errorf("record request: %w", err)
		}
	}
	return verdict.Outcome, nil
}

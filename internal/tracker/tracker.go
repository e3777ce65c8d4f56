// Package tracker - Request-log recording and trailing-window counts.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ipgate/internal/storage"
)

// DefaultWindow is the trailing window used for escalation counts.
const DefaultWindow = 60 * time.Second

// ErrInvalidTimezone is returned by ZonedNow when the requested zone cannot be
// loaded. The accompanying time is still valid (UTC).
var ErrInvalidTimezone = errors.New("invalid timezone")

// Store is the subset of storage.Store the tracker needs.
type Store interface {
	InsertRequestLog(ctx context.Context, clientID string, at time.Time) error
	CountRequestLogs(ctx context.Context, clientID string, since time.Time) (int, error)
}

var _ Store = (storage.Store)(nil)

// Clock returns the current time.
type Clock func() time.Time

// Tracker records limited-path requests and counts recent ones.
type Tracker struct {
	store Store
	now   Clock
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock Clock) Option {
	return func(t *Tracker) {
		if clock != nil {
			t.now = clock
		}
	}
}

// New creates a tracker backed by store.
func New(store Store, opts ...Option) *Tracker {
	t := &Tracker{store: store, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Now returns the tracker's current time.
func (t *Tracker) Now() time.Time {
	return t.now()
}

// Record appends a request-log entry. A zero at is replaced by the tracker clock.
func (t *Tracker) Record(ctx context.Context, clientID string, at time.Time) error {
	if at.IsZero() {
		at = t.now()
	}
	return t.store.InsertRequestLog(ctx, clientID, at)
}

// CountRecent counts entries observed strictly after now - window.
func (t *Tracker) CountRecent(ctx context.Context, clientID string, window time.Duration) (int, error) {
	if window <= 0 {
		return 0, fmt.Errorf("window must be positive, got %s", window)
	}
	return t.store.CountRequestLogs(ctx, clientID, t.now().Add(-window))
}

// ZonedNow expresses now in the IANA zone tz. An empty tz yields UTC silently;
// an unknown tz yields UTC together with ErrInvalidTimezone.
func ZonedNow(tz string, now time.Time) (time.Time, error) {
	if tz == "" {
		return now.UTC(), nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return now.UTC(), fmt.Errorf("%w %q: %w", ErrInvalidTimezone, tz, err)
	}
	return now.In(loc), nil
}

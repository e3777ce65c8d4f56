package admission

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"ipgate/internal/ban"
	"ipgate/internal/models"
	"ipgate/internal/storage"
	"ipgate/internal/tracker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutcome(t *testing.T) {
	tests := []struct {
		outcome Outcome
		name    string
		status  int
		message string
	}{
		{Allowed, "allowed", http.StatusOK, ""},
		{Throttled, "throttled", http.StatusTooManyRequests, models.MessageThrottled},
		{Banned, "banned", http.StatusForbidden, models.MessageBanned},
		{Outcome(42), "unknown", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.outcome.String())
			assert.Equal(t, tt.status, tt.outcome.StatusCode())
			assert.Equal(t, tt.message, tt.outcome.Message())
		})
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name   string
		banned bool
		count  int
		want   Verdict
	}{
		{"already banned ignores count", true, 100, Verdict{Outcome: Banned}},
		{"already banned with no history", true, 0, Verdict{Outcome: Banned}},
		{"fresh client is throttled", false, 0, Verdict{Outcome: Throttled, Record: true}},
		{"four prior entries throttles", false, 4, Verdict{Outcome: Throttled, Record: true}},
		{"five prior entries bans", false, 5, Verdict{Outcome: Banned, Ban: true}},
		{"many prior entries bans", false, 50, Verdict{Outcome: Banned, Ban: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.banned, tt.count, DefaultThreshold))
		})
	}
}

type engineFixture struct {
	engine *Engine
	store  *storage.MemoryStorage
	now    time.Time
}

func newEngineFixture(t *testing.T, opts ...Option) *engineFixture {
	t.Helper()
	store, err := storage.NewMemoryStorage(storage.Config{})
	require.NoError(t, err)

	f := &engineFixture{store: store, now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	tr := tracker.New(store, tracker.WithClock(func() time.Time { return f.now }))
	f.engine = NewEngine(ban.NewRegistry(store), tr, opts...)
	return f
}

func (f *engineFixture) seed(t *testing.T, clientID string, n int, age time.Duration) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, f.store.InsertRequestLog(context.Background(), clientID, f.now.Add(-age)))
	}
}

func TestEngine_Limited(t *testing.T) {
	ctx := context.Background()

	t.Run("Fresh Client Is Throttled And Recorded", func(t *testing.T) {
		f := newEngineFixture(t)
		outcome, err := f.engine.Limited(ctx, "10.0.0.5", f.now)
		require.NoError(t, err)

		assert.Equal(t, Throttled, outcome)
		assert.Len(t, f.store.RequestLogs("10.0.0.5"), 1)
		assert.Empty(t, f.store.Bans("10.0.0.5"))
	})

	t.Run("Four Prior Entries Throttle", func(t *testing.T) {
		f := newEngineFixture(t)
		f.seed(t, "10.0.0.5", 4, 10*time.Second)

		outcome, err := f.engine.Limited(ctx, "10.0.0.5", f.now)
		require.NoError(t, err)
		assert.Equal(t, Throttled, outcome)
		assert.Len(t, f.store.RequestLogs("10.0.0.5"), 5)
		assert.Empty(t, f.store.Bans("10.0.0.5"))
	})

	t.Run("Five Prior Entries Ban", func(t *testing.T) {
		f := newEngineFixture(t)
		f.seed(t, "10.0.0.5", 5, 10*time.Second)

		outcome, err := f.engine.Limited(ctx, "10.0.0.5", f.now)
		require.NoError(t, err)
		assert.Equal(t, Banned, outcome)
		assert.Len(t, f.store.Bans("10.0.0.5"), 1)
		assert.Len(t, f.store.RequestLogs("10.0.0.5"), 5, "banning request is not recorded")
	})

	t.Run("Entries Outside Window Are Ignored", func(t *testing.T) {
		f := newEngineFixture(t)
		f.seed(t, "10.0.0.5", 5, 60*time.Second+time.Millisecond)

		outcome, err := f.engine.Limited(ctx, "10.0.0.5", f.now)
		require.NoError(t, err)
		assert.Equal(t, Throttled, outcome)
	})

	t.Run("Entries Just Inside Window Count", func(t *testing.T) {
		f := newEngineFixture(t)
		f.seed(t, "10.0.0.5", 5, 59*time.Second+999*time.Millisecond)

		outcome, err := f.engine.Limited(ctx, "10.0.0.5", f.now)
		require.NoError(t, err)
		assert.Equal(t, Banned, outcome)
	})

	t.Run("Banned Client Has No Side Effects", func(t *testing.T) {
		f := newEngineFixture(t)
		require.NoError(t, f.store.InsertBan(ctx, "10.0.0.5"))

		outcome, err := f.engine.Limited(ctx, "10.0.0.5", f.now)
		require.NoError(t, err)
		assert.Equal(t, Banned, outcome)
		assert.Len(t, f.store.Bans("10.0.0.5"), 1)
		assert.Empty(t, f.store.RequestLogs("10.0.0.5"))
	})

	t.Run("Custom Threshold", func(t *testing.T) {
		f := newEngineFixture(t, WithThreshold(1), WithWindow(10*time.Second))
		assert.Equal(t, 1, f.engine.Threshold())
		assert.Equal(t, 10*time.Second, f.engine.Window())

		f.seed(t, "10.0.0.5", 2, 5*time.Second)
		outcome, err := f.engine.Limited(ctx, "10.0.0.5", f.now)
		require.NoError(t, err)
		assert.Equal(t, Banned, outcome)
	})

	t.Run("Escalates Over Repeated Limited Requests", func(t *testing.T) {
		f := newEngineFixture(t)
		for i := 0; i < 5; i++ {
			outcome, err := f.engine.Limited(ctx, "10.0.0.5", f.now)
			require.NoError(t, err)
			assert.Equal(t, Throttled, outcome, "request %d", i+1)
			f.now = f.now.Add(time.Second)
		}

		outcome, err := f.engine.Limited(ctx, "10.0.0.5", f.now)
		require.NoError(t, err)
		assert.Equal(t, Banned, outcome)
		assert.Len(t, f.store.Bans("10.0.0.5"), 1)
	})
}

type brokenStore struct {
	storage.Store
	err error
}

func (b brokenStore) BanExists(context.Context, string) (bool, error) { return false, b.err }

func TestEngine_LimitedPropagatesErrors(t *testing.T) {
	store := brokenStore{err: storage.ErrStoreUnavailable}
	engine := NewEngine(ban.NewRegistry(store), tracker.New(store))

	_, err := engine.Limited(context.Background(), "10.0.0.5", time.Now())
	assert.True(t, errors.Is(err, storage.ErrStoreUnavailable))
}

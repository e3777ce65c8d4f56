package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract exercises the behaviour every backend must share. Client IDs
// are randomised so shared external databases never see stale rows.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("Empty Client", func(t *testing.T) {
		s := newStore(t)
		client := "10.0.0." + uuid.NewString()

		count, err := s.CountRequestLogs(ctx, client, time.Now().Add(-time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 0, count)

		banned, err := s.BanExists(ctx, client)
		require.NoError(t, err)
		assert.False(t, banned)
	})

	t.Run("Window Edge", func(t *testing.T) {
		s := newStore(t)
		client := "10.0.1." + uuid.NewString()
		now := time.Now()

		require.NoError(t, s.InsertRequestLog(ctx, client, now.Add(-120*time.Second)))
		require.NoError(t, s.InsertRequestLog(ctx, client, now.Add(-60*time.Second-time.Millisecond)))
		require.NoError(t, s.InsertRequestLog(ctx, client, now.Add(-60*time.Second+time.Millisecond)))
		require.NoError(t, s.InsertRequestLog(ctx, client, now.Add(-30*time.Second)))

		count, err := s.CountRequestLogs(ctx, client, now.Add(-60*time.Second))
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("Sub-Millisecond Edge", func(t *testing.T) {
		s := newStore(t)
		client := "10.0.5." + uuid.NewString()
		since := time.Now().Add(-time.Minute).Truncate(time.Millisecond).Add(500 * time.Microsecond)

		require.NoError(t, s.InsertRequestLog(ctx, client, since.Add(-250*time.Microsecond)))
		require.NoError(t, s.InsertRequestLog(ctx, client, since))
		require.NoError(t, s.InsertRequestLog(ctx, client, since.Add(250*time.Microsecond)))

		count, err := s.CountRequestLogs(ctx, client, since)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("Zone Does Not Shift Instants", func(t *testing.T) {
		s := newStore(t)
		client := "10.0.2." + uuid.NewString()
		tokyo, err := time.LoadLocation("Asia/Tokyo")
		require.NoError(t, err)

		now := time.Now()
		require.NoError(t, s.InsertRequestLog(ctx, client, now.Add(-10*time.Second).In(tokyo)))
		require.NoError(t, s.InsertRequestLog(ctx, client, now.Add(-90*time.Second).In(tokyo)))

		count, err := s.CountRequestLogs(ctx, client, now.UTC().Add(-60*time.Second))
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("Clients Are Isolated", func(t *testing.T) {
		s := newStore(t)
		a := "10.0.3." + uuid.NewString()
		b := "10.0.4." + uuid.NewString()

		require.NoError(t, s.InsertRequestLog(ctx, a, time.Now()))
		require.NoError(t, s.InsertBan(ctx, a))

		count, err := s.CountRequestLogs(ctx, b, time.Now().Add(-time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 0, count)

		banned, err := s.BanExists(ctx, b)
		require.NoError(t, err)
		assert.False(t, banned)
	})

	t.Run("Duplicate Bans", func(t *testing.T) {
		s := newStore(t)
		client := "10.0.5." + uuid.NewString()

		require.NoError(t, s.InsertBan(ctx, client))
		require.NoError(t, s.InsertBan(ctx, client))

		banned, err := s.BanExists(ctx, client)
		require.NoError(t, err)
		assert.True(t, banned)
	})

	t.Run("Concurrent Bans", func(t *testing.T) {
		s := newStore(t)
		client := "10.0.6." + uuid.NewString()

		var wg sync.WaitGroup
		errs := make(chan error, 10)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- s.InsertBan(ctx, client)
			}()
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			assert.NoError(t, err)
		}

		banned, err := s.BanExists(ctx, client)
		require.NoError(t, err)
		assert.True(t, banned)
	})

	t.Run("Ping", func(t *testing.T) {
		s := newStore(t)
		assert.NoError(t, s.Ping(ctx))
	})
}

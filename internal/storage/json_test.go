package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONStorage(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		s, err := NewJSONStorage(Config{Path: filepath.Join(t.TempDir(), "gate.json")})
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestJSONStorage_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "gate.json")
	ctx := context.Background()

	s, err := NewJSONStorage(Config{Path: path})
	require.NoError(t, err)

	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	require.NoError(t, s.InsertRequestLog(ctx, "10.0.0.5", time.Now().In(tokyo)))
	require.NoError(t, s.InsertBan(ctx, "10.0.0.9"))
	require.NoError(t, s.Close())

	reopened, err := NewJSONStorage(Config{Path: path})
	require.NoError(t, err)

	count, err := reopened.CountRequestLogs(ctx, "10.0.0.5", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	banned, err := reopened.BanExists(ctx, "10.0.0.9")
	require.NoError(t, err)
	assert.True(t, banned)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "+09:00", "stored timestamp keeps the client offset")
}

func TestJSONStorageErrors(t *testing.T) {
	t.Run("Missing Path", func(t *testing.T) {
		_, err := NewJSONStorage(Config{})
		assert.Error(t, err)
	})

	t.Run("Corrupt File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "gate.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

		_, err := NewJSONStorage(Config{Path: path})
		assert.Error(t, err)
	})

	t.Run("Ping After Removal", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "gate.json")
		s, err := NewJSONStorage(Config{Path: path})
		require.NoError(t, err)
		require.NoError(t, os.Remove(path))

		err = s.Ping(context.Background())
		assert.ErrorIs(t, err, ErrStoreUnavailable)
	})
}

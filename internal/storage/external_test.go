package storage

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func requireEnv(t *testing.T, name string) string {
	t.Helper()
	value := os.Getenv(name)
	if value == "" {
		t.Skipf("%s not set, skipping", name)
	}
	return value
}

func TestPostgresStorage(t *testing.T) {
	dsn := requireEnv(t, "POSTGRES_TEST_DSN")
	runStoreContract(t, func(t *testing.T) Store {
		s, err := NewPostgresStorage(Config{ConnectionString: dsn})
		if err != nil {
			t.Fatalf("failed to create postgres storage: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestPostgresStorageConnectionError(t *testing.T) {
	_, err := NewPostgresStorage(Config{ConnectionString: ""})
	assert.Error(t, err)

	_, err = NewPostgresStorage(Config{ConnectionString: "postgres://invalid:5432/nonexistent?connect_timeout=1"})
	assert.Error(t, err)
}

func TestRedisStorage(t *testing.T) {
	addr := requireEnv(t, "REDIS_TEST_ADDR")
	runStoreContract(t, func(t *testing.T) Store {
		s, err := NewRedisStorage(Config{RedisAddr: addr, KeyPrefix: "ipgate-test"})
		if err != nil {
			t.Fatalf("failed to create redis storage: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestRedisStorageConnectionError(t *testing.T) {
	_, err := NewRedisStorage(Config{})
	assert.Error(t, err)

	_, err = NewRedisStorage(Config{ConnectionString: "not-a-url"})
	assert.Error(t, err)
}

func TestRedisStorage_Keys(t *testing.T) {
	rs := &RedisStorage{prefix: "gate"}
	assert.Equal(t, "gate:requests:10.0.0.5", rs.requestsKey("10.0.0.5"))
	assert.Equal(t, "gate:bans:10.0.0.5", rs.bansKey("10.0.0.5"))
}

func TestMongoStorage(t *testing.T) {
	uri := requireEnv(t, "MONGO_TEST_URI")
	runStoreContract(t, func(t *testing.T) Store {
		s, err := NewMongoStorage(Config{ConnectionString: uri, DatabaseName: "ipgate_test"})
		if err != nil {
			t.Fatalf("failed to create mongo storage: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestMongoRequestLogsSince(t *testing.T) {
	since := time.Date(2026, 3, 1, 12, 0, 0, 500_000, time.UTC)

	filter := requestLogsSince("10.0.0.5", since)
	assert.Equal(t, "10.0.0.5", filter["ip"])

	clauses, ok := filter["$or"].(bson.A)
	require.True(t, ok)
	require.Len(t, clauses, 2)
	assert.Equal(t, bson.M{"observed_ns": bson.M{"$gt": since.UnixNano()}}, clauses[0])
	assert.Equal(t, bson.M{
		"observed_ns": bson.M{"$exists": false},
		"timestamp":   bson.M{"$gt": since},
	}, clauses[1])
}

func TestMongoStorageConnectionError(t *testing.T) {
	_, err := NewMongoStorage(Config{})
	assert.Error(t, err)

	_, err = NewMongoStorage(Config{ConnectionString: "http://not-mongo"})
	assert.Error(t, err)
}

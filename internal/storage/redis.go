package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ipgate/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisStorage implements the Store interface on Redis.
//
// Layout, per client:
//   - <prefix>:requests:<client> sorted set, score = unix microseconds
//   - <prefix>:bans:<client>     list of JSON ban entries (duplicates kept)
type RedisStorage struct {
	client *redis.Client
	prefix string
}

// NewRedisStorage connects to Redis using either a redis:// URL or discrete
// address settings.
func NewRedisStorage(config Config) (*RedisStorage, error) {
	var opts *redis.Options
	if config.ConnectionString != "" {
		parsed, err := redis.ParseURL(config.ConnectionString)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis URL: %w", err)
		}
		opts = parsed
	} else {
		if config.RedisAddr == "" {
			return nil, fmt.Errorf("address is required for Redis storage")
		}
		opts = &redis.Options{
			Addr:     config.RedisAddr,
			Password: config.RedisPassword,
			DB:       config.RedisDB,
		}
	}
	if config.RedisPoolSize > 0 {
		opts.PoolSize = config.RedisPoolSize
	}

	prefix := strings.Trim(config.KeyPrefix, ":")
	if prefix == "" {
		prefix = "ipgate"
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisStorage{client: client, prefix: prefix}, nil
}

func (rs *RedisStorage) requestsKey(clientID string) string {
	return rs.prefix + ":requests:" + clientID
}

func (rs *RedisStorage) bansKey(clientID string) string {
	return rs.prefix + ":bans:" + clientID
}

// InsertRequestLog adds an entry to the client's sorted set. The member carries
// the entry ID so identical timestamps never collapse.
func (rs *RedisStorage) InsertRequestLog(ctx context.Context, clientID string, at time.Time) error {
	entry := models.NewRequestLogEntry(clientID, at)
	member := entry.ID + "|" + entry.ObservedAt.Format(time.RFC3339Nano)

	err := rs.client.ZAdd(ctx, rs.requestsKey(clientID), redis.Z{
		Score:  float64(entry.ObservedAt.UnixMicro()),
		Member: member,
	}).Err()
	if err != nil {
		return unavailable("insert request log", err)
	}
	return nil
}

// CountRequestLogs counts entries observed strictly after since using an
// exclusive ZCOUNT lower bound.
func (rs *RedisStorage) CountRequestLogs(ctx context.Context, clientID string, since time.Time) (int, error) {
	minScore := "(" + strconv.FormatInt(since.UnixMicro(), 10)
	count, err := rs.client.ZCount(ctx, rs.requestsKey(clientID), minScore, "+inf").Result()
	if err != nil {
		return 0, unavailable("count request logs", err)
	}
	return int(count), nil
}

// BanExists reports whether the client's ban list exists
func (rs *RedisStorage) BanExists(ctx context.Context, clientID string) (bool, error) {
	n, err := rs.client.Exists(ctx, rs.bansKey(clientID)).Result()
	if err != nil {
		return false, unavailable("check ban", err)
	}
	return n > 0, nil
}

// InsertBan appends a ban entry to the client's list
func (rs *RedisStorage) InsertBan(ctx context.Context, clientID string) error {
	payload, err := json.Marshal(models.NewBanEntry(clientID))
	if err != nil {
		return fmt.Errorf("failed to marshal ban entry: %w", err)
	}
	if err := rs.client.RPush(ctx, rs.bansKey(clientID), payload).Err(); err != nil {
		return unavailable("insert ban", err)
	}
	return nil
}

// Ping verifies Redis is reachable
func (rs *RedisStorage) Ping(ctx context.Context) error {
	if err := rs.client.Ping(ctx).Err(); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close closes the client connection pool
func (rs *RedisStorage) Close() error {
	return rs.client.Close()
}

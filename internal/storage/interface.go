package storage

import (
	"context"
	"time"
)

// Store is the persistence adapter behind the gate. It holds two logical
// collections: request-log entries and ban entries. Every method is a call to
// an external system and may fail with an error wrapping ErrStoreUnavailable.
type Store interface {
	// InsertRequestLog appends a request-log entry for clientID observed at the given time.
	InsertRequestLog(ctx context.Context, clientID string, at time.Time) error

	// CountRequestLogs counts entries for clientID observed strictly after since.
	// Comparison uses absolute instants, never the stored zone.
	CountRequestLogs(ctx context.Context, clientID string, since time.Time) (int, error)

	// BanExists reports whether at least one ban entry exists for clientID.
	BanExists(ctx context.Context, clientID string) (bool, error)

	// InsertBan appends a ban entry for clientID. It never checks for an
	// existing ban, so repeated calls create duplicate entries.
	InsertBan(ctx context.Context, clientID string) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close closes the storage connection and cleans up resources
	Close() error
}

// Config holds configuration for storage backends
type Config struct {
	// Type specifies the storage backend type (memory, json, sqlite, postgres, redis, mongo)
	Type string `json:"type" yaml:"type"`

	// Path is used for file-based storage backends
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// ConnectionString is used for database backends
	ConnectionString string `json:"connection_string,omitempty" yaml:"connection_string,omitempty"`

	// DatabaseName selects the Mongo database when the URI does not name one
	DatabaseName string `json:"database_name,omitempty" yaml:"database_name,omitempty"`

	MaxOpenConns    int           `json:"max_open_conns,omitempty" yaml:"max_open_conns,omitempty"`
	MaxIdleConns    int           `json:"max_idle_conns,omitempty" yaml:"max_idle_conns,omitempty"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime,omitempty" yaml:"conn_max_lifetime,omitempty"`

	// Redis-only settings, used when ConnectionString is empty
	RedisAddr     string `json:"redis_addr,omitempty" yaml:"redis_addr,omitempty"`
	RedisPassword string `json:"redis_password,omitempty" yaml:"redis_password,omitempty"`
	RedisDB       int    `json:"redis_db,omitempty" yaml:"redis_db,omitempty"`
	RedisPoolSize int    `json:"redis_pool_size,omitempty" yaml:"redis_pool_size,omitempty"`

	// KeyPrefix namespaces keys in shared key-value backends
	KeyPrefix string `json:"key_prefix,omitempty" yaml:"key_prefix,omitempty"`
}

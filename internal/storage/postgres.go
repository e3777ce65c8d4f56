package storage

import (
	"context"
	"fmt"
	"time"

	"ipgate/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS request_logs (
	id          TEXT PRIMARY KEY,
	client_id   TEXT NOT NULL,
	observed_at TIMESTAMPTZ NOT NULL,
	zone        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_request_logs_client_observed ON request_logs (client_id, observed_at);

CREATE TABLE IF NOT EXISTS banned_ips (
	id        TEXT PRIMARY KEY,
	client_id TEXT NOT NULL,
	banned_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_banned_ips_client ON banned_ips (client_id);
`

// PostgresStorage implements the Store interface using PostgreSQL through a pgx pool.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage creates a new PostgreSQL storage instance and applies the schema.
func NewPostgresStorage(config Config) (*PostgresStorage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required for PostgreSQL storage")
	}

	poolConfig, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if config.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = config.ConnMaxLifetime
	}

	ctx := context.Background()
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &PostgresStorage{pool: pool}, nil
}

// InsertRequestLog appends a request-log entry
func (ps *PostgresStorage) InsertRequestLog(ctx context.Context, clientID string, at time.Time) error {
	entry := models.NewRequestLogEntry(clientID, at)
	_, err := ps.pool.Exec(ctx,
		`INSERT INTO request_logs (id, client_id, observed_at, zone) VALUES ($1, $2, $3, $4)`,
		entry.ID, entry.ClientID, entry.ObservedAt, entry.Zone(),
	)
	if err != nil {
		return unavailable("insert request log", err)
	}
	return nil
}

// CountRequestLogs counts entries observed strictly after since
func (ps *PostgresStorage) CountRequestLogs(ctx context.Context, clientID string, since time.Time) (int, error) {
	var count int64
	err := ps.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM request_logs WHERE client_id = $1 AND observed_at > $2`,
		clientID, since,
	).Scan(&count)
	if err != nil {
		return 0, unavailable("count request logs", err)
	}
	return int(count), nil
}

// BanExists reports whether any ban entry exists for the client
func (ps *PostgresStorage) BanExists(ctx context.Context, clientID string) (bool, error) {
	var exists bool
	err := ps.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM banned_ips WHERE client_id = $1)`,
		clientID,
	).Scan(&exists)
	if err != nil {
		return false, unavailable("check ban", err)
	}
	return exists, nil
}

// InsertBan appends a ban entry without checking for an existing one
func (ps *PostgresStorage) InsertBan(ctx context.Context, clientID string) error {
	ban := models.NewBanEntry(clientID)
	_, err := ps.pool.Exec(ctx,
		`INSERT INTO banned_ips (id, client_id, banned_at) VALUES ($1, $2, $3)`,
		ban.ID, ban.ClientID, ban.BannedAt,
	)
	if err != nil {
		return unavailable("insert ban", err)
	}
	return nil
}

// Ping verifies the storage backend is reachable and operational.
func (ps *PostgresStorage) Ping(ctx context.Context) error {
	if err := ps.pool.Ping(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close closes the storage connection.
func (ps *PostgresStorage) Close() error {
	ps.pool.Close()
	return nil
}

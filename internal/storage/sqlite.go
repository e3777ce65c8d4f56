package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ipgate/internal/models"

	_ "modernc.org/sqlite"
)

// observed_at and banned_at hold unix nanoseconds so window queries compare
// absolute instants; zone keeps the display location of the request.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS request_logs (
	id          TEXT PRIMARY KEY,
	client_id   TEXT NOT NULL,
	observed_at INTEGER NOT NULL,
	zone        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_request_logs_client_observed ON request_logs (client_id, observed_at);

CREATE TABLE IF NOT EXISTS banned_ips (
	id        TEXT PRIMARY KEY,
	client_id TEXT NOT NULL,
	banned_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_banned_ips_client ON banned_ips (client_id);
`

// SQLiteStorage implements the Store interface on an embedded SQLite database.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens the database file and applies the schema.
func NewSQLiteStorage(config Config) (*SQLiteStorage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required for SQLite storage")
	}

	db, err := sql.Open("sqlite", config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// InsertRequestLog appends a request-log entry
func (ss *SQLiteStorage) InsertRequestLog(ctx context.Context, clientID string, at time.Time) error {
	entry := models.NewRequestLogEntry(clientID, at)
	_, err := ss.db.ExecContext(ctx,
		`INSERT INTO request_logs (id, client_id, observed_at, zone) VALUES (?, ?, ?, ?)`,
		entry.ID, entry.ClientID, entry.ObservedAt.UnixNano(), entry.Zone(),
	)
	if err != nil {
		return unavailable("insert request log", err)
	}
	return nil
}

// CountRequestLogs counts entries observed strictly after since
func (ss *SQLiteStorage) CountRequestLogs(ctx context.Context, clientID string, since time.Time) (int, error) {
	var count int
	err := ss.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM request_logs WHERE client_id = ? AND observed_at > ?`,
		clientID, since.UnixNano(),
	).Scan(&count)
	if err != nil {
		return 0, unavailable("count request logs", err)
	}
	return count, nil
}

// BanExists reports whether any ban entry exists for the client
func (ss *SQLiteStorage) BanExists(ctx context.Context, clientID string) (bool, error) {
	var exists bool
	err := ss.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM banned_ips WHERE client_id = ?)`,
		clientID,
	).Scan(&exists)
	if err != nil {
		return false, unavailable("check ban", err)
	}
	return exists, nil
}

// InsertBan appends a ban entry without checking for an existing one
func (ss *SQLiteStorage) InsertBan(ctx context.Context, clientID string) error {
	ban := models.NewBanEntry(clientID)
	_, err := ss.db.ExecContext(ctx,
		`INSERT INTO banned_ips (id, client_id, banned_at) VALUES (?, ?, ?)`,
		ban.ID, ban.ClientID, ban.BannedAt.UnixNano(),
	)
	if err != nil {
		return unavailable("insert ban", err)
	}
	return nil
}

// Ping verifies the database is reachable
func (ss *SQLiteStorage) Ping(ctx context.Context) error {
	if err := ss.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close closes the storage connection
func (ss *SQLiteStorage) Close() error {
	return ss.db.Close()
}

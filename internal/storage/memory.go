package storage

import (
	"context"
	"sync"
	"time"

	"ipgate/internal/models"
)

// MemoryStorage implements the Store interface using in-memory data structures.
// This provider is ideal for development, testing, and single-instance
// deployments where bans do not need to survive a restart.
type MemoryStorage struct {
	mu          sync.RWMutex
	requestLogs map[string][]*models.RequestLogEntry // key: client ID
	bans        map[string][]*models.BanEntry        // key: client ID
}

// NewMemoryStorage creates a new memory-based storage instance
func NewMemoryStorage(config Config) (*MemoryStorage, error) {
	return &MemoryStorage{
		requestLogs: make(map[string][]*models.RequestLogEntry),
		bans:        make(map[string][]*models.BanEntry),
	}, nil
}

// InsertRequestLog appends a request-log entry
func (m *MemoryStorage) InsertRequestLog(ctx context.Context, clientID string, at time.Time) error {
	entry := models.NewRequestLogEntry(clientID, at)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.requestLogs[clientID] = append(m.requestLogs[clientID], entry)
	return nil
}

// CountRequestLogs counts entries observed strictly after since
func (m *MemoryStorage) CountRequestLogs(ctx context.Context, clientID string, since time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, entry := range m.requestLogs[clientID] {
		if entry.ObservedAfter(since) {
			count++
		}
	}
	return count, nil
}

// BanExists reports whether any ban entry exists for the client
func (m *MemoryStorage) BanExists(ctx context.Context, clientID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.bans[clientID]) > 0, nil
}

// InsertBan appends a ban entry without checking for an existing one
func (m *MemoryStorage) InsertBan(ctx context.Context, clientID string) error {
	entry := models.NewBanEntry(clientID)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.bans[clientID] = append(m.bans[clientID], entry)
	return nil
}

// RequestLogs returns copies of every request-log entry stored for a client
func (m *MemoryStorage) RequestLogs(clientID string) []*models.RequestLogEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*models.RequestLogEntry, len(m.requestLogs[clientID]))
	for i, entry := range m.requestLogs[clientID] {
		entryCopy := *entry
		result[i] = &entryCopy
	}
	return result
}

// Bans returns copies of every ban entry stored for a client
func (m *MemoryStorage) Bans(clientID string) []*models.BanEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*models.BanEntry, len(m.bans[clientID]))
	for i, entry := range m.bans[clientID] {
		entryCopy := *entry
		result[i] = &entryCopy
	}
	return result
}

// Ping always succeeds for in-memory storage
func (m *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for memory storage
func (m *MemoryStorage) Close() error {
	return nil
}

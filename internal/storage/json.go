package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"ipgate/internal/models"
)

// JSONStorage implements the Store interface using a JSON file for persistence.
// The whole document is held in memory and rewritten after every insert, which
// suits development and small single-instance deployments.
type JSONStorage struct {
	filePath string
	mu       sync.RWMutex
	data     *JSONData
}

// JSONData represents the structure of data stored in JSON format
type JSONData struct {
	RequestLogs []*models.RequestLogEntry `json:"request_logs"`
	Bans        []*models.BanEntry        `json:"bans"`
	LastUpdated time.Time                 `json:"last_updated"`
}

// NewJSONStorage creates a new JSON-based storage instance
func NewJSONStorage(config Config) (*JSONStorage, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("path is required for JSON storage")
	}

	storage := &JSONStorage{
		filePath: config.Path,
	}

	// Initialize with empty data if file doesn't exist
	if err := storage.ensureFileExists(); err != nil {
		return nil, fmt.Errorf("failed to ensure file exists: %w", err)
	}

	if err := storage.loadData(); err != nil {
		return nil, fmt.Errorf("failed to load initial data: %w", err)
	}

	return storage, nil
}

// ensureFileExists creates the JSON file with empty data if it doesn't exist
func (j *JSONStorage) ensureFileExists() error {
	if _, err := os.Stat(j.filePath); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(j.filePath), 0700); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}

		emptyData := &JSONData{
			RequestLogs: []*models.RequestLogEntry{},
			Bans:        []*models.BanEntry{},
		}

		return j.saveData(emptyData)
	}
	return nil
}

// loadData reads the JSON file into memory
func (j *JSONStorage) loadData() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	fileData, err := os.ReadFile(j.filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var data JSONData
	if err := json.Unmarshal(fileData, &data); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	j.data = &data
	return nil
}

// saveData writes data to a temporary file and renames it over the target so
// a crash never leaves a truncated document behind.
func (j *JSONStorage) saveData(data *JSONData) error {
	data.LastUpdated = time.Now().UTC()

	fileData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	tmpPath := j.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, fileData, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	if err := os.Rename(tmpPath, j.filePath); err != nil {
		return fmt.Errorf("failed to replace file: %w", err)
	}

	return nil
}

// InsertRequestLog appends a request-log entry and persists the document
func (j *JSONStorage) InsertRequestLog(ctx context.Context, clientID string, at time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.data.RequestLogs = append(j.data.RequestLogs, models.NewRequestLogEntry(clientID, at))
	if err := j.saveData(j.data); err != nil {
		j.data.RequestLogs = j.data.RequestLogs[:len(j.data.RequestLogs)-1]
		return unavailable("insert request log", err)
	}
	return nil
}

// CountRequestLogs counts entries observed strictly after since
func (j *JSONStorage) CountRequestLogs(ctx context.Context, clientID string, since time.Time) (int, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	count := 0
	for _, entry := range j.data.RequestLogs {
		if entry.ClientID == clientID && entry.ObservedAfter(since) {
			count++
		}
	}
	return count, nil
}

// BanExists reports whether any ban entry exists for the client
func (j *JSONStorage) BanExists(ctx context.Context, clientID string) (bool, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	for _, ban := range j.data.Bans {
		if ban.ClientID == clientID {
			return true, nil
		}
	}
	return false, nil
}

// InsertBan appends a ban entry and persists the document
func (j *JSONStorage) InsertBan(ctx context.Context, clientID string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.data.Bans = append(j.data.Bans, models.NewBanEntry(clientID))
	if err := j.saveData(j.data); err != nil {
		j.data.Bans = j.data.Bans[:len(j.data.Bans)-1]
		return unavailable("insert ban", err)
	}
	return nil
}

// Ping verifies the backing file is still readable
func (j *JSONStorage) Ping(ctx context.Context) error {
	if _, err := os.Stat(j.filePath); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close is a no-op; every write is already flushed
func (j *JSONStorage) Close() error {
	return nil
}

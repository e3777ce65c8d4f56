package storage

import (
	"fmt"

	"ipgate/internal/models"
)

// Factory provides a centralized way to create storage instances based on configuration.
type Factory struct{}

// NewFactory creates a new storage factory
func NewFactory() *Factory {
	return &Factory{}
}

// Create instantiates a storage provider based on the provided configuration.
// Supported providers:
//   - memory: In-memory storage (for testing/development)
//   - json: JSON file-based storage
//   - sqlite: SQLite database storage (lightweight database)
//   - postgres: PostgreSQL database storage
//   - redis: Redis sorted sets and lists
//   - mongo: MongoDB collections
func (f *Factory) Create(config models.StorageConfig) (Store, error) {
	if err := f.ValidateConfig(config); err != nil {
		return nil, err
	}

	storageConfig := ConfigFromModel(config)

	switch config.Type {
	case models.StorageTypeMemory:
		return NewMemoryStorage(storageConfig)
	case models.StorageTypeJSON:
		return NewJSONStorage(storageConfig)
	case models.StorageTypeSQLite:
		return NewSQLiteStorage(storageConfig)
	case models.StorageTypePostgres:
		return NewPostgresStorage(storageConfig)
	case models.StorageTypeRedis:
		return NewRedisStorage(storageConfig)
	case models.StorageTypeMongo:
		return NewMongoStorage(storageConfig)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", config.Type)
	}
}

// GetSupportedProviders returns a list of all supported storage provider types
func (f *Factory) GetSupportedProviders() []string {
	return models.SupportedStorageTypes()
}

// ValidateConfig validates that a storage configuration is valid for its type
func (f *Factory) ValidateConfig(config models.StorageConfig) error {
	return config.Validate()
}

// ConfigFromModel converts models.StorageConfig to the internal Config format.
func ConfigFromModel(config models.StorageConfig) Config {
	return Config{
		Type:             config.Type,
		Path:             config.Path,
		ConnectionString: config.Database.DSN,
		DatabaseName:     config.Database.Name,
		MaxOpenConns:     config.Database.MaxOpenConns,
		MaxIdleConns:     config.Database.MaxIdleConns,
		ConnMaxLifetime:  config.Database.ConnMaxLifetime,
		RedisAddr:        config.Redis.Addr,
		RedisPassword:    config.Redis.Password,
		RedisDB:          config.Redis.DB,
		RedisPoolSize:    config.Redis.PoolSize,
		KeyPrefix:        config.Redis.KeyPrefix,
	}
}

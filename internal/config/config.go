package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"ipgate/internal/models"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every service-specific environment variable.
const EnvPrefix = "IPGATE_"

// Load loads configuration from file and environment variables
func Load(configPath string) (*models.Config, error) {
	// Start with default configuration
	config := models.NewDefaultConfig()

	// Load from file if provided and exists
	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Override with environment variables
	loadFromEnvironment(config)

	// Validate the final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(config *models.Config, filePath string) error {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", filePath)
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

func env(name string) string {
	return os.Getenv(EnvPrefix + name)
}

func setString(target *string, name string) {
	if v := env(name); v != "" {
		*target = v
	}
}

func setInt(target *int, name string) {
	if v := env(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		} else {
			slog.Warn("Ignoring invalid integer environment variable", "name", EnvPrefix+name, "value", v)
		}
	}
}

func setDuration(target *time.Duration, name string) {
	if v := env(name); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*target = d
		} else {
			slog.Warn("Ignoring invalid duration environment variable", "name", EnvPrefix+name, "value", v)
		}
	}
}

func setBool(target *bool, name string) {
	if v := env(name); v != "" {
		*target = strings.ToLower(v) == "true"
	}
}

// loadFromEnvironment loads configuration from environment variables.
// PORT and DB_URL are honoured without prefix; the prefixed forms win when
// both are set.
func loadFromEnvironment(config *models.Config) {
	// Server configuration
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	setInt(&config.Server.Port, "PORT")
	setString(&config.Server.Host, "HOST")
	setDuration(&config.Server.ReadTimeout, "READ_TIMEOUT")
	setDuration(&config.Server.WriteTimeout, "WRITE_TIMEOUT")
	setDuration(&config.Server.IdleTimeout, "IDLE_TIMEOUT")
	setBool(&config.Server.TLSEnabled, "TLS_ENABLED")
	setString(&config.Server.TLSCertFile, "TLS_CERT_FILE")
	setString(&config.Server.TLSKeyFile, "TLS_KEY_FILE")

	// Storage configuration
	dsnFromEnv := false
	if dsn := os.Getenv("DB_URL"); dsn != "" {
		config.Storage.Database.DSN = dsn
		dsnFromEnv = true
	}
	if dsn := env("DATABASE_DSN"); dsn != "" {
		config.Storage.Database.DSN = dsn
		dsnFromEnv = true
	}

	if storageType := env("STORAGE_TYPE"); storageType != "" {
		config.Storage.Type = storageType
	} else if dsnFromEnv {
		if inferred := models.InferStorageType(config.Storage.Database.DSN); inferred != "" {
			config.Storage.Type = inferred
		} else {
			slog.Warn("Cannot infer storage type from connection string; set IPGATE_STORAGE_TYPE",
				"storage_type", config.Storage.Type)
		}
	}

	setString(&config.Storage.Path, "STORAGE_PATH")
	setString(&config.Storage.Database.Name, "DATABASE_NAME")
	setInt(&config.Storage.Database.MaxOpenConns, "DATABASE_MAX_OPEN_CONNS")
	setInt(&config.Storage.Database.MaxIdleConns, "DATABASE_MAX_IDLE_CONNS")
	setDuration(&config.Storage.Database.ConnMaxLifetime, "DATABASE_CONN_MAX_LIFETIME")

	// Redis configuration
	setString(&config.Storage.Redis.Addr, "REDIS_ADDR")
	setString(&config.Storage.Redis.Password, "REDIS_PASSWORD")
	setInt(&config.Storage.Redis.DB, "REDIS_DB")
	setInt(&config.Storage.Redis.PoolSize, "REDIS_POOL_SIZE")
	setString(&config.Storage.Redis.KeyPrefix, "REDIS_KEY_PREFIX")

	// Gate configuration
	setInt(&config.Gate.TrustedHops, "TRUSTED_HOPS")
	setString(&config.Gate.FailMode, "FAIL_MODE")
	setString(&config.Gate.RateLimit.Algorithm, "RATE_LIMIT_ALGORITHM")
	setInt(&config.Gate.RateLimit.MaxRequests, "RATE_LIMIT_MAX_REQUESTS")
	setDuration(&config.Gate.RateLimit.Window, "RATE_LIMIT_WINDOW")
	setDuration(&config.Gate.RateLimit.CleanupInterval, "RATE_LIMIT_CLEANUP_INTERVAL")
	setInt(&config.Gate.Escalation.Threshold, "ESCALATION_THRESHOLD")
	setDuration(&config.Gate.Escalation.Window, "ESCALATION_WINDOW")

	// Logging configuration
	setString(&config.Logging.Level, "LOG_LEVEL")
	setString(&config.Logging.Format, "LOG_FORMAT")
	setString(&config.Logging.Output, "LOG_OUTPUT")
	setString(&config.Logging.FilePath, "LOG_FILE_PATH")

	// Metrics configuration
	setBool(&config.Metrics.Enabled, "METRICS_ENABLED")
	setString(&config.Metrics.Path, "METRICS_PATH")
	setInt(&config.Metrics.Port, "METRICS_PORT")

	// Observability configuration
	setString(&config.Observability.ServiceName, "SERVICE_NAME")
	setBool(&config.Observability.Tracing.Enabled, "TRACING_ENABLED")
	setString(&config.Observability.Tracing.Exporter, "TRACING_EXPORTER")
	setString(&config.Observability.Tracing.OTLPEndpoint, "TRACING_OTLP_ENDPOINT")
	if rate := env("TRACING_SAMPLE_RATE"); rate != "" {
		if r, err := strconv.ParseFloat(rate, 64); err == nil {
			config.Observability.Tracing.SampleRate = r
		}
	}
}

// SaveExample saves an example configuration file
func SaveExample(filePath string) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Get default config with some example values
	config := models.NewDefaultConfig()

	config.Storage.Type = models.StorageTypeSQLite
	config.Storage.Database.DSN = "./data/ipgate.db"
	config.Storage.Redis.Addr = "localhost:6379"

	// Example TLS configuration
	config.Server.TLSEnabled = false
	config.Server.TLSCertFile = "/path/to/cert.pem"
	config.Server.TLSKeyFile = "/path/to/key.pem"

	// Marshal to YAML
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// Write to file
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

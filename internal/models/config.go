// Package models - Service configuration and operational settings.
// This file defines the configuration structures for every gate component.
//
// Configuration Philosophy:
// - Hierarchical configuration with logical grouping (server, storage, gate, etc.)
// - Defaults reproduce the reference behaviour: port 3000, 5 requests per second,
//   ban after 5 limited requests within 60 seconds, one trusted proxy hop
// - Validation catches misconfigurations before the server starts
package models

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Storage type constants
const (
	StorageTypeJSON     = "json"
	StorageTypeMemory   = "memory"
	StorageTypePostgres = "postgres"
	StorageTypeSQLite   = "sqlite"
	StorageTypeRedis    = "redis"
	StorageTypeMongo    = "mongo"
)

// Rate limit algorithms for the micro-window limiter.
const (
	AlgorithmSlidingWindow = "sliding_window"
	AlgorithmTokenBucket   = "token_bucket"
)

// Fail modes decide what the gate does when the store cannot answer.
//
// - error:  hand the failure to the generic error handler (500)
// - open:   forward the request to the downstream handler
// - closed: reject the request as banned
const (
	FailModeError  = "error"
	FailModeOpen   = "open"
	FailModeClosed = "closed"
)

// Config is the root configuration structure containing all service settings.
//
// Configuration Structure:
// - Server: HTTP server and network settings
// - Storage: persistence backend for request logs and bans
// - Gate: client resolution, micro-window limiter and ban escalation
// - Logging: Structured logging and output configuration
// - Metrics: Prometheus exposition
// - Observability: OpenTelemetry tracing
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`
	Storage       StorageConfig       `yaml:"storage" json:"storage"`
	Gate          GateConfig          `yaml:"gate" json:"gate"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

type ServerConfig struct {
	Port         int           `yaml:"port" json:"port"`
	Host         string        `yaml:"host" json:"host"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	TLSEnabled   bool          `yaml:"tls_enabled" json:"tls_enabled"`
	TLSCertFile  string        `yaml:"tls_cert_file" json:"tls_cert_file"`
	TLSKeyFile   string        `yaml:"tls_key_file" json:"tls_key_file"`
}

type StorageConfig struct {
	Type     string         `yaml:"type" json:"type"`
	Path     string         `yaml:"path" json:"path"`
	Database DatabaseConfig `yaml:"database" json:"database"`
	Redis    RedisConfig    `yaml:"redis" json:"redis"`
}

type DatabaseConfig struct {
	DSN             string        `yaml:"dsn" json:"dsn"`
	Name            string        `yaml:"name" json:"name"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr" json:"addr"`
	Password  string `yaml:"password" json:"password"`
	DB        int    `yaml:"db" json:"db"`
	PoolSize  int    `yaml:"pool_size" json:"pool_size"`
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`
}

// GateConfig groups the admission settings.
type GateConfig struct {
	TrustedHops int              `yaml:"trusted_hops" json:"trusted_hops"`
	FailMode    string           `yaml:"fail_mode" json:"fail_mode"`
	RateLimit   RateLimitConfig  `yaml:"rate_limit" json:"rate_limit"`
	Escalation  EscalationConfig `yaml:"escalation" json:"escalation"`
}

// RateLimitConfig configures the micro-window limiter.
type RateLimitConfig struct {
	Algorithm       string        `yaml:"algorithm" json:"algorithm"`
	MaxRequests     int           `yaml:"max_requests" json:"max_requests"`
	Window          time.Duration `yaml:"window" json:"window"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`
}

// EscalationConfig configures when limited clients are banned. A client is
// banned once it already has more than Threshold request-log entries within
// Window.
type EscalationConfig struct {
	Threshold int           `yaml:"threshold" json:"threshold"`
	Window    time.Duration `yaml:"window" json:"window"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	Port    int    `yaml:"port" json:"port"`
}

type ObservabilityConfig struct {
	ServiceName string        `yaml:"service_name" json:"service_name"`
	Tracing     TracingConfig `yaml:"tracing" json:"tracing"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Exporter     string  `yaml:"exporter" json:"exporter"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate" json:"sample_rate"`
}

// NewDefaultConfig creates a configuration matching the reference deployment.
//
// Default Values Rationale:
// - Port 3000 and in-memory storage: runs without any external dependency
// - 5 requests per 1 second window: the micro-window limiter
// - Threshold 4 over 60 seconds: the 6th limited request in a minute bans
// - One trusted hop: the service sits behind a single reverse proxy
// - Fail mode "error": store failures surface as 500 responses
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         3000,
			Host:         "0.0.0.0",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Storage: StorageConfig{
			Type: StorageTypeMemory,
			Path: "./data/ipgate.json",
			Database: DatabaseConfig{
				Name:            "ipgate",
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
			},
			Redis: RedisConfig{
				PoolSize:  10,
				KeyPrefix: "ipgate",
			},
		},
		Gate: GateConfig{
			TrustedHops: 1,
			FailMode:    FailModeError,
			RateLimit: RateLimitConfig{
				Algorithm:       AlgorithmSlidingWindow,
				MaxRequests:     5,
				Window:          time.Second,
				CleanupInterval: time.Minute,
			},
			Escalation: EscalationConfig{
				Threshold: 4,
				Window:    60 * time.Second,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Path:    "/metrics",
			Port:    9090,
		},
		Observability: ObservabilityConfig{
			ServiceName: "ipgate",
			Tracing: TracingConfig{
				Enabled:    false,
				Exporter:   "stdout",
				SampleRate: 1.0,
			},
		},
	}
}

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("invalid storage config: %w", err)
	}

	if err := c.Gate.Validate(); err != nil {
		return fmt.Errorf("invalid gate config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("invalid metrics config: %w", err)
	}

	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("invalid observability config: %w", err)
	}

	return nil
}

func (sc *ServerConfig) Validate() error {
	if sc.Port <= 0 || sc.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}

	if sc.Host == "" {
		return errors.New("host cannot be empty")
	}

	if sc.ReadTimeout < 0 || sc.WriteTimeout < 0 || sc.IdleTimeout < 0 {
		return errors.New("timeouts cannot be negative")
	}

	if sc.TLSEnabled {
		if sc.TLSCertFile == "" {
			return errors.New("TLS cert file is required when TLS is enabled")
		}
		if sc.TLSKeyFile == "" {
			return errors.New("TLS key file is required when TLS is enabled")
		}
	}

	return nil
}

// SupportedStorageTypes lists every storage backend the factory can build.
func SupportedStorageTypes() []string {
	return []string{
		StorageTypeMemory,
		StorageTypeJSON,
		StorageTypeSQLite,
		StorageTypePostgres,
		StorageTypeRedis,
		StorageTypeMongo,
	}
}

func (stc *StorageConfig) Validate() error {
	if !slices.Contains(SupportedStorageTypes(), stc.Type) {
		return fmt.Errorf("invalid storage type: %s", stc.Type)
	}

	switch stc.Type {
	case StorageTypeJSON:
		if stc.Path == "" {
			return errors.New("path is required for JSON storage")
		}
	case StorageTypePostgres, StorageTypeSQLite, StorageTypeMongo:
		if stc.Database.DSN == "" {
			return fmt.Errorf("database DSN is required for %s storage", stc.Type)
		}
	case StorageTypeRedis:
		if stc.Database.DSN == "" && stc.Redis.Addr == "" {
			return errors.New("redis address or DSN is required for redis storage")
		}
	}

	return nil
}

// InferStorageType guesses the backend from a connection string scheme.
// It returns an empty string when the scheme is not recognised.
func InferStorageType(dsn string) string {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	switch {
	case strings.HasPrefix(lower, "mongodb://"), strings.HasPrefix(lower, "mongodb+srv://"):
		return StorageTypeMongo
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return StorageTypePostgres
	case strings.HasPrefix(lower, "redis://"), strings.HasPrefix(lower, "rediss://"):
		return StorageTypeRedis
	case strings.HasPrefix(lower, "file:"), strings.HasSuffix(lower, ".db"), strings.HasSuffix(lower, ".sqlite"):
		return StorageTypeSQLite
	default:
		return ""
	}
}

func (gc *GateConfig) Validate() error {
	if gc.TrustedHops < 0 {
		return errors.New("trusted hops cannot be negative")
	}

	if !slices.Contains([]string{FailModeError, FailModeOpen, FailModeClosed}, gc.FailMode) {
		return fmt.Errorf("invalid fail mode: %s", gc.FailMode)
	}

	if err := gc.RateLimit.Validate(); err != nil {
		return err
	}

	return gc.Escalation.Validate()
}

func (rc *RateLimitConfig) Validate() error {
	if rc.Algorithm != AlgorithmSlidingWindow && rc.Algorithm != AlgorithmTokenBucket {
		return fmt.Errorf("invalid rate limit algorithm: %s", rc.Algorithm)
	}
	if rc.MaxRequests <= 0 {
		return errors.New("max requests must be positive")
	}
	if rc.Window <= 0 {
		return errors.New("rate limit window must be positive")
	}
	if rc.CleanupInterval <= 0 {
		return errors.New("cleanup interval must be positive")
	}
	return nil
}

func (ec *EscalationConfig) Validate() error {
	if ec.Threshold < 0 {
		return errors.New("escalation threshold cannot be negative")
	}
	if ec.Window <= 0 {
		return errors.New("escalation window must be positive")
	}
	return nil
}

func (lc *LoggingConfig) Validate() error {
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, lc.Level) {
		return fmt.Errorf("invalid log level: %s", lc.Level)
	}

	if !slices.Contains([]string{"json", "text"}, lc.Format) {
		return fmt.Errorf("invalid log format: %s", lc.Format)
	}

	if !slices.Contains([]string{"stdout", "stderr", "file"}, lc.Output) {
		return fmt.Errorf("invalid log output: %s", lc.Output)
	}

	if lc.Output == "file" && lc.FilePath == "" {
		return errors.New("file path is required when output is file")
	}

	return nil
}

func (mc *MetricsConfig) Validate() error {
	if !mc.Enabled {
		return nil
	}

	if mc.Path == "" {
		return errors.New("metrics path cannot be empty")
	}

	if mc.Port <= 0 || mc.Port > 65535 {
		return errors.New("metrics port must be between 1 and 65535")
	}

	return nil
}

func (oc *ObservabilityConfig) Validate() error {
	if !oc.Tracing.Enabled {
		return nil
	}

	if oc.Tracing.Exporter != "stdout" && oc.Tracing.Exporter != "otlp" {
		return fmt.Errorf("invalid tracing exporter: %s", oc.Tracing.Exporter)
	}

	if oc.Tracing.SampleRate < 0 || oc.Tracing.SampleRate > 1 {
		return errors.New("tracing sample rate must be between 0 and 1")
	}

	if oc.Tracing.Exporter == "otlp" && oc.Tracing.OTLPEndpoint == "" {
		return errors.New("OTLP endpoint is required when tracing exporter is otlp")
	}

	return nil
}

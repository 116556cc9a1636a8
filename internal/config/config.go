// Package config provides application configuration management with support for
// TOML files, environment variable overrides, and configuration overlays.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/JaimeStill/page-ingest/pkg/cache"
	"github.com/JaimeStill/page-ingest/pkg/database"
	"github.com/JaimeStill/page-ingest/pkg/logging"
	"github.com/JaimeStill/page-ingest/pkg/storage"
)

const (
	// BaseConfigFile is the primary configuration file name.
	BaseConfigFile = "config.toml"

	// OverlayConfigPattern is the file name pattern for environment-specific overlays.
	OverlayConfigPattern = "config.%s.toml"

	// EnvServiceEnv specifies the environment name for configuration overlays.
	EnvServiceEnv = "SERVICE_ENV"
)

var databaseEnv = &database.Env{
	Host:            "INGEST_DATABASE_HOST",
	Port:            "INGEST_DATABASE_PORT",
	Name:            "INGEST_DATABASE_NAME",
	User:            "INGEST_DATABASE_USER",
	Password:        "INGEST_DATABASE_PASSWORD",
	SSLMode:         "INGEST_DATABASE_SSL_MODE",
	ApplicationName: "INGEST_DATABASE_APPLICATION_NAME",
	MaxOpenConns:    "INGEST_DATABASE_MAX_OPEN_CONNS",
	MaxIdleConns:    "INGEST_DATABASE_MAX_IDLE_CONNS",
	ConnMaxLifetime: "INGEST_DATABASE_CONN_MAX_LIFETIME",
	ConnTimeout:     "INGEST_DATABASE_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	Backend:     "INGEST_STORAGE_BACKEND",
	BasePath:    "INGEST_STORAGE_BASE_PATH",
	S3Bucket:    "INGEST_STORAGE_S3_BUCKET",
	S3Region:    "INGEST_STORAGE_S3_REGION",
	S3Endpoint:  "INGEST_STORAGE_S3_ENDPOINT",
	S3AccessKey: "INGEST_STORAGE_S3_ACCESS_KEY",
	S3SecretKey: "INGEST_STORAGE_S3_SECRET_KEY",
}

var redisEnv = &cache.Env{
	Addr:     "INGEST_REDIS_ADDR",
	Password: "INGEST_REDIS_PASSWORD",
	DB:       "INGEST_REDIS_DB",
}

// Config represents the root service configuration.
type Config struct {
	Server   ServerConfig    `toml:"server"`
	Database database.Config `toml:"database"`
	Logging  logging.Config  `toml:"logging"`
	Storage  storage.Config  `toml:"storage"`
	Redis    cache.Config    `toml:"redis"`
	CORS     CORSConfig      `toml:"cors"`
	Ingest   IngestConfig    `toml:"ingest"`
}

// NeedsDatabase reports whether any configured backend requires Postgres.
func (c *Config) NeedsDatabase() bool {
	return c.Ingest.Catalog == BackendPostgres || c.Ingest.HashIndex == BackendPostgres
}

// NeedsRedis reports whether the hash index is Redis-backed.
func (c *Config) NeedsRedis() bool {
	return c.Ingest.HashIndex == BackendRedis
}

// Load reads and parses the base configuration file, applies any
// environment-specific overlay, and finalizes the result.
func Load() (*Config, error) {
	cfg, err := load(BaseConfigFile)
	if err != nil {
		return nil, err
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.Finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}
	return cfg, nil
}

// Finalize applies defaults, loads environment overrides, and validates the configuration.
func (c *Config) Finalize() error {
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Logging.Finalize(logging.DefaultEnv); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.CORS.Finalize(); err != nil {
		return fmt.Errorf("cors: %w", err)
	}
	if err := c.Ingest.Finalize(); err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	if c.NeedsDatabase() {
		if err := c.Database.Finalize(databaseEnv); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if c.NeedsRedis() {
		if err := c.Redis.Finalize(redisEnv); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Merge applies values from overlay configuration that differ from zero values.
func (c *Config) Merge(overlay *Config) {
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Logging.Merge(&overlay.Logging)
	c.Storage.Merge(&overlay.Storage)
	c.Redis.Merge(&overlay.Redis)
	c.CORS.Merge(&overlay.CORS)
	c.Ingest.Merge(&overlay.Ingest)
}

// FinalizeDatabase finalizes only the database section. Used by tools that
// always need Postgres regardless of the configured backends.
func (c *Config) FinalizeDatabase() error {
	return c.Database.Finalize(databaseEnv)
}

// LoadFile reads a single configuration file without overlays.
func LoadFile(path string) (*Config, error) {
	return load(path)
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvServiceEnv); env != "" {
		overlayPath := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(overlayPath); err == nil {
			return overlayPath
		}
	}
	return ""
}

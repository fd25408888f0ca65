// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/sentinel-quant/internal/domain"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Price sources selectable with PRICE_SOURCE
const (
	PriceSourceYahoo     = "yahoo"     // Every fetch goes to Yahoo
	PriceSourceCache     = "cache"     // SQLite cache in front of Yahoo
	PriceSourceSynthetic = "synthetic" // Deterministic generated prices, no network
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases (always absolute)
	LogLevel string
	Port     int
	DevMode  bool

	PriceSource            string
	FetchConcurrency       int
	YahooRequestsPerSecond float64
	PriceCacheTTL          time.Duration
	PriceRefreshSchedule   string // Cron spec; empty disables the refresh job
	MaintenanceSchedule    string
	RunRetention           time.Duration // Zero keeps every stored run

	Archive ArchiveConfig

	EngineDefaultsFile string
	Engine             EngineDefaults
}

// ArchiveConfig holds the optional S3 archive of completed runs
type ArchiveConfig struct {
	Bucket    string
	Region    string
	Endpoint  string // Custom endpoint for S3-compatible stores (MinIO etc.)
	AccessKey string
	SecretKey string
}

// Enabled reports whether a bucket is configured
func (a ArchiveConfig) Enabled() bool {
	return a.Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("QUANT_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:                absDataDir,
		Port:                   getEnvAsInt("GO_PORT", 8001),
		DevMode:                getEnvAsBool("DEV_MODE", false),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		PriceSource:            strings.ToLower(getEnv("PRICE_SOURCE", PriceSourceCache)),
		FetchConcurrency:       getEnvAsInt("FETCH_CONCURRENCY", 4),
		YahooRequestsPerSecond: getEnvAsFloat("YAHOO_REQUESTS_PER_SECOND", 2),
		PriceCacheTTL:          time.Duration(getEnvAsInt("PRICE_CACHE_TTL_HOURS", 12)) * time.Hour,
		PriceRefreshSchedule:   getEnv("PRICE_REFRESH_SCHEDULE", "30 22 * * 1-5"),
		MaintenanceSchedule:    getEnv("MAINTENANCE_SCHEDULE", "0 3 * * *"),
		RunRetention:           time.Duration(getEnvAsInt("RUN_RETENTION_DAYS", 0)) * 24 * time.Hour,
		Archive: ArchiveConfig{
			Bucket:    getEnv("ARCHIVE_S3_BUCKET", ""),
			Region:    getEnv("ARCHIVE_S3_REGION", "us-east-1"),
			Endpoint:  getEnv("ARCHIVE_S3_ENDPOINT", ""),
			AccessKey: getEnv("ARCHIVE_S3_ACCESS_KEY", ""),
			SecretKey: getEnv("ARCHIVE_S3_SECRET_KEY", ""),
		},
		EngineDefaultsFile: getEnv("ENGINE_DEFAULTS_FILE", ""),
		Engine:             DefaultEngineDefaults(),
	}

	if cfg.EngineDefaultsFile != "" {
		engine, err := LoadEngineDefaults(cfg.EngineDefaultsFile)
		if err != nil {
			return nil, err
		}
		cfg.Engine = engine
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects values the server could not run with
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: GO_PORT %d out of range", domain.ErrConfiguration, c.Port)
	}
	switch c.PriceSource {
	case PriceSourceYahoo, PriceSourceCache, PriceSourceSynthetic:
	default:
		return fmt.Errorf("%w: unknown PRICE_SOURCE %q", domain.ErrConfiguration, c.PriceSource)
	}
	if c.FetchConcurrency <= 0 {
		return fmt.Errorf("%w: FETCH_CONCURRENCY must be positive", domain.ErrConfiguration)
	}
	if c.YahooRequestsPerSecond <= 0 {
		return fmt.Errorf("%w: YAHOO_REQUESTS_PER_SECOND must be positive", domain.ErrConfiguration)
	}
	if c.PriceCacheTTL <= 0 {
		return fmt.Errorf("%w: PRICE_CACHE_TTL_HOURS must be positive", domain.ErrConfiguration)
	}
	if c.PriceRefreshSchedule != "" {
		if _, err := cron.ParseStandard(c.PriceRefreshSchedule); err != nil {
			return fmt.Errorf("%w: PRICE_REFRESH_SCHEDULE: %v", domain.ErrConfiguration, err)
		}
	}
	if c.MaintenanceSchedule != "" {
		if _, err := cron.ParseStandard(c.MaintenanceSchedule); err != nil {
			return fmt.Errorf("%w: MAINTENANCE_SCHEDULE: %v", domain.ErrConfiguration, err)
		}
	}
	if c.RunRetention < 0 {
		return fmt.Errorf("%w: RUN_RETENTION_DAYS must not be negative", domain.ErrConfiguration)
	}
	if c.Archive.Enabled() && c.Archive.Region == "" {
		return fmt.Errorf("%w: ARCHIVE_S3_REGION is required when ARCHIVE_S3_BUCKET is set", domain.ErrConfiguration)
	}
	if (c.Archive.AccessKey == "") != (c.Archive.SecretKey == "") {
		return fmt.Errorf("%w: ARCHIVE_S3_ACCESS_KEY and ARCHIVE_S3_SECRET_KEY must be set together", domain.ErrConfiguration)
	}
	return c.Engine.Validate()
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

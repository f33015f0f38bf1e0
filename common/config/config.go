package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all service configuration
type Config struct {
	Service   ServiceConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	BlobStore BlobStoreConfig
	Detector  DetectorConfig
	Thumbnail ThumbnailConfig
	Query     QueryConfig
	Fanout    FanoutConfig
	Cache     CacheConfig
	Telemetry TelemetryConfig
}

// ServiceConfig holds service-specific settings
type ServiceConfig struct {
	Name        string
	Port        int
	Environment string
	LogLevel    string
	LogFormat   string
}

// DatabaseConfig holds settings for the store backing the key-value tables
type DatabaseConfig struct {
	// Backend selects the store implementation: "postgres" or "memory".
	Backend     string
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	MaxConns    int
	MinConns    int
	MaxIdleTime time.Duration
	MaxLifetime time.Duration
}

// RedisConfig holds Redis settings (detector result cache)
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// BlobStoreConfig holds object store settings (S3-compatible)
type BlobStoreConfig struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	// PublicHost is the host suffix from which stored object URLs are
	// synthesized: https://{bucket}.{PublicHost}/{key}
	PublicHost string
}

// DetectorConfig holds settings for the external species detector
type DetectorConfig struct {
	Endpoint string
	Timeout  time.Duration
	CacheTTL time.Duration
}

// ThumbnailConfig holds settings for the external thumbnail transform
type ThumbnailConfig struct {
	Endpoint string
	Timeout  time.Duration
}

// QueryConfig tunes the scan-based query engine
type QueryConfig struct {
	// ScanPageSize is the range-scan page size for all full-table queries.
	ScanPageSize int
	// OverlapScanLimit bounds the reverse-image (tag overlap) search to a
	// fixed number of records; the search trades completeness for latency.
	OverlapScanLimit int
}

// FanoutConfig tunes subscription fan-out
type FanoutConfig struct {
	// SubscriberCap bounds how many subscribers per tag receive a
	// notification for a single ingestion (first page only, never resumed).
	SubscriberCap int
}

// CacheConfig holds cache backend selection
type CacheConfig struct {
	Backend    string // "memory" or "redis"
	DefaultTTL time.Duration
}

// TelemetryConfig holds observability settings
type TelemetryConfig struct {
	EnablePprof bool
	PprofPort   int
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			Port:        getEnvInt("PORT", 8080),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "text"),
		},
		Database: DatabaseConfig{
			Backend:     getEnv("STORE_BACKEND", "postgres"),
			Host:        getEnv("POSTGRES_HOST", "localhost"),
			Port:        getEnvInt("POSTGRES_PORT", 5432),
			Database:    getEnv("POSTGRES_DB", "aviary"),
			User:        getEnv("POSTGRES_USER", "aviary"),
			Password:    getEnv("POSTGRES_PASSWORD", "aviary"),
			MaxConns:    getEnvInt("POSTGRES_MAX_CONNS", 50),
			MinConns:    getEnvInt("POSTGRES_MIN_CONNS", 10),
			MaxIdleTime: getEnvDuration("POSTGRES_MAX_IDLE_TIME", 30*time.Minute),
			MaxLifetime: getEnvDuration("POSTGRES_MAX_LIFETIME", 1*time.Hour),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		BlobStore: BlobStoreConfig{
			Endpoint:   getEnv("BLOBSTORE_ENDPOINT", "http://localhost:9000"),
			Region:     getEnv("BLOBSTORE_REGION", "us-east-1"),
			Bucket:     getEnv("BLOBSTORE_BUCKET", "aviary-media"),
			AccessKey:  getEnv("BLOBSTORE_ACCESS_KEY", "minioadmin"),
			SecretKey:  getEnv("BLOBSTORE_SECRET_KEY", "minioadmin"),
			PublicHost: getEnv("BLOBSTORE_PUBLIC_HOST", "localhost:9000"),
		},
		Detector: DetectorConfig{
			Endpoint: getEnv("DETECTOR_ENDPOINT", "http://localhost:8090/detect"),
			Timeout:  getEnvDuration("DETECTOR_TIMEOUT", 30*time.Second),
			CacheTTL: getEnvDuration("DETECTOR_CACHE_TTL", 1*time.Hour),
		},
		Thumbnail: ThumbnailConfig{
			Endpoint: getEnv("THUMBNAIL_ENDPOINT", "http://localhost:8091/thumbnail"),
			Timeout:  getEnvDuration("THUMBNAIL_TIMEOUT", 15*time.Second),
		},
		Query: QueryConfig{
			ScanPageSize:     getEnvInt("QUERY_SCAN_PAGE_SIZE", 100),
			OverlapScanLimit: getEnvInt("QUERY_OVERLAP_SCAN_LIMIT", 100),
		},
		Fanout: FanoutConfig{
			SubscriberCap: getEnvInt("FANOUT_SUBSCRIBER_CAP", 100),
		},
		Cache: CacheConfig{
			Backend:    getEnv("CACHE_BACKEND", "memory"),
			DefaultTTL: getEnvDuration("CACHE_DEFAULT_TTL", 1*time.Hour),
		},
		Telemetry: TelemetryConfig{
			EnablePprof: getEnvBool("ENABLE_PPROF", true),
			PprofPort:   getEnvInt("PPROF_PORT", 6060),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns must be >= min_conns")
	}

	if c.Query.ScanPageSize < 1 {
		return fmt.Errorf("scan page size must be positive")
	}

	if c.Query.OverlapScanLimit < 1 {
		return fmt.Errorf("overlap scan limit must be positive")
	}

	if c.Fanout.SubscriberCap < 1 {
		return fmt.Errorf("fanout subscriber cap must be positive")
	}

	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
	)
}

// RedisAddr returns the Redis host:port address
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

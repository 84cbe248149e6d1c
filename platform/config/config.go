// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageProviderMinIO = "minio"
	StorageProviderS3    = "s3"
)

// =============================================================================
// Module-Specific Config Interfaces
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// TokenConfig provides settings for minting access tokens.
type TokenConfig interface {
	JWTConfig
	GetAccessTokenTTL() time.Duration
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
	GetUploadRatePerMinute() float64
	GetUploadBurst() int
	GetMaxUploadBodyBytes() int64
}

// StorageConfig provides settings for the object store backends.
type StorageConfig interface {
	GetStorageProvider() string
	GetStorageEndpoint() string
	GetStorageAccessKey() string
	GetStorageSecretKey() string
	GetStorageUseSSL() bool
	GetStorageRegion() string
	GetStorageBucket() string
	GetStoragePublicBaseURL() string
	MissingStorageSettings() []string
	IsStorageConfigured() bool
}

// MediaConfig provides the upload policy and concurrency settings.
type MediaConfig interface {
	GetMediaPolicy() MediaPolicy
	GetProfileLockTTL() time.Duration
	GetProfileLockWait() time.Duration
}

// SchedulerConfig provides settings for the asynq client and worker.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig interface {
	IsMetricsEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                 string
	HTTPAddr            string
	DatabaseURL         string
	JWTAccessSecret     string
	AccessTokenTTL      time.Duration
	CORSAllowAll        bool
	CORSOrigins         []string
	CORSAllowCreds      bool
	UploadRatePerMinute float64
	UploadBurst         int
	MaxUploadBodyBytes  int64

	StorageProvider      string
	StorageEndpoint      string
	StorageAccessKey     string
	StorageSecretKey     string
	StorageUseSSL        bool
	StorageRegion        string
	StorageBucket        string
	StoragePublicBaseURL string

	MediaPolicyFile string
	Media           MediaPolicy
	ProfileLockTTL  time.Duration
	ProfileLockWait time.Duration

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int

	MetricsEnabled bool
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// TokenConfig implementation
func (c *Config) GetJWTAccessSecret() string       { return c.JWTAccessSecret }
func (c *Config) GetAccessTokenTTL() time.Duration { return c.AccessTokenTTL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string             { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool           { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string        { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool         { return c.CORSAllowCreds }
func (c *Config) GetUploadRatePerMinute() float64 { return c.UploadRatePerMinute }
func (c *Config) GetUploadBurst() int             { return c.UploadBurst }
func (c *Config) GetMaxUploadBodyBytes() int64    { return c.MaxUploadBodyBytes }

// StorageConfig implementation
func (c *Config) GetStorageProvider() string      { return c.StorageProvider }
func (c *Config) GetStorageEndpoint() string      { return c.StorageEndpoint }
func (c *Config) GetStorageAccessKey() string     { return c.StorageAccessKey }
func (c *Config) GetStorageSecretKey() string     { return c.StorageSecretKey }
func (c *Config) GetStorageUseSSL() bool          { return c.StorageUseSSL }
func (c *Config) GetStorageRegion() string        { return c.StorageRegion }
func (c *Config) GetStorageBucket() string        { return c.StorageBucket }
func (c *Config) GetStoragePublicBaseURL() string { return c.StoragePublicBaseURL }

// MissingStorageSettings lists the environment variable names that still need
// a value for the selected provider. Values are never included.
func (c *Config) MissingStorageSettings() []string {
	missing := make([]string, 0, 4)
	if c.StorageBucket == "" {
		missing = append(missing, "STORAGE_BUCKET")
	}
	switch c.StorageProvider {
	case StorageProviderS3:
		if c.StorageRegion == "" {
			missing = append(missing, "STORAGE_REGION")
		}
	default:
		if c.StorageEndpoint == "" {
			missing = append(missing, "STORAGE_ENDPOINT")
		}
		if c.StorageAccessKey == "" {
			missing = append(missing, "STORAGE_ACCESS_KEY")
		}
		if c.StorageSecretKey == "" {
			missing = append(missing, "STORAGE_SECRET_KEY")
		}
	}
	return missing
}

func (c *Config) IsStorageConfigured() bool { return len(c.MissingStorageSettings()) == 0 }

// MediaConfig implementation
func (c *Config) GetMediaPolicy() MediaPolicy        { return c.Media }
func (c *Config) GetProfileLockTTL() time.Duration  { return c.ProfileLockTTL }
func (c *Config) GetProfileLockWait() time.Duration { return c.ProfileLockWait }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }

// MetricsConfig implementation
func (c *Config) IsMetricsEnabled() bool { return c.MetricsEnabled }

// Load reads configuration from environment variables and the optional
// media policy file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                 getEnv("APP_ENV", "development"),
		HTTPAddr:            getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		JWTAccessSecret:     getEnv("JWT_ACCESS_SECRET", ""),
		AccessTokenTTL:      mustDuration(getEnv("JWT_ACCESS_TTL", "15m")),
		CORSAllowAll:        corsAllowAll,
		CORSOrigins:         corsOrigins,
		CORSAllowCreds:      strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		UploadRatePerMinute: mustFloat64(getEnv("UPLOAD_RATE_PER_MINUTE", "30")),
		UploadBurst:         int(mustInt64(getEnv("UPLOAD_RATE_BURST", "10"))),
		MaxUploadBodyBytes:  mustInt64(getEnv("UPLOAD_MAX_BODY_BYTES", "12582912")),

		StorageProvider:      strings.ToLower(getEnv("STORAGE_PROVIDER", StorageProviderMinIO)),
		StorageEndpoint:      getEnv("STORAGE_ENDPOINT", ""),
		StorageAccessKey:     getEnv("STORAGE_ACCESS_KEY", ""),
		StorageSecretKey:     getEnv("STORAGE_SECRET_KEY", ""),
		StorageUseSSL:        strings.EqualFold(getEnv("STORAGE_USE_SSL", "false"), "true"),
		StorageRegion:        getEnv("STORAGE_REGION", ""),
		StorageBucket:        getEnv("STORAGE_BUCKET", ""),
		StoragePublicBaseURL: strings.TrimRight(getEnv("STORAGE_PUBLIC_BASE_URL", ""), "/"),

		MediaPolicyFile: getEnv("MEDIA_POLICY_FILE", ""),
		Media:           mediaPolicyFromEnv(),
		ProfileLockTTL:  mustDuration(getEnv("PROFILE_LOCK_TTL", "30s")),
		ProfileLockWait: mustDuration(getEnv("PROFILE_LOCK_WAIT", "10s")),

		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "media"),
		AsynqConcurrency: int(mustInt64(getEnv("ASYNQ_CONCURRENCY", "5"))),

		MetricsEnabled: strings.EqualFold(getEnv("METRICS_ENABLED", "true"), "true"),
	}

	if cfg.MediaPolicyFile != "" {
		if err := cfg.Media.MergeFile(cfg.MediaPolicyFile); err != nil {
			return nil, err
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.StorageProvider != StorageProviderMinIO && cfg.StorageProvider != StorageProviderS3 {
		return nil, fmt.Errorf("STORAGE_PROVIDER must be %q or %q", StorageProviderMinIO, StorageProviderS3)
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if err := cfg.Media.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt64(value string) int64 {
	result, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return result
}

func mustFloat64(value string) float64 {
	result, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}

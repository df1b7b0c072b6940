package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database  DatabaseConfig
	Inference InferenceConfig
	Storage   StorageConfig
	Worker    WorkerConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// InferenceConfig holds detector-related configuration
type InferenceConfig struct {
	DetectorURL   string
	APIKey        string
	Timeout       time.Duration
	MinConfidence float64
	ClassFilter   []string
}

// StorageConfig holds the bucket the annotated artifacts are uploaded to
type StorageConfig struct {
	BaseURL    string
	Bucket     string
	ServiceKey string
}

// WorkerConfig holds the sweep/retry/cleanup knobs
type WorkerConfig struct {
	MaxRetryCount   int
	RetryDelay      time.Duration
	StaleCleanupAge time.Duration
	CronSchedule    string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Inference: InferenceConfig{
			DetectorURL:   getEnv("DETECTOR_URL", ""),
			APIKey:        getEnv("DETECTOR_API_KEY", ""),
			Timeout:       getEnvAsDuration("DETECTOR_TIMEOUT", 60*time.Second),
			MinConfidence: getEnvAsFloat64("DETECTOR_MIN_CONFIDENCE", 0),
			ClassFilter:   getEnvAsList("DETECTOR_CLASS_FILTER"),
		},
		Storage: StorageConfig{
			BaseURL:    getEnv("STORAGE_URL", ""),
			Bucket:     getEnv("STORAGE_BUCKET", "processed-images"),
			ServiceKey: getEnv("STORAGE_SERVICE_KEY", ""),
		},
		Worker: WorkerConfig{
			MaxRetryCount:   getEnvAsInt("MAX_RETRY_COUNT", 3),
			RetryDelay:      getEnvAsDuration("RETRY_DELAY", time.Hour),
			StaleCleanupAge: getEnvAsDuration("STALE_CLEANUP_AGE", 7*24*time.Hour),
			CronSchedule:    getEnv("SWEEP_SCHEDULE", "@every 5m"),
		},
	}
}

// Helper functions for environment variable parsing
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

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Inference.DetectorURL == "" {
		return NewAppError("CONFIG_ERROR", "DETECTOR_URL is required", ErrInvalidInput)
	}
	if c.Storage.BaseURL == "" {
		return NewAppError("CONFIG_ERROR", "STORAGE_URL is required", ErrInvalidInput)
	}
	if c.Worker.MaxRetryCount < 0 {
		return NewAppError("CONFIG_ERROR", "MAX_RETRY_COUNT must be >= 0", ErrInvalidInput)
	}
	return nil
}

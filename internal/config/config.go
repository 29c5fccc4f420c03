/**
 * Configuration for the Waybill Worker
 *
 * Loads configuration from environment variables matching .env.waybill
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/adverant/nexus/waybill-worker/internal/errors"
)

// Config holds worker configuration
type Config struct {
	// Redis configuration
	RedisURL string

	// PostgreSQL configuration
	DatabaseURL string

	// AWS Textract credentials
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSRegion          string

	// Mistral OCR
	MistralAPIKey   string
	MistralAPIURL   string
	MistralOCRModel string

	// Tesseract configuration
	TesseractLanguages []string

	// Worker configuration
	WorkerConcurrency int
	MaxImageSize      int64
	ProcessingTimeout int

	// FallbackOnBackendError stores a fallback document instead of failing
	// the item when an OCR backend call fails
	FallbackOnBackendError bool

	// Optional YAML catalog of extraction models
	ExtractionModelsFile string

	// Logging
	LogLevel  string
	LogFormat string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		RedisURL:               getEnvOrDefault("REDIS_URL", "redis://localhost:6379"),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		AWSAccessKeyID:         os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey:     os.Getenv("AWS_SECRET_ACCESS_KEY"),
		AWSRegion:              getEnvOrDefault("AWS_REGION", "us-east-1"),
		MistralAPIKey:          os.Getenv("MISTRAL_API_KEY"),
		MistralAPIURL:          getEnvOrDefault("MISTRAL_API_URL", "https://api.mistral.ai"),
		MistralOCRModel:        getEnvOrDefault("MISTRAL_OCR_MODEL", "mistral-ocr-latest"),
		TesseractLanguages:     splitList(getEnvOrDefault("TESSERACT_LANGUAGES", "eng")),
		WorkerConcurrency:      getEnvAsIntOrDefault("WORKER_CONCURRENCY", 4),
		MaxImageSize:           getEnvAsInt64OrDefault("MAX_IMAGE_SIZE", 10485760), // 10MB
		ProcessingTimeout:      getEnvAsIntOrDefault("PROCESSING_TIMEOUT", 300000), // 5 minutes
		FallbackOnBackendError: getEnvAsBoolOrDefault("FALLBACK_ON_BACKEND_ERROR", false),
		ExtractionModelsFile:   os.Getenv("EXTRACTION_MODELS_FILE"),
		LogLevel:               getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:              getEnvOrDefault("LOG_FORMAT", "text"),
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 100 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 100, got %d", c.WorkerConcurrency)
	}

	if c.MaxImageSize < 1024 || c.MaxImageSize > 104857600 { // 1KB to 100MB
		return fmt.Errorf("MAX_IMAGE_SIZE must be between 1KB and 100MB, got %d", c.MaxImageSize)
	}

	if c.ProcessingTimeout < 1000 {
		return fmt.Errorf("PROCESSING_TIMEOUT must be at least 1000ms, got %d", c.ProcessingTimeout)
	}

	return nil
}

// Timeout returns ProcessingTimeout as a duration
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.ProcessingTimeout) * time.Millisecond
}

// RequireBackend checks that the credentials a backend needs are present
func (c *Config) RequireBackend(backend Backend) error {
	switch backend {
	case BackendTextract:
		var missing []string
		if c.AWSAccessKeyID == "" {
			missing = append(missing, "AWS_ACCESS_KEY_ID")
		}
		if c.AWSSecretAccessKey == "" {
			missing = append(missing, "AWS_SECRET_ACCESS_KEY")
		}
		if len(missing) > 0 {
			return errors.NewConfigurationMissingError("AWS Textract", missing...)
		}
	case BackendMistral:
		if c.MistralAPIKey == "" {
			return errors.NewConfigurationMissingError("Mistral", "MISTRAL_API_KEY")
		}
	case BackendTesseract:
		// local engine, nothing to check
	default:
		return errors.NewUnsupportedModelError(string(backend))
	}
	return nil
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsInt64OrDefault gets environment variable as int64 or returns default
func getEnvAsInt64OrDefault(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsBoolOrDefault gets environment variable as bool or returns default
func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

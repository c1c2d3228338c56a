package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultImageModels is the generative model chain used when
// GEMINI_IMAGE_MODELS is unset
const DefaultImageModels = "gemini-3-pro-image-preview,gemini-2.5-flash-image"

type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	ImageFetchTimeout  time.Duration
	EnhanceTimeout     time.Duration
	GenerativeTimeout  time.Duration
	MaxRequestBodySize int64
	MaxBatchSize       int
	EnhanceWorkers     int
	LogLevel           string

	GeminiAPIKey string
	ImageModels  []string

	AzureAccount   string
	AzureKey       string
	AzureContainer string

	LocalImageRoot    string
	AllowedImageHosts []string
}

func (c *Config) ServerAddress() string {
	// Trim any whitespace from host and port
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// GenerativeEnabled reports whether an API key for the image model is set
func (c *Config) GenerativeEnabled() bool {
	return c.GeminiAPIKey != ""
}

// BlobStorageEnabled reports whether Azure credentials are set
func (c *Config) BlobStorageEnabled() bool {
	return c.AzureAccount != "" && c.AzureKey != ""
}

// LoadDotEnv loads variables from the given files without overriding the
// process environment. Missing files are skipped; earlier files win.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

func LoadFromEnv() (*Config, error) {
	if err := LoadDotEnv(".env.local", ".env"); err != nil {
		return nil, err
	}

	// Set defaults
	cfg := &Config{
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvOrDefault("PORT", "8080"),
		RequestTimeout:     parseDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second),
		ImageFetchTimeout:  parseDurationOrDefault("IMAGE_FETCH_TIMEOUT", 15*time.Second),
		EnhanceTimeout:     parseDurationOrDefault("ENHANCE_TIMEOUT", 20*time.Second),
		GenerativeTimeout:  parseDurationOrDefault("GENERATIVE_TIMEOUT", 60*time.Second),
		MaxRequestBodySize: parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 20*1024*1024), // 20MB
		MaxBatchSize:       int(parseIntOrDefault("MAX_BATCH_SIZE", 10)),
		EnhanceWorkers:     int(parseIntOrDefault("ENHANCE_WORKERS", 0)),
		LogLevel:           strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),

		GeminiAPIKey: strings.TrimSpace(os.Getenv("GOOGLE_GEMINI_API_KEY")),
		ImageModels:  splitList(getEnvOrDefault("GEMINI_IMAGE_MODELS", DefaultImageModels)),

		AzureAccount:   strings.TrimSpace(os.Getenv("AZURE_STORAGE_ACCOUNT")),
		AzureKey:       strings.TrimSpace(os.Getenv("AZURE_STORAGE_KEY")),
		AzureContainer: getEnvOrDefault("AZURE_STORAGE_CONTAINER", "images"),

		LocalImageRoot:    strings.TrimSpace(os.Getenv("LOCAL_IMAGE_ROOT")),
		AllowedImageHosts: splitList(os.Getenv("ALLOWED_IMAGE_HOSTS")),
	}

	// Validate port is numeric and in range
	p, err := strconv.Atoi(strings.TrimSpace(cfg.Port))
	if err != nil || p < 1 || p > 65535 {
		return nil, fmt.Errorf("invalid PORT: %q", cfg.Port)
	}
	if cfg.MaxRequestBodySize <= 0 {
		return nil, fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", cfg.MaxRequestBodySize)
	}
	if cfg.MaxBatchSize <= 0 {
		return nil, fmt.Errorf("MAX_BATCH_SIZE must be > 0 (got %d)", cfg.MaxBatchSize)
	}
	if cfg.EnhanceWorkers < 0 {
		return nil, fmt.Errorf("ENHANCE_WORKERS must be >= 0 (got %d)", cfg.EnhanceWorkers)
	}
	if cfg.RequestTimeout <= 0 || cfg.ImageFetchTimeout <= 0 || cfg.EnhanceTimeout <= 0 || cfg.GenerativeTimeout <= 0 {
		return nil, fmt.Errorf("timeouts must be > 0 (got request=%s, fetch=%s, enhance=%s, generative=%s)",
			cfg.RequestTimeout, cfg.ImageFetchTimeout, cfg.EnhanceTimeout, cfg.GenerativeTimeout)
	}
	if cfg.AzureAccount != "" && cfg.AzureKey == "" {
		return nil, fmt.Errorf("AZURE_STORAGE_KEY is required when AZURE_STORAGE_ACCOUNT is set")
	}
	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// splitList splits a comma-separated value, dropping blanks
func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

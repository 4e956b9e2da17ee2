package handler

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"ghlrelay/internal/crm"
	"ghlrelay/internal/extract"
	"ghlrelay/internal/otel"
	"ghlrelay/internal/snapshot"
)

// DefaultPlaceholderPhone stands in for a missing caller number outside
// production.
const DefaultPlaceholderPhone = "+15555550100"

// Config holds all configuration for the application
type Config struct {
	Env  string
	Port string
	Host string

	GHL    crm.Config
	OpenAI extract.Config

	// PlaceholderPhone replaces a missing caller number in non-production.
	PlaceholderPhone string

	Snapshot SnapshotConfig
	Log      LogConfig
	OTel     otel.Config

	MetricsEnabled bool
}

type SnapshotConfig struct {
	Enabled bool
	Dir     string
	Limit   int
}

type LogConfig struct {
	Level string
	Dir   string
}

// LoadConfig loads configuration from environment variables with defaults.
// Outside production a .env file in the working directory is read first.
func LoadConfig() (*Config, error) {
	if environment() != "production" {
		_ = godotenv.Load()
	}

	config := &Config{
		Env:  environment(),
		Port: getEnv("PORT", "8080"),
		Host: getEnv("HOST", "0.0.0.0"),

		GHL: crm.Config{
			APIKey:     getEnv("GHL_API_KEY", ""),
			LocationID: getEnv("GHL_LOCATION_ID", ""),
			BaseURL:    getEnv("GHL_BASE_URL", crm.DefaultBaseURL),
			Timeout:    getEnvAsDuration("GHL_TIMEOUT", 30*time.Second),
		},

		OpenAI: extract.Config{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			BaseURL: getEnv("OPENAI_BASE_URL", ""),
			Model:   getEnv("OPENAI_MODEL", extract.DefaultModel),
			Timeout: getEnvAsDuration("OPENAI_TIMEOUT", 0),
		},

		PlaceholderPhone: getEnv("PLACEHOLDER_PHONE", DefaultPlaceholderPhone),

		Snapshot: SnapshotConfig{
			Enabled: getEnvAsBool("SNAPSHOT_ENABLED", true),
			Dir:     getEnv("SNAPSHOT_DIR", "logs"),
			Limit:   getEnvAsInt("SNAPSHOT_LIMIT", snapshot.DefaultLimit),
		},

		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			Dir:   getEnv("LOG_DIR", ""),
		},

		OTel: otel.Config{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "ghl-relay"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
		},

		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate reports settings the server cannot run with.
func (c *Config) Validate() error {
	if c.IsProduction() && !c.HasGHLConfig() {
		return errors.New("GHL_API_KEY and GHL_LOCATION_ID are required in production")
	}
	return nil
}

func environment() string {
	if env := os.Getenv("APP_ENV"); env != "" {
		return env
	}
	return getEnv("NODE_ENV", "development")
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as integer with a fallback default value
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool gets an environment variable as boolean with a fallback default value
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("45s") or a plain number of seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// HasGHLConfig returns true if the GHL API key and location are configured
func (c *Config) HasGHLConfig() bool {
	return c.GHL.APIKey != "" && c.GHL.LocationID != ""
}

// HasOpenAIConfig returns true if transcript extraction can run
func (c *Config) HasOpenAIConfig() bool {
	return c.OpenAI.APIKey != ""
}

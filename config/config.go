package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the interview assistant service
type Config struct {
	// Server configuration
	Port            string
	TrustedProxies  []string
	ShutdownTimeout time.Duration
	GzipEnabled     bool
	MetricsEnabled  bool

	// OpenAI configuration
	OpenAIAPIKey            string
	OpenAIBaseURL           string
	OpenAIJSONMode          bool
	OpenAIRequestsPerSecond float64

	// Assistant configuration. A non-empty AssistantID pins the assistant;
	// otherwise it is looked up (or created) by AssistantName.
	AssistantID    string
	AssistantName  string
	AssistantModel string
	LookupTimeout  time.Duration
	RunTimeout     time.Duration

	// Rate limiting
	RateLimitMax     int
	RateLimitWindow  time.Duration
	RateLimitMessage string

	// Logging
	LogLevel  string
	LogFormat string
}

// Load loads configuration from environment variables, reading a .env file first if there is one
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warnf("Failed to read .env file: %v", err)
	}

	cfg := &Config{
		Port:            getEnv("PORT", "3000"),
		TrustedProxies:  getStringSliceEnv("TRUSTED_PROXIES", "127.0.0.1,::1"),
		ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
		GzipEnabled:     getBoolEnv("GZIP_ENABLED", true),
		MetricsEnabled:  getBoolEnv("METRICS_ENABLED", true),

		OpenAIAPIKey:            getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:           strings.TrimRight(getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"), "/"),
		OpenAIJSONMode:          getBoolEnv("OPENAI_JSON_MODE", true),
		OpenAIRequestsPerSecond: getFloatEnv("OPENAI_REQUESTS_PER_SECOND", 0),

		AssistantID:    getEnv("ASSISTANT_ID", ""),
		AssistantName:  getEnv("ASSISTANT_NAME", "Interview Assistant"),
		AssistantModel: getEnv("ASSISTANT_MODEL", "gpt-4o"),
		LookupTimeout:  getDurationEnv("ASSISTANT_LOOKUP_TIMEOUT", 30*time.Second),
		RunTimeout:     getDurationEnv("RUN_TIMEOUT", 2*time.Minute),

		RateLimitMax:     getIntEnv("RATE_LIMIT_MAX", 300),
		RateLimitWindow:  getDurationEnv("RATE_LIMIT_WINDOW", 15*time.Minute),
		RateLimitMessage: getEnv("RATE_LIMIT_MESSAGE", "Too many requests, please try again later."),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	// Missing credentials are not fatal; the first provider call reports them.
	if cfg.OpenAIAPIKey == "" {
		log.Warn("OPENAI_API_KEY is not set, provider calls will fail")
	}

	return cfg
}

// DynamicAssistant reports whether the assistant is resolved by name at request time
func (c *Config) DynamicAssistant() bool {
	return c.AssistantID == ""
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getDurationEnv gets a duration environment variable or returns a default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getStringSliceEnv splits a comma-separated environment variable, dropping empty entries
func getStringSliceEnv(key, defaultValue string) []string {
	value := getEnv(key, defaultValue)
	parts := strings.Split(value, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}

package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Database configuration
	DatabaseHost     string
	DatabasePort     string
	DatabaseName     string
	DatabaseUser     string
	DatabasePassword string

	// Redis configuration
	RedisHost     string
	RedisPassword string
	RedisPort     string

	// API server
	APIPort int

	// Policy document (YAML). Empty means built-in defaults.
	PolicyConfigPath string

	// Run the evaluation pipeline immediately on startup.
	RunOnStart bool

	// Webhook URLs notified with the end-of-run summary.
	WebhookURLs []string

	// Feed configuration (optional upstream forecast service)
	Feed FeedConfig
}

// FeedConfig holds the upstream forecast feed connection settings
type FeedConfig struct {
	Enabled bool
	URL     string
	Token   string
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	// Load .env file if exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	feedURL := os.Getenv("FORECAST_FEED_URL")

	return &Config{
		// Database configuration
		DatabaseHost:     getEnvOrDefault("DB_HOST", "localhost"),
		DatabasePort:     getEnvOrDefault("DB_PORT", "5432"),
		DatabaseName:     getEnvOrDefault("DB_NAME", "pricing_lab"),
		DatabaseUser:     getEnvOrDefault("DB_USER", "pricing"),
		DatabasePassword: getEnvOrDefault("DB_PASSWORD", "pricing123"),

		// Redis configuration
		RedisHost:     getEnvOrDefault("REDIS_HOST", "localhost"),
		RedisPort:     getEnvOrDefault("REDIS_PORT", "6379"),
		RedisPassword: getEnvOrDefault("REDIS_PASSWORD", ""),

		APIPort: getEnvInt("API_PORT", 8080),

		PolicyConfigPath: os.Getenv("POLICY_CONFIG_PATH"),

		RunOnStart: getEnvOrDefault("RUN_ON_START", "false") == "true",

		WebhookURLs: splitList(os.Getenv("RUN_WEBHOOK_URLS")),

		Feed: FeedConfig{
			Enabled: feedURL != "",
			URL:     feedURL,
			Token:   os.Getenv("FORECAST_FEED_TOKEN"),
		},
	}
}

// getEnvInt gets environment variable as int or returns default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
		log.Printf("⚠️  Invalid integer for %s, using default %d", key, defaultValue)
	}
	return defaultValue
}

// getEnvOrDefault gets environment variable or returns default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// splitList parses a comma-separated env value into a trimmed slice
func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

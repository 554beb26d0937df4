package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"predictor/database"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL  string
	DatabaseName string

	// HTTP configuration
	HTTPAddr           string
	CORSOrigins        []string
	RateLimitPerSecond float64 // Sustained write requests per caller
	RateLimitBurst     int

	// Users allowed to administer predictions regardless of the identity header
	AdminUserIDs []string

	// NATS configuration
	NATSServers string // NATS server addresses (comma-separated), empty disables forwarding

	// Discord announcements, empty token disables them
	DiscordToken     string
	DiscordChannelID string

	// Deadline sweep
	SweepEnabled  bool
	SweepInterval time.Duration

	LogLevel string

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// If instance is already set (e.g., by tests), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			if os.Getenv("GO_TEST") == "1" || os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// IsAdmin checks if userID is in the configured admin allow-list
func (c *Config) IsAdmin(userID string) bool {
	for _, id := range c.AdminUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// ConfigureLogging applies the log level and formatter for the environment
func (c *Config) ConfigureLogging() {
	if c.Environment == "production" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		log.WithField("level", c.LogLevel).Warn("Unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

// load loads configuration from environment variables
func load() (*Config, error) {
	// A missing .env file is normal outside local development
	_ = godotenv.Load()

	config := &Config{
		// Database
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabaseName: os.Getenv("DATABASE_NAME"),

		// HTTP
		HTTPAddr:           getEnvWithDefault("HTTP_ADDR", ":8080"),
		CORSOrigins:        splitList(getEnvWithDefault("CORS_ORIGINS", "*")),
		RateLimitPerSecond: 5,
		RateLimitBurst:     10,

		AdminUserIDs: splitList(os.Getenv("ADMIN_USER_IDS")),

		// NATS
		NATSServers: os.Getenv("NATS_SERVERS"),

		// Discord
		DiscordToken:     os.Getenv("DISCORD_TOKEN"),
		DiscordChannelID: os.Getenv("DISCORD_CHANNEL_ID"),

		// Sweep
		SweepEnabled:  os.Getenv("SWEEP_ENABLED") != "false",
		SweepInterval: time.Minute,

		LogLevel: getEnvWithDefault("LOG_LEVEL", "info"),

		// Environment
		Environment: os.Getenv("ENVIRONMENT"),
	}

	// Override defaults if environment variables are set
	if interval := os.Getenv("SWEEP_INTERVAL"); interval != "" {
		parsed, err := time.ParseDuration(interval)
		if err != nil {
			return nil, fmt.Errorf("invalid SWEEP_INTERVAL: %w", err)
		}
		config.SweepInterval = parsed
	}
	if rps := os.Getenv("RATE_LIMIT_PER_SECOND"); rps != "" {
		if parsed, err := strconv.ParseFloat(rps, 64); err == nil {
			config.RateLimitPerSecond = parsed
		}
	}
	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		if parsed, err := strconv.Atoi(burst); err == nil {
			config.RateLimitBurst = parsed
		}
	}

	// Set default environment if not specified
	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.Environment != "test" {
		// Validate required configuration
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
		if config.DiscordToken != "" && config.DiscordChannelID == "" {
			return nil, fmt.Errorf("DISCORD_CHANNEL_ID is required when DISCORD_TOKEN is set")
		}
		if config.SweepInterval <= 0 {
			return nil, fmt.Errorf("SWEEP_INTERVAL must be positive")
		}
	}

	return config, nil
}

// getEnvWithDefault returns the environment variable value or a default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
// This should only be called from test files
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
// This should only be called from test files
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		Environment:        "test",
		HTTPAddr:           ":0",
		CORSOrigins:        []string{"*"},
		RateLimitPerSecond: 1000,
		RateLimitBurst:     1000,
		AdminUserIDs:       []string{"admin-1"}, // Default test admin
		SweepEnabled:       false,
		SweepInterval:      time.Minute,
		LogLevel:           "debug",
	}
}

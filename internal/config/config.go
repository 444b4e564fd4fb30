// Package config provides environment configuration for the relay server.
package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// Store backend names accepted by STORE_BACKEND.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreNATS   = "nats"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// Public base URL used to build the callback URL handed to the webhook.
	PublicBaseURL string

	// Lindy webhook settings
	LindyWebhookURL string
	LindySecretKey  string
	RetryAttempts   int
	RetryDelay      time.Duration

	// Callback waiting
	CallbackWaitTimeout  time.Duration
	CallbackPollInterval time.Duration

	// Correlation store
	StoreBackend  string
	StoreFilePath string
	TaskTTL       time.Duration
	CallbackTTL   time.Duration

	// NATS settings (store backend "nats")
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// JWT settings (auth disabled when secret is empty)
	JWTSecret string

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),
		PublicBaseURL:      getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),

		// Lindy
		LindyWebhookURL: getEnv("LINDY_WEBHOOK_URL", ""),
		LindySecretKey:  getEnv("LINDY_SECRET_KEY", ""),
		RetryAttempts:   getIntEnv("LINDY_RETRY_ATTEMPTS", 0),
		RetryDelay:      getDurationEnv("LINDY_RETRY_DELAY", 2*time.Second),

		// Callback waiting
		CallbackWaitTimeout:  getDurationEnv("CALLBACK_WAIT_TIMEOUT", 30*time.Second),
		CallbackPollInterval: getDurationEnv("CALLBACK_POLL_INTERVAL", time.Second),

		// Store
		StoreBackend:  getEnv("STORE_BACKEND", StoreMemory),
		StoreFilePath: getEnv("STORE_FILE_PATH", "data/relay.json"),
		TaskTTL:       getDurationEnv("TASK_TTL", time.Hour),
		CallbackTTL:   getDurationEnv("CALLBACK_TTL", 5*time.Minute),

		// NATS
		NATSURL:      getEnv("NATS_URL", "nats://localhost:4222"),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", ""),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

// Validate checks that required settings are present. The webhook secret has
// no default: it must come from the environment.
func (c *Config) Validate() error {
	if c.LindyWebhookURL == "" {
		return errors.New("LINDY_WEBHOOK_URL is required")
	}
	if c.LindySecretKey == "" {
		return errors.New("LINDY_SECRET_KEY is required")
	}
	switch c.StoreBackend {
	case StoreMemory, StoreFile, StoreNATS:
	default:
		return errors.New("STORE_BACKEND must be one of memory, file, nats")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

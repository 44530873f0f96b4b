package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port     string
	LogLevel string

	// Sessions
	SessionTTL             time.Duration
	MaxSessions            int
	SessionCleanupInterval time.Duration

	// Rate limiting for widget mutations
	RateLimitPerMinute int

	// AMQP (empty URL disables publishing)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Azure Queue Storage, used for events when AMQP is not configured
	AzureQueueServiceURL string
	AzureQueueName       string

	// Event publisher
	EventBufferSize int
}

func Load() *Config {
	cfg := &Config{
		Port:     getEnv("PORT", "8081"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		SessionTTL:             getEnvDuration("SESSION_TTL", 30*time.Minute),
		MaxSessions:            getEnvInt("MAX_SESSIONS", 1000),
		SessionCleanupInterval: getEnvDuration("SESSION_CLEANUP_INTERVAL", time.Minute),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "expense_calculator"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "calculator_events"),

		AzureQueueServiceURL: getEnv("AZURE_QUEUE_SERVICE_URL", ""),
		AzureQueueName:       getEnv("AZURE_QUEUE_NAME", "calculator-events"),

		EventBufferSize: getEnvInt("EVENT_BUFFER_SIZE", 256),
	}

	return cfg
}

// AzureQueueEnabled reports whether events should go to Azure Queue Storage.
// AMQP takes precedence when both are configured.
func (c *Config) AzureQueueEnabled() bool {
	return !c.AMQPEnabled() && c.AzureQueueServiceURL != ""
}

// AMQPEnabled reports whether events should go to a broker.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validLevels := []string{"debug", "info", "warn", "warning", "error"}
	isValidLevel := false
	for _, level := range validLevels {
		if strings.EqualFold(c.LogLevel, level) {
			isValidLevel = true
			break
		}
	}
	if !isValidLevel {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLevels))
	}

	// Validate sessions
	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	} else if c.SessionTTL > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at most 24 hours", c.SessionTTL))
	}
	if c.MaxSessions < 1 {
		errors = append(errors, fmt.Sprintf("invalid max sessions %d: must be at least 1", c.MaxSessions))
	}
	if c.SessionCleanupInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid session cleanup interval %v: must be at least 1 second", c.SessionCleanupInterval))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
	}

	// Validate AMQP exchange and queue names if AMQP is configured
	if c.AMQPURL != "" {
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.EventBufferSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid event buffer size %d: must be at least 1", c.EventBufferSize))
	} else if c.EventBufferSize > 65536 {
		errors = append(errors, fmt.Sprintf("invalid event buffer size %d: must be at most 65536", c.EventBufferSize))
	}

	if c.AzureQueueServiceURL != "" {
		if parsedURL, err := url.Parse(c.AzureQueueServiceURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid Azure queue service URL '%s': %v", c.AzureQueueServiceURL, err))
		} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid Azure queue service URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
		}
		if c.AzureQueueName == "" {
			errors = append(errors, "Azure queue name cannot be empty when the queue service URL is provided")
		}
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// Package cli wires configuration, logging and shutdown for the
// expense-calculator commands.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"expensecalc/internal/config"
	"expensecalc/internal/log"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger at the configured level and makes it
// the slog default.
func SetupLogger(level string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(level)
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration from the environment and
// validates it. portOverride replaces PORT when non-empty.
func LoadAndValidateConfig(portOverride string) (*config.Config, error) {
	cfg := config.Load()
	if portOverride != "" {
		cfg.Port = portOverride
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ShutdownContext returns a context cancelled on SIGINT or SIGTERM.
func ShutdownContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// bootstrap runs the steps every command shares.
func bootstrap(portOverride string) (*config.Config, *log.Logger, error) {
	LoadEnvFile()
	cfg, err := LoadAndValidateConfig(portOverride)
	if err != nil {
		// The configured level is unknown here; report at the default one.
		SetupLogger("info").Error("Configuration validation failed", log.FieldError, err)
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, SetupLogger(cfg.LogLevel), nil
}

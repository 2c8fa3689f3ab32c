// Package cli holds the startup steps shared by cmd/spese and cmd/spese-worker.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"expensewizard/internal/config"
	"expensewizard/internal/log"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadConfig reads the environment (after the optional .env file) and builds
// the process logger from it. Validation is left to the caller since the
// server and the worker need different settings.
func LoadConfig(component string) (*config.Config, *log.Logger, error) {
	LoadEnvFile()

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	logger, err := NewLogger(cfg, component)
	if err != nil {
		return nil, nil, err
	}
	log.SetDefault(logger)
	return cfg, logger, nil
}

// NewLogger builds a logger from LOG_LEVEL and LOG_FORMAT.
func NewLogger(cfg *config.Config, component string) (*log.Logger, error) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	lc := log.DefaultConfig()
	lc.Level = level
	lc.Format = cfg.LogFormat
	lc.Component = component
	return log.New(lc), nil
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// Fatal logs err and exits with status 1.
func Fatal(logger *log.Logger, msg string, err error) {
	logger.Error(msg, log.FieldError, err)
	os.Exit(1)
}

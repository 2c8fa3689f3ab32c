package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensewizard/internal/config"
	"expensewizard/internal/log"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(&config.Config{LogLevel: "debug", LogFormat: "json"}, log.ComponentWorker)
	require.NoError(t, err)
	assert.Equal(t, log.ComponentWorker, logger.Component())

	_, err = NewLogger(&config.Config{LogLevel: "chatty"}, log.ComponentApp)
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("PORT", "8181")

	cfg, logger, err := LoadConfig(log.ComponentApp)
	require.NoError(t, err)
	assert.Equal(t, "8181", cfg.Port)
	assert.Equal(t, log.ComponentApp, logger.Component())
}

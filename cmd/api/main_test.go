package main

import (
	"testing"

	"github.com/docuchat/backend/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	t.Run("production json logger", func(t *testing.T) {
		cfg := &config.Config{
			Environment: "production",
			Observability: config.ObservabilityConfig{
				LogLevel:  "info",
				LogFormat: "json",
			},
		}

		logger, err := newLogger(cfg)
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
		assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("development text logger honors level", func(t *testing.T) {
		cfg := &config.Config{
			Environment: "development",
			Observability: config.ObservabilityConfig{
				LogLevel:  "debug",
				LogFormat: "text",
			},
		}

		logger, err := newLogger(cfg)
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("invalid level", func(t *testing.T) {
		cfg := &config.Config{
			Observability: config.ObservabilityConfig{
				LogLevel: "verbose",
			},
		}

		_, err := newLogger(cfg)
		assert.Error(t, err)
	})
}

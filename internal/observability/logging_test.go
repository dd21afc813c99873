package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/roomlink/internal/config"
)

func TestNewLogger_JSON(t *testing.T) {
	logger, err := NewLogger(config.LoggingConfig{Level: "info", Format: "json"}, "bot")
	require.NoError(t, err)
	assert.NotNil(t, logger)
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestNewLogger_Console(t *testing.T) {
	logger, err := NewLogger(config.LoggingConfig{Level: "debug", Format: "console"}, "")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, err := NewLogger(config.LoggingConfig{Level: "trace", Format: "json"}, "bot")
	assert.Error(t, err)
}

func TestNewLogger_InvalidFormat(t *testing.T) {
	_, err := NewLogger(config.LoggingConfig{Level: "info", Format: "xml"}, "bot")
	assert.Error(t, err)
}

func TestNewLogger_AllLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		logger, err := NewLogger(config.LoggingConfig{Level: level, Format: "json"}, "bot")
		require.NoError(t, err, "level %q should be valid", level)
		want, _ := zapcore.ParseLevel(level)
		assert.True(t, logger.Core().Enabled(want))
	}
}

func TestFlush_ObserverCore(t *testing.T) {
	core, _ := observer.New(zapcore.InfoLevel)
	assert.NoError(t, Flush(zap.New(core)))
}

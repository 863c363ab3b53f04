package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewDefaults(t *testing.T) {
	logger, err := New("", "")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))
	assert.True(t, logger.Core().Enabled(zap.WarnLevel))
}

func TestNewLevels(t *testing.T) {
	for _, format := range []string{"console", "json"} {
		logger, err := New("debug", format)
		require.NoError(t, err, format)
		assert.True(t, logger.Core().Enabled(zap.DebugLevel), format)
	}
}

func TestNewRejectsInvalidInput(t *testing.T) {
	_, err := New("loud", "console")
	assert.ErrorContains(t, err, "invalid log level")

	_, err = New("info", "xml")
	assert.ErrorContains(t, err, "invalid log format")
}


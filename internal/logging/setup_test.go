package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetupLogger_LevelFiltering(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := SetupLogger("warn", &buf)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	out := buf.String()
	assert.NotContains(t, out, "debug message")
	assert.NotContains(t, out, "info message")
	assert.Contains(t, out, "warn message")
	assert.Contains(t, out, "error message")
}

func TestSetupLogger_DebugLevels(t *testing.T) {
	t.Parallel()

	for _, level := range []string{"debug", "trace"} {
		var buf bytes.Buffer
		logger := SetupLogger(level, &buf)
		logger.Debug("visible")
		assert.Contains(t, buf.String(), "visible", "level %q", level)
	}
}

func TestSetupLogger_UnknownLevelDefaultsToInfo(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := SetupLogger("bogus", &buf)
	logger.Debug("hidden")
	logger.Info("shown")

	out := buf.String()
	assert.False(t, strings.Contains(out, "hidden"))
	assert.Contains(t, out, "shown")
}

func TestSetupHandler_NilWriterDoesNotPanic(t *testing.T) {
	t.Parallel()
	assert.NotNil(t, SetupHandler("info", nil))
}

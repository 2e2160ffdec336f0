// Package logging configures the host-wide slog handler.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// SetupHandler configures a text slog handler with the provided writer and
// log level. The "trace" level enables caller reporting on top of debug.
func SetupHandler(logLevel string, writer io.Writer) slog.Handler {
	if writer == nil {
		writer = os.Stderr
	}

	reportCaller := false
	lvl := log.InfoLevel
	switch strings.ToLower(logLevel) {
	case "trace":
		reportCaller = true
		lvl = log.DebugLevel
	case "debug":
		lvl = log.DebugLevel
	case "info":
		lvl = log.InfoLevel
	case "warn", "warning":
		lvl = log.WarnLevel
	case "error":
		lvl = log.ErrorLevel
	}

	return log.NewWithOptions(writer, log.Options{
		ReportTimestamp: true,
		ReportCaller:    reportCaller,
		Level:           lvl,
	})
}

// SetupLogger returns a *slog.Logger backed by SetupHandler.
func SetupLogger(logLevel string, writer io.Writer) *slog.Logger {
	return slog.New(SetupHandler(logLevel, writer))
}

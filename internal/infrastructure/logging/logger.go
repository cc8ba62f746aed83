// Package logging provides structured logging for Fusion Bridge Core.
//
// It wraps log/slog with configuration-driven setup: log level, output
// format (JSON or text) and destination are all controlled by the
// logging section of the configuration file.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fusionbridge/fusion-bridge-core/internal/infrastructure/config"
)

// Logger wraps slog.Logger to provide application-specific logging.
type Logger struct {
	*slog.Logger
}

// New creates a configured Logger from the logging configuration.
//
// Parameters:
//   - cfg: logging configuration (level, format, output)
//   - version: application version, attached to every log record
//
// Returns an error when the output destination cannot be opened.
func New(cfg config.LoggingConfig, version string) (*Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	output, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(output, opts)
	case "json", "":
		handler = slog.NewJSONHandler(output, opts)
	default:
		return nil, fmt.Errorf("logging: unknown format %q", cfg.Format)
	}

	logger := slog.New(handler).With(
		slog.String("service", "fusionbridge"),
		slog.String("version", version),
	)

	return &Logger{Logger: logger}, nil
}

// Default returns a Logger with sensible defaults for use before
// configuration is loaded (JSON to stdout at info level).
func Default() *Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return &Logger{Logger: slog.New(handler).With(slog.String("service", "fusionbridge"))}
}

// With returns a Logger that includes the given attributes on every record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("logging: unknown level %q", level)
	}
}

func openOutput(output string) (io.Writer, error) {
	switch output {
	case "stdout", "":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("logging: opening log file: %w", err)
		}
		return f, nil
	}
}

package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/gray-logic-lightnode/internal/infrastructure/config"
)

// ServiceName is attached to every record produced by New.
const ServiceName = "lightnode"

// Logger wraps slog.Logger with light node defaults.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger
}

// New creates a Logger from the logging section of the configuration.
//
// Records carry the service name, the build version, and the device ID
// when one is supplied, so output from several nodes can be merged.
//
// Parameters:
//   - cfg: Logging configuration from config.yaml
//   - version: Application version for default field
//   - deviceID: Node identity; omitted from records when empty
func New(cfg config.LoggingConfig, version, deviceID string) *Logger {
	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}
	return newWithWriter(output, cfg, version, deviceID)
}

func newWithWriter(w io.Writer, cfg config.LoggingConfig, version, deviceID string) *Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	attrs := []slog.Attr{
		slog.String("service", ServiceName),
		slog.String("version", version),
	}
	if deviceID != "" {
		attrs = append(attrs, slog.String("device", deviceID))
	}

	return &Logger{
		Logger: slog.New(handler.WithAttrs(attrs)),
	}
}

// parseLevel converts a string log level to slog.Level.
// Defaults to info if unrecognised.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a new Logger with additional default attributes.
//
// Example:
//
//	linkLog := logger.With("component", "link")
//	linkLog.Info("associated") // Includes component=link
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
	}
}

// Component is shorthand for With("component", name).
func (l *Logger) Component(name string) *Logger {
	return l.With("component", name)
}

// Default creates a logger for use before configuration is loaded.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev", "")
}

// Discard returns a logger that drops every record. Used by tests and by
// components constructed without a logger.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

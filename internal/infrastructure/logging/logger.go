package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/gray-logic-device/internal/infrastructure/config"
)

// ErrInvalidConfig is returned by Init when the logging section cannot be honoured.
var ErrInvalidConfig = errors.New("logging: invalid configuration")

// Logger wraps slog.Logger with device client defaults.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger
}

// Init is the trace-initialisation step of device startup. Unlike New it
// rejects unknown levels, formats and outputs so a misconfigured device
// stops before touching storage.
//
// Parameters:
//   - cfg: Logging section of config.yaml
//   - version: Application version for default field
//
// Returns:
//   - *Logger: Configured logger ready for use
//   - error: ErrInvalidConfig wrapped with the offending field
func Init(cfg config.LoggingConfig, version string) (*Logger, error) {
	if _, ok := parseOutput(cfg.Output); !ok {
		return nil, fmt.Errorf("%w: output %q", ErrInvalidConfig, cfg.Output)
	}
	if _, ok := levels[strings.ToLower(cfg.Level)]; !ok && cfg.Level != "" {
		return nil, fmt.Errorf("%w: level %q", ErrInvalidConfig, cfg.Level)
	}
	switch strings.ToLower(cfg.Format) {
	case "", "json", "text":
	default:
		return nil, fmt.Errorf("%w: format %q", ErrInvalidConfig, cfg.Format)
	}
	return New(cfg, version), nil
}

// New creates a new Logger with the specified configuration.
// Unknown values fall back to JSON on stdout at info level.
//
// Parameters:
//   - cfg: Logging section of config.yaml
//   - version: Application version for default field
//
// Returns:
//   - *Logger: Configured logger ready for use
func New(cfg config.LoggingConfig, version string) *Logger {
	output, _ := parseOutput(cfg.Output)
	return newWithWriter(output, cfg, version)
}

// newWithWriter builds the handler chain on an explicit writer.
func newWithWriter(output io.Writer, cfg config.LoggingConfig, version string) *Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewJSONHandler(output, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "graylogic-device"),
		slog.String("version", version),
	})

	return &Logger{
		Logger: slog.New(handler),
	}
}

// parseOutput maps the output setting to a writer. Empty means stdout.
func parseOutput(output string) (io.Writer, bool) {
	switch strings.ToLower(output) {
	case "", "stdout":
		return os.Stdout, true
	case "stderr":
		return os.Stderr, true
	default:
		return os.Stdout, false
	}
}

var levels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// parseLevel converts a string log level to slog.Level.
// Defaults to info if unrecognised.
func parseLevel(level string) slog.Level {
	if l, ok := levels[strings.ToLower(level)]; ok {
		return l
	}
	return slog.LevelInfo
}

// With returns a new Logger with additional default attributes.
//
// Example:
//
//	dmLogger := logger.With("component", "devmgmt")
//	dmLogger.Info("registered") // Includes component=devmgmt
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
	}
}

// Default creates a default logger for use before configuration is loaded.
// It writes JSON to stdout at info level.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}

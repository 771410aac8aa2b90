package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"
)

var defaultLogger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

// LogLevel represents log levels
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Config holds logger configuration
type Config struct {
	Level  LogLevel `toml:"level" validate:"required,oneof=debug info warn error"`
	Format string   `toml:"format" validate:"required,oneof=text json"` // "text" or "json"
}

// DefaultConfig is used when no logging.toml is present.
func DefaultConfig() Config {
	return Config{Level: LevelInfo, Format: "text"}
}

// Validate validates the logger configuration
func (c *Config) Validate() error {
	return validator.New(validator.WithRequiredStructEnabled()).Struct(c)
}

// Init initializes the global logger with the given configuration
func Init(config Config) {
	InitWriter(config, os.Stdout)
}

// InitWriter is Init with an explicit destination, used by tests and the
// CLI when stdout is reserved for command output.
func InitWriter(config Config, w io.Writer) {
	if err := config.Validate(); err != nil {
		slog.Error("Invalid logger configuration", "error", err)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level: parseLevel(config.Level),
	}

	switch config.Format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

func parseLevel(level LogLevel) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Debug logs at debug level
func Debug(msg string, args ...any) {
	defaultLogger.Debug(msg, args...)
}

// Info logs at info level
func Info(msg string, args ...any) {
	defaultLogger.Info(msg, args...)
}

// Warn logs at warn level
func Warn(msg string, args ...any) {
	defaultLogger.Warn(msg, args...)
}

// Error logs at error level
func Error(msg string, args ...any) {
	defaultLogger.Error(msg, args...)
}

// With returns a logger with additional context
func With(args ...any) *slog.Logger {
	return defaultLogger.With(args...)
}

// Fatal logs an error and exits the program
func Fatal(msg string, args ...any) {
	defaultLogger.Error(msg, args...)
	os.Exit(1)
}

// Lora creates a logger with LoRA file context
func Lora(path string) *slog.Logger {
	return With("lora", path)
}

// Node creates a logger with node context
func Node(name string) *slog.Logger {
	return With("node", name)
}

// Request creates a logger with HTTP request context
func Request(id, method, path string) *slog.Logger {
	return With("request_id", id, "method", method, "path", path)
}

// Service creates a logger with service context
func Service(service string) *slog.Logger {
	return With("service", service)
}

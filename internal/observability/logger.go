package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LoggingConfig contains logger configuration options.
type LoggingConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error, fatal, panic).
	Level string

	// Format is the output format (json, console, pretty).
	Format string

	// Output is the output destination (stdout, stderr).
	Output string

	// AddSource adds source file and line number to log entries.
	AddSource bool

	// TimeFormat is the time format for timestamps.
	TimeFormat string
}

// DefaultLoggingConfig returns a LoggingConfig with sensible defaults.
// The CLI writes results to stdout, so logs go to stderr.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:      "info",
		Format:     "console",
		Output:     "stderr",
		AddSource:  false,
		TimeFormat: time.RFC3339,
	}
}

// NewLogger creates a new zerolog logger based on configuration.
func NewLogger(cfg LoggingConfig) zerolog.Logger {
	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stdout":
		output = os.Stdout
	default:
		output = os.Stderr
	}
	return NewLoggerTo(output, cfg)
}

// NewLoggerTo creates a logger writing to w. cfg.Output is ignored.
func NewLoggerTo(w io.Writer, cfg LoggingConfig) zerolog.Logger {
	if cfg.TimeFormat != "" {
		zerolog.TimeFieldFormat = cfg.TimeFormat
	} else {
		zerolog.TimeFieldFormat = time.RFC3339
	}

	switch strings.ToLower(cfg.Format) {
	case "console", "pretty":
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: zerolog.TimeFieldFormat,
		}
	}

	ctx := zerolog.New(w).With().Timestamp().Str("service", "paperhub")
	if cfg.AddSource {
		ctx = ctx.Caller()
	}

	return ctx.Logger().Level(parseLevel(cfg.Level))
}

// levelAliases maps accepted spellings onto zerolog level names.
var levelAliases = map[string]string{
	"warning": "warn",
	"off":     "disabled",
}

func normalizeLevel(level string) string {
	level = strings.ToLower(strings.TrimSpace(level))
	if alias, ok := levelAliases[level]; ok {
		return alias
	}
	return level
}

// parseLevel falls back to info for empty or unknown levels.
func parseLevel(level string) zerolog.Level {
	l, err := zerolog.ParseLevel(normalizeLevel(level))
	if err != nil || l == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return l
}

// ValidLevel reports whether level names a known log level.
func ValidLevel(level string) bool {
	name := normalizeLevel(level)
	if name == "" {
		return false
	}
	l, err := zerolog.ParseLevel(name)
	return err == nil && l != zerolog.NoLevel && l.String() == name
}

// WithPluginContext adds the plugin ID to a logger.
func WithPluginContext(logger zerolog.Logger, pluginID string) zerolog.Logger {
	return logger.With().Str("plugin", pluginID).Logger()
}

// WithQueryContext adds the native query a plugin sent to its source.
func WithQueryContext(logger zerolog.Logger, query string) zerolog.Logger {
	return logger.With().Str("query", query).Logger()
}

// WithIdentifierContext adds identifier fields to a logger.
func WithIdentifierContext(logger zerolog.Logger, identifierType, identifier string) zerolog.Logger {
	return logger.With().
		Str("identifier_type", identifierType).
		Str("identifier", identifier).
		Logger()
}

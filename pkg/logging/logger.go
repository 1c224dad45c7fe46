// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelTrace also logs request bodies.
	LevelTrace LogLevel = "trace"

	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"

	// LevelDisabled turns logging off.
	LevelDisabled LogLevel = "disabled"
)

// Component names used in the "component" field.
const (
	ComponentClient     = "mwapi-client"
	ComponentPagination = "pagination"
	ComponentThrottle   = "throttle"
	ComponentCLI        = "mwquery"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level. Unknown levels map to info.
func parseLevel(level LogLevel) zerolog.Level {
	name := strings.ToLower(strings.TrimSpace(string(level)))
	if name == "warning" {
		name = "warn"
	}
	if name == "" {
		return zerolog.InfoLevel
	}
	parsed, err := zerolog.ParseLevel(name)
	if err != nil || parsed == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return parsed
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// WithRequest returns a child of logger tagged with one logical API call.
func WithRequest(logger zerolog.Logger, requestID, action string, write bool) zerolog.Logger {
	return logger.With().
		Str("request_id", requestID).
		Str("action", action).
		Bool("write", write).
		Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Request flow (endpoint, encoding mode, body size)
//   - Continuation keys followed
//   - Lag state changes
//
// Info: Normal operation events
//   - Requests that succeeded after retries
//   - Waits caused by a shared lag window
//   - CLI startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Transport retries and their backoff
//   - Invalid JSON responses (request sent again)
//   - maxlag responses (sleep, then request sent again)
//   - Deprecated query-continue use
//   - Lag store unavailable
//
// Error: Error conditions requiring attention
//   - Backoff ceiling reached
//   - Failed write requests
//   - API disabled on the site
//   - Configuration errors
//
// Context Fields:
//   - request_id: One logical API call, stable across its retries
//   - action: API action parameter
//   - write: Whether the call mutates state
//   - error_class: Transport error classification (client, server, network)
//   - attempt: Exchange attempt number
//   - backoff: Wait before the next attempt
//   - lag: Server lag reported by maxlag
//   - code, info: API error object fields
//   - protocol, page, key: Continuation progress

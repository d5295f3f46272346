// Package logging configures structured zerolog logging for the agent and
// its host binaries.
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
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Component names used in the "component" field.
const (
	ComponentAgent       = "agent"
	ComponentTierManager = "tier-manager"
	ComponentBadger      = "badger"
	ComponentNetwork     = "network"
	ComponentNotify      = "notify"
	ComponentCenter      = "notify-center"
	ComponentWindows     = "windows"
	ComponentPush        = "push-subscriber"
	ComponentProxy       = "agent-proxy"
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

// ConfigFor builds a configuration from plain settings such as LOG_LEVEL
// and LOG_PRETTY.
func ConfigFor(level string, pretty bool) Config {
	cfg := DefaultConfig()
	cfg.Level = LogLevel(strings.ToLower(strings.TrimSpace(level)))
	cfg.Pretty = pretty
	return cfg
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

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Per-request detail
//   - Tier hits, misses and stored responses (tier, key)
//   - Classification and answering source of each request
//   - Network failures that a fallback absorbed
//   - Unparseable push payloads
//
// Info: Lifecycle and notification events
//   - Provisioning start and completion
//   - Stale tier deletion, activation
//   - Alerts shown, windows opened
//   - Server startup/shutdown
//
// Warn: Degraded but serving
//   - Tier write failures and quota exhaustion (response still returned)
//   - Tier read failures (treated as a miss)
//   - Push channel disconnects
//
// Error: Conditions requiring attention
//   - Provisioning failures
//   - Recovered interception panics
//   - Alerts that could not be shown
//   - Configuration errors
//
// Context Fields:
//   - component: emitting component
//   - tier: tier name ({namespace}-{tier}-{version})
//   - key: normalized entry key ("METHOD url")
//   - class: request class (live-data, static-asset, navigation, other)
//   - source: answering source (tier, network, fallback, passthrough)
//   - status: response status code
//   - alert_id: notification identifier
//   - duration: operation duration

// Package logging sets up the zerolog logger shared by the OpenML client
// packages and the openml command.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel is the name of a minimum log level.
type LogLevel string

const (
	// LevelDebug shows cache lookups, request attempts and fallbacks.
	LevelDebug LogLevel = "debug"

	// LevelInfo is the default.
	LevelInfo LogLevel = "info"

	// LevelWarn shows retries and cache problems.
	LevelWarn LogLevel = "warn"

	// LevelError shows failed requests only.
	LevelError LogLevel = "error"
)

// Config controls Setup.
type Config struct {
	Level LogLevel

	// Pretty writes console lines instead of JSON. Colours are used only
	// when Output is a terminal.
	Pretty bool

	// Output receives the log entries; os.Stderr by default.
	Output io.Writer
}

// DefaultConfig returns JSON logging at info level to stderr.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Output: os.Stderr,
	}
}

// Setup installs a timestamped logger built from cfg as the global zerolog
// logger and returns it. Components derive their loggers from it through
// NewLogger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, NoColor: !isTerminal(out)}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

// isTerminal reports whether w writes to a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// ParseLevel validates a level name given on the command line or in the
// environment.
func ParseLevel(s string) (LogLevel, error) {
	switch level := LogLevel(strings.ToLower(strings.TrimSpace(s))); level {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		return level, nil
	case "warning":
		return LevelWarn, nil
	default:
		return "", fmt.Errorf("unknown log level %q (want debug, info, warn or error)", s)
	}
}

// parseLevel maps a level name to zerolog; unknown names mean info.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger returns a child of the global logger tagged with component.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// What goes where:
//
// Debug: cache hits, misses and expiry; every request attempt; operations
// served by the fallback API version; pagination progress.
//
// Info: backend built, resources published, proxy server start and stop.
//
// Warn: retries, cache read or write failures (the request goes on without
// the cache), malformed entries, cached bodies failing their checksum.
//
// Error: requests that failed after all retries, unusable configuration.
//
// Field names:
//   - component: package or command emitting the entry
//   - method, url: request method and URL, api_key redacted
//   - status, error_class: HTTP status and client/server/network/timeout
//   - attempt, attempts, exhausted: retry progress
//   - key, ttl, stored_at: cache entry
//   - api_version, fallback_api_version: configured API versions
//   - resource, operation, from, to: fallback routing

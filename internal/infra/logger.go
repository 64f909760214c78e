package infra

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger constructs a zerolog.Logger with sane defaults for the service.
// An explicit level (LOG_LEVEL) overrides the environment default.
func NewLogger(appEnv string, level ...string) zerolog.Logger {
	lvl := zerolog.InfoLevel
	if appEnv == "development" {
		lvl = zerolog.DebugLevel
	}
	if len(level) > 0 && level[0] != "" {
		if parsed, err := zerolog.ParseLevel(level[0]); err == nil {
			lvl = parsed
		}
	}

	var out io.Writer = os.Stdout
	if appEnv == "development" || appEnv == "cli" {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).
		Level(lvl).
		With().
		Timestamp().
		Str("service", "rodinstudio").
		Logger()
}

// NopLogger discards everything; used by clients constructed without a logger.
func NopLogger() *Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// Logger aliases the zerolog.Logger so callers outside the infra package can
// depend on the logging contract without importing the third-party module
// directly.
type Logger = zerolog.Logger

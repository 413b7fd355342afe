// Package logging wraps zerolog the way the rest of the engine expects:
// one process-wide logger, component-scoped children created with .With().
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Log is the process-wide logger. Initialize configures it; until then it
// is the zero zerolog.Logger, which has no writer and emits nothing.
var Log zerolog.Logger

// Initialize sets the global log level and output format.
func Initialize(level string, pretty bool) {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	} else {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	}

	Log = log.With().Str("service", "gauss").Logger()
	Log.Info().Str("level", logLevel.String()).Bool("pretty", pretty).Msg("logger initialized")
}

// Component returns a child logger scoped to a named engine component
// (e.g. "topic", "pluginhost", "source:tcp-9001").
func Component(name string) zerolog.Logger {
	return Log.With().Str("component", name).Logger()
}

// WithErrorKind adds the plugin error-kind field used consistently across
// every log line that reports a plugin-boundary failure.
func WithErrorKind(l zerolog.Logger, kind string) zerolog.Logger {
	return l.With().Str("error_kind", kind).Logger()
}

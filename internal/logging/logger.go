// Package logging configures the zerolog root logger for the service.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/SCPrime/ai-Trader-sub001/config"
)

// New builds the root logger from config. Console output is for local runs;
// deployments log JSON lines to stdout.
func New(cfg config.LoggingConfig) zerolog.Logger {
	var out io.Writer = os.Stdout
	if cfg.Console {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	return zerolog.New(out).
		Level(parseLevel(cfg.Level)).
		With().
		Timestamp().
		Logger()
}

// WithComponent derives a logger tagged with a component name.
func WithComponent(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
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

// Package logging configures the process wide zerolog logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ServiceName is stamped on every log line
const ServiceName = "minisitedb"

// Init sets the global logger. Development gets console output, everything
// else gets JSON lines.
func Init(env, level string) zerolog.Logger {
	var w io.Writer = os.Stdout
	if env == "development" || env == "dev" {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	zerolog.TimeFieldFormat = time.RFC3339
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	log.Logger = zerolog.New(w).With().
		Timestamp().
		Str("service", ServiceName).
		Logger()
	return log.Logger
}

// WithActor returns a child logger carrying the acting user id
func WithActor(l zerolog.Logger, actorID string) zerolog.Logger {
	return l.With().Str("actor", actorID).Logger()
}

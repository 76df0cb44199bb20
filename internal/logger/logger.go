// Package logger holds the process-wide zerolog logger and its
// per-component children.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ServiceName tags every record so shipped logs can be told apart from
// other services on the same host
const ServiceName = "airwave"

// Log is the global logger instance
var Log zerolog.Logger

// Options selects where and how the global logger writes
type Options struct {
	// Level is debug, info, warn or error; anything else means info
	Level string
	// Pretty writes human-readable console lines instead of JSON
	Pretty bool
	// Output defaults to stdout
	Output io.Writer
}

// Init replaces the global logger
func Init(opts Options) {
	zerolog.TimeFieldFormat = time.RFC3339

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	zerolog.SetGlobalLevel(parseLogLevel(opts.Level))

	Log = zerolog.New(out).
		With().
		Timestamp().
		Str("service", ServiceName).
		Caller().
		Logger()
}

func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// For returns a child of the global logger tagged with a component name,
// e.g. "playout", "streaming" or "http". Call it after Init; the child
// does not follow a later Init.
func For(component string) zerolog.Logger {
	return Log.With().Str("component", component).Logger()
}

// ForChannel is For with the channel's id attached
func ForChannel(component, channelID string) zerolog.Logger {
	return Log.With().Str("component", component).Str("channel_id", channelID).Logger()
}

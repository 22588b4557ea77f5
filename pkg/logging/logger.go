package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options configures a Logger.
type Options struct {
	Level   string    // debug, info, warn or error. Defaults to info.
	Output  io.Writer // Output defaults to os.Stderr.
	Console io.Writer // Console, when set, also receives human readable output.
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
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

// New creates a JSON logger writing to opt.Output, optionally teed to a console writer.
func New(opt Options) zerolog.Logger {
	out := opt.Output
	if out == nil {
		out = os.Stderr
	}
	if opt.Console != nil {
		out = zerolog.MultiLevelWriter(out, zerolog.ConsoleWriter{Out: opt.Console, TimeFormat: time.TimeOnly})
	}
	return zerolog.New(out).Level(ParseLevel(opt.Level)).With().Timestamp().Logger()
}

package util

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogOptions controls the writers and level of the structured logger.
type LogOptions struct {
	Verbose bool
	Quiet   bool
	JSON    bool      // emit JSON lines on the console instead of human-readable text
	NoColor bool      // disable ANSI colors in console output
	File    string    // rotated JSON log file; empty disables file logging
	Out     io.Writer // console destination, defaults to os.Stderr
}

// Level returns the minimum level implied by the verbosity flags.
// Quiet wins over verbose.
func (o LogOptions) Level() zerolog.Level {
	switch {
	case o.Quiet:
		return zerolog.ErrorLevel
	case o.Verbose:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger builds the logger handed to every component.
// The returned closer releases the log file, if one was configured.
func NewLogger(opts LogOptions) (zerolog.Logger, io.Closer) {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	console := out
	if !opts.JSON {
		noColor := opts.NoColor
		if f, ok := out.(*os.File); ok && !IsTerminal(f.Fd()) {
			noColor = true
		}
		console = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05", NoColor: noColor}
	}

	writers := []io.Writer{console}
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		rotated := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		writers = append(writers, rotated)
		closer = rotated
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(opts.Level()).
		With().
		Timestamp().
		Logger()
	return logger, closer
}

// NopLogger returns a disabled logger for optional wiring and tests.
func NopLogger() zerolog.Logger {
	return zerolog.Nop()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

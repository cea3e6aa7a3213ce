// Package logger provides structured logging with file and console output.
package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog for structured logging.
type Logger struct {
	zerolog.Logger
}

// New creates a new logger with the specified level and optional file output.
// Console output goes to stderr so stdout stays free for exported data.
func New(level string, logFile string) (*Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	writers := []io.Writer{
		zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"},
	}

	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
			return nil, err
		}

		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, err
		}
		writers = append(writers, file)
	}

	return newLogger(zerolog.MultiLevelWriter(writers...), lvl), nil
}

// NewWriter creates a logger emitting JSON lines to w.
func NewWriter(w io.Writer, level zerolog.Level) *Logger {
	return newLogger(w, level)
}

func newLogger(w io.Writer, lvl zerolog.Level) *Logger {
	logger := zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Caller().
		Logger()

	return &Logger{logger}
}

// Global is the global logger instance for convenience.
var Global *Logger

// Init initializes the global logger.
func Init(level string, logFile string) error {
	l, err := New(level, logFile)
	if err != nil {
		return err
	}
	Global = l
	return nil
}

// Get returns the global logger.
// Returns a no-op logger if not initialized.
func Get() *Logger {
	if Global == nil {
		noop := zerolog.Nop()
		return &Logger{noop}
	}
	return Global
}

// Fatal logs err with the global logger, or stderr when there is none,
// and exits.
func Fatal(msg string, err error) {
	if Global != nil {
		Global.Error().Err(err).Msg(msg)
	} else {
		_, _ = os.Stderr.WriteString(msg + ": " + err.Error() + "\n")
	}
	os.Exit(1)
}

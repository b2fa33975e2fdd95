// Package logger provides the process-wide zerolog logger used by all
// prompteval packages.
package logger

import (
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	globalLogger zerolog.Logger
	once         sync.Once
)

// Get returns the global logger, initializing it with console output at
// info level on first use.
func Get() zerolog.Logger {
	once.Do(func() {
		consoleWriter := zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}
		globalLogger = zerolog.New(consoleWriter).With().Timestamp().Logger().Level(zerolog.InfoLevel)
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	})
	return globalLogger
}

// Setup constructs the global logger from level and format strings.
// Level accepts any zerolog level name ("debug", "info", ...); format is
// "console" or "json".
func Setup(level, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Logger{}, err
	}

	var l zerolog.Logger
	switch strings.ToLower(format) {
	case "json":
		l = zerolog.New(os.Stderr).With().Timestamp().Logger()
	case "console", "":
		consoleWriter := zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}
		l = zerolog.New(consoleWriter).With().Timestamp().Logger()
	default:
		return zerolog.Logger{}, errors.New("unsupported log format: " + format)
	}

	zerolog.SetGlobalLevel(lvl)
	globalLogger = l.Level(lvl)
	once.Do(func() {}) // mark initialized so Get returns the configured logger

	return globalLogger, nil
}

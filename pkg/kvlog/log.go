package kvlog

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewZeroLogger builds the logger shared by one process. Components receive
// it through their constructors.
func NewZeroLogger(filepath string, logLevel string, pretty bool) (zerolog.Logger, error) {
	writer, err := newWriter(filepath)
	if err != nil {
		return zerolog.Nop(), err
	}
	if pretty {
		writer = zerolog.ConsoleWriter{Out: writer, TimeFormat: time.RFC3339}
	}
	return zerolog.New(writer).
		Level(ParseLevel(logLevel)).
		With().
		Timestamp().
		Logger(), nil
}

func Nop() zerolog.Logger {
	return zerolog.Nop()
}

func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warning", "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

func newWriter(filepath string) (io.Writer, error) {
	if filepath == "" {
		return os.Stdout, nil
	}
	return os.OpenFile(filepath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
}

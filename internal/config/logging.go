package config

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// NewLogger builds the process logger from the logging section. JSON
// output by default; "console" switches to the human-readable writer
// for local runs. The global zerolog logger is replaced too so stray
// log calls share the same sink.
func NewLogger(cfg LoggingConfig) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(logOutput(cfg.Format)).
		Level(level).
		With().
		Timestamp().
		Str("service", "allez-server").
		Logger()
	log.Logger = logger
	return logger
}

func logOutput(format string) io.Writer {
	if strings.EqualFold(format, "console") {
		return zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}
	return os.Stdout
}

package core

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the process logger from the logging config. Console
// output goes to stderr so report output on stdout stays machine-readable.
// When ring is non-nil every line is also captured there as JSON.
func NewLogger(cfg LoggingConfig, ring ...*LogRing) zerolog.Logger {
	var tee io.Writer
	if len(ring) > 0 && ring[0] != nil {
		tee = ring[0]
	}
	return newLogger(cfg, os.Stderr, tee)
}

func newLogger(cfg LoggingConfig, w, tee io.Writer) zerolog.Logger {
	var out io.Writer = w
	if !strings.EqualFold(cfg.Format, "json") {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	if tee != nil {
		out = zerolog.MultiLevelWriter(out, tee)
	}
	logger := zerolog.New(out).With().Timestamp().Logger()

	switch strings.ToLower(cfg.Level) {
	case "debug":
		logger = logger.Level(zerolog.DebugLevel)
	case "warn":
		logger = logger.Level(zerolog.WarnLevel)
	case "error":
		logger = logger.Level(zerolog.ErrorLevel)
	default:
		logger = logger.Level(zerolog.InfoLevel)
	}
	return logger
}

package main

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"minivault/internal/config"
)

// newLogger builds the process logger from cfg. The returned closer flushes
// the rotated log file, if any.
func newLogger(cfg config.Config, stderr io.Writer) (zerolog.Logger, io.Closer) {
	var console io.Writer = stderr
	if strings.EqualFold(cfg.LogFormat, "console") {
		console = zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.RFC3339}
	}
	out := console
	var closer io.Closer = nopCloser{}
	if cfg.LogFile != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    50, // MB
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		out = zerolog.MultiLevelWriter(console, lj)
		closer = lj
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	switch {
	case strings.EqualFold(cfg.LogLevel, "off"):
		lvl = zerolog.Disabled
	case err != nil || lvl == zerolog.NoLevel:
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Str("service", "minivault").Logger(), closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DurationFieldUnit = time.Millisecond
}

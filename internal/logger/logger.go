package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"fileshare/internal/config"
)

// New builds the process logger. Output goes to stdout as JSON (or a console writer when
// Format is "console") and is mirrored to a rotating file when Filename is set.
// Timestamps are rendered in loc.
func New(cfg config.LogConfig, loc *time.Location) zerolog.Logger {
	var out io.Writer = os.Stdout
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Stamp}
	}
	return NewWithWriter(out, cfg, loc)
}

// NewWithWriter is New with an explicit primary writer.
func NewWithWriter(w io.Writer, cfg config.LogConfig, loc *time.Location) zerolog.Logger {
	writers := []io.Writer{w}
	if cfg.Filename != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.Filename,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     28,
		})
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if loc == nil {
		loc = time.UTC
	}
	zerolog.TimestampFunc = func() time.Time { return time.Now().In(loc) }
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFieldName = "ts"

	return zerolog.New(io.MultiWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()
}

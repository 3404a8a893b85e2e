// Package logging builds the process logger.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"nithronos/nosdu/internal/config"
)

// Logger is a zerolog logger that may own a rotating log file.
type Logger struct {
	zerolog.Logger
	rotator *lumberjack.Logger
}

// New builds a logger writing to out (console or JSON per cfg.Log.Format)
// and, when cfg.Log.File is set, also to a rotating file in JSON.
func New(cfg config.Config, out io.Writer) *Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	if out == nil {
		out = os.Stderr
	}

	var w io.Writer = out
	if cfg.Log.Format != "json" {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	var rotator *lumberjack.Logger
	if cfg.Log.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Log.File), 0o755); err == nil {
			rotator = &lumberjack.Logger{
				Filename:   cfg.Log.File,
				MaxSize:    orDefault(cfg.Log.MaxSizeMB, 10),
				MaxBackups: orDefault(cfg.Log.MaxBackups, 5),
				LocalTime:  true,
			}
			w = io.MultiWriter(w, rotator)
		}
	}

	l := zerolog.New(w).Level(cfg.LogLevel()).With().Timestamp().Logger()
	return &Logger{Logger: l, rotator: rotator}
}

// Component returns a child logger tagged with name.
func (l *Logger) Component(name string) zerolog.Logger {
	return l.Logger.With().Str("component", name).Logger()
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	if l.rotator != nil {
		return l.rotator.Close()
	}
	return nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

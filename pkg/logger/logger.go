// Package logger builds the application slog.Logger from config values.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

type Options struct {
	AddSource bool
	Level     string
	Format    string // "json" or "text"
	Output    io.Writer
}

// New builds a logger from opt and installs it as the slog default. A usable
// logger comes back even when opt holds an unknown level or format; the error
// reports what was substituted.
func New(opt *Options) (*slog.Logger, error) {
	if opt == nil {
		return nil, fmt.Errorf("logger options are required")
	}

	opts := &slog.HandlerOptions{
		AddSource: opt.AddSource,
	}

	level, err := ParseLevel(opt.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts.Level = level

	out := opt.Output
	if out == nil {
		out = os.Stderr
	}

	var handler slog.Handler

	switch strings.ToLower(opt.Format) {
	case "", "text":
		handler = slog.NewTextHandler(out, opts)
	case "json":
		handler = slog.NewJSONHandler(out, opts)
	default:
		handler = slog.NewTextHandler(out, opts)

		if err == nil {
			err = fmt.Errorf("unknown log format: %q", opt.Format)
		}
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log, err
}

// ParseLevel converts a string level to slog.Level
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %q", level)
	}
}

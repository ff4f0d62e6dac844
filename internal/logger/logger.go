package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	LOG_LEVEL_ERROR   = "ERROR"
	LOG_LEVEL_WARNING = "WARNING"
	LOG_LEVEL_INFO    = "INFO"
	LOG_LEVEL_DEBUG   = "DEBUG"
)

type Config struct {
	Level string `mapstructure:"level"`
	// Output is "stdout" (default) or "stderr".
	Output string `mapstructure:"output"`
	// File, when set, receives a copy of everything written to Output.
	File string `mapstructure:"file"`
}

func ParseLevel(logLevel string) slog.Level {
	switch strings.ToUpper(logLevel) {
	case LOG_LEVEL_ERROR:
		return slog.LevelError
	case LOG_LEVEL_WARNING:
		return slog.LevelWarn
	case LOG_LEVEL_INFO:
		return slog.LevelInfo
	case LOG_LEVEL_DEBUG:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

func IsDebug(logLevel string) bool {
	return strings.ToUpper(logLevel) == LOG_LEVEL_DEBUG
}

// New builds a text logger writing to w.
func New(w io.Writer, logLevel string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(logLevel),
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Init installs the default logger. The returned closer releases the log
// file and is a no-op when no file is configured.
func Init(cfg Config) (io.Closer, error) {
	var out io.Writer = os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		out = os.Stderr
	}

	w := out
	var closer io.Closer = nopCloser{}

	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			slog.SetDefault(New(out, cfg.Level))
			return closer, fmt.Errorf("failed to open log file: %w", err)
		}
		w = io.MultiWriter(out, f)
		closer = f
	}

	slog.SetDefault(New(w, cfg.Level))
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

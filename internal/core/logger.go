package core

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is the structured logger used by the analyzer, the API server
// and the CLI.
type Logger interface {
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)
	Debug(msg string, fields ...any)

	// With returns a logger that adds fields to every entry.
	With(fields ...any) Logger
}

type slogLogger struct {
	*slog.Logger
}

// NewLogger returns a JSON logger on stderr.
func NewLogger(level string) Logger {
	return NewLoggerTo(os.Stderr, level)
}

func NewLoggerTo(w io.Writer, level string) Logger {
	return slogLogger{slog.New(jsonHandler(w, level))}
}

// InstallDefault also makes the logger slog's process default, so the llm
// and repository packages, which log through slog directly, honour the
// same level.
func InstallDefault(level string) Logger {
	l := slog.New(jsonHandler(os.Stderr, level))
	slog.SetDefault(l)
	return slogLogger{l}
}

// DefaultLogger logs through slog's process default.
func DefaultLogger() Logger {
	return slogLogger{slog.Default()}
}

func NopLogger() Logger {
	return slogLogger{slog.New(slog.NewJSONHandler(io.Discard, nil))}
}

// ParseLevel maps LOG_LEVEL values to slog levels. Unknown names are info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func jsonHandler(w io.Writer, level string) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
}

func (l slogLogger) With(fields ...any) Logger {
	return slogLogger{l.Logger.With(fields...)}
}

package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

type Field struct {
	Key   string
	Value interface{}
}

var base = New(os.Stdout, levelFromEnv())

// New builds a JSON logger writing to w. Tests pass io.Discard or a buffer.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func levelFromEnv() slog.Level {
	if os.Getenv("DEBUG") == "1" {
		return slog.LevelDebug
	}
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// SetOutput replaces the package logger. Used by cmd/ and by tests that want
// to capture output.
func SetOutput(l *slog.Logger) {
	if l != nil {
		base = l
	}
}

// Logger returns the package logger for components that take a *slog.Logger.
func Logger() *slog.Logger { return base }

func attrs(fields []Field) []any {
	out := make([]any, 0, len(fields))
	for _, f := range fields {
		out = append(out, slog.Any(f.Key, f.Value))
	}
	return out
}

func Info(msg string, fields ...Field) {
	base.Info(msg, attrs(fields)...)
}

func Error(msg string, err error, fields ...Field) {
	args := attrs(fields)
	if err != nil {
		args = append(args, slog.String("error", err.Error()))
	}
	base.Error(msg, args...)
}

func Debug(msg string, fields ...Field) {
	base.Debug(msg, attrs(fields)...)
}

func FieldKV(key string, value interface{}) Field { return Field{Key: key, Value: value} }

// With returns a child of the package logger carrying fields on every record.
func With(fields ...Field) *slog.Logger { return base.With(attrs(fields)...) }

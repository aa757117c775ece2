package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options задает параметры логгера.
type Options struct {
	Level   string
	Format  string
	Version string
	Output  io.Writer
}

// New возвращает slog-логгер. Уровень берется из LOG_LEVEL, затем из Options (по умолчанию info).
// Формат json по умолчанию, text по запросу.
func New(opts Options) *slog.Logger {
	level := ParseLevel(opts.Level)
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		level = ParseLevel(env)
	}
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	hopts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if strings.EqualFold(opts.Format, "text") {
		h = slog.NewTextHandler(out, hopts)
	} else {
		h = slog.NewJSONHandler(out, hopts)
	}
	lg := slog.New(h).With(slog.String("service", "kefctl"))
	if opts.Version != "" {
		lg = lg.With(slog.String("version", opts.Version))
	}
	return lg
}

// ParseLevel разбирает имя уровня; неизвестное значение дает info.
func ParseLevel(v string) slog.Level {
	var parsed slog.Level
	if err := parsed.UnmarshalText([]byte(strings.TrimSpace(v))); err != nil {
		return slog.LevelInfo
	}
	return parsed
}

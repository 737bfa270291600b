package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options select the slog handler built by NewWithOptions.
type Options struct {
	Level  string // debug, info, warn or error
	Format string // text or json
}

// New returns a logger configured with a text handler writing to STDOUT.
// LOG_LEVEL and LOG_FORMAT override the defaults.
func New() *slog.Logger {
	return NewWithOptions(os.Stdout, Options{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: os.Getenv("LOG_FORMAT"),
	})
}

// NewWithOptions builds a logger writing to w.
func NewWithOptions(w io.Writer, o Options) *slog.Logger {
	hopts := &slog.HandlerOptions{Level: ParseLevel(o.Level)}
	if strings.EqualFold(o.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Component tags l with the emitting subsystem.
func Component(l *slog.Logger, name string) *slog.Logger {
	if l == nil {
		l = slog.Default()
	}
	return l.With("component", name)
}

type ctxKey struct{}

// NewContext returns a copy of ctx with the logger stored.
func NewContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext retrieves a logger from ctx or returns slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type contextKey struct{}

// Setup installs the default slog logger. Logs go to stderr so that CLI
// output on stdout stays machine-readable.
func Setup(level string, format string) {
	slog.SetDefault(New(os.Stderr, level, format))
}

func New(w io.Writer, level string, format string) *slog.Logger {
	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// WithStage tags ctx with the pipeline stage currently running.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, contextKey{}, stage)
}

func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if stage, ok := ctx.Value(contextKey{}).(string); ok {
		logger = logger.With("stage", stage)
	}
	return logger
}

func WithComponent(component string) *slog.Logger {
	return slog.Default().With("component", component)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

package utils

import (
	"context"
	"log/slog"
	"os"
)

// InitLogger installs the process-wide structured logger.
// Level is "debug", "info", "warn" or "error".
func InitLogger(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}

func LogDebug(ctx context.Context, msg string, attrs ...any) {
	slog.DebugContext(ctx, msg, attrs...)
}

func LogInfo(ctx context.Context, msg string, attrs ...any) {
	slog.InfoContext(ctx, msg, attrs...)
}

func LogWarn(ctx context.Context, msg string, attrs ...any) {
	slog.WarnContext(ctx, msg, attrs...)
}

func LogError(ctx context.Context, msg string, err error, attrs ...any) {
	attrs = append(attrs, slog.Any("error", err))
	slog.ErrorContext(ctx, msg, attrs...)
}

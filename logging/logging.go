package logging

import (
	"log/slog"
	"os"
)

// Setup configures the process-wide slog logger with JSON output and returns
// it for explicit injection into services that log.
func Setup(level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

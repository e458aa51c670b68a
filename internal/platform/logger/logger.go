package logger

import (
	"log/slog"
	"os"
)

// New returns a structured JSON logger using slog. Development runs log at
// debug so stale scan responses and pending polls are visible.
func New(environment string) *slog.Logger {
	level := slog.LevelInfo
	if environment == "development" {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With("service", "passport-id")
}

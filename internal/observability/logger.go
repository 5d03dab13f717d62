package observability

import (
	"io"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"
)

// NewLogger builds the process logger. Format "json" emits structured JSON;
// anything else uses the colored text handler.
func NewLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	if format == "json" {
		h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
		return slog.New(h).With("app", "weather-to-mastodon")
	}

	h := tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	})
	return slog.New(h)
}

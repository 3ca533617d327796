package observability

import (
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/retrolearn/internal/config"
)

// NewLogger builds a structured logger writing to w.
//
// Level conventions:
//   - error: persistence failures that abort an operation
//   - warn:  degraded operation (scoring unavailable, rollback, lease held)
//   - info:  adjustments committed, outcomes recorded, maintenance runs
//   - debug: cache hits, per-candidate scoring details
func NewLogger(cfg config.ObservabilityConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.LogLevel)}

	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
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

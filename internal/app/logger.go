package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger. Production ships JSON lines at info
// level; everywhere else the text handler runs at debug so swallowed audit
// write failures stay visible while developing.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if !cfg.IsProduction() {
		opts.Level = slog.LevelDebug
	}
	if cfg != nil && cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

package utils

import (
	"log/slog"
	"os"
)

// NewLogger returns the process logger. Verbose switches on debug output, which carries the
// per-check detail (follow/recast results, resolved wallets).
func NewLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
